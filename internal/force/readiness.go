package force

import (
	"math"
	"strconv"

	"github.com/Lscheinman/odata/api/schemas"
	"go.uber.org/zap"
)

// ReadinessFields names the three KPI percentage fields on a record.
type ReadinessFields struct {
	Material  string
	Personnel string
	Training  string
}

// DefaultReadinessFields returns the KPI field names of the org service.
func DefaultReadinessFields() ReadinessFields {
	return ReadinessFields{
		Material:  FieldReadinessMaterial,
		Personnel: FieldReadinessPersonnel,
		Training:  FieldReadinessTraining,
	}
}

// Aggregator computes readiness snapshots from records. The missing-data
// policy: a field that is absent or not numeric contributes nothing and is
// named in the snapshot's Missing list, so consumers can tell "reported zero"
// from "never reported". When all three are missing, Overall stays nil
// (unavailable) rather than collapsing to zero.
type Aggregator struct {
	idField string
	fields  ReadinessFields
	log     *zap.Logger
}

// NewAggregator creates an aggregator over the given field names.
func NewAggregator(idField string, fields ReadinessFields, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{idField: idField, fields: fields, log: logger.Named("readiness")}
}

// Compute builds the readiness snapshot for one record. Overall is the
// unweighted mean of the present KPIs, rounded to the nearest whole point.
func (a *Aggregator) Compute(rec schemas.Record) schemas.ReadinessSnapshot {
	snap := schemas.ReadinessSnapshot{ID: rec.String(a.idField)}

	type kpi struct {
		name  string
		field string
		dst   **int
	}
	kpis := []kpi{
		{"material", a.fields.Material, &snap.Material},
		{"personnel", a.fields.Personnel, &snap.Personnel},
		{"training", a.fields.Training, &snap.Training},
	}

	sum, present := 0, 0
	for _, k := range kpis {
		v, ok := parsePercent(rec[k.field])
		if !ok {
			snap.Missing = append(snap.Missing, k.name)
			continue
		}
		*k.dst = &v
		sum += v
		present++
	}

	if present > 0 {
		overall := int(math.Round(float64(sum) / float64(present)))
		snap.Overall = &overall
		snap.Status = statusFor(overall)
	} else {
		snap.Status = schemas.StatusUnknown
	}
	return snap
}

// ComputeBatch computes snapshots for every record that carries an
// identifier. Records are independent of each other, so order does not
// matter.
func (a *Aggregator) ComputeBatch(records []schemas.Record) map[string]schemas.ReadinessSnapshot {
	out := make(map[string]schemas.ReadinessSnapshot, len(records))
	skipped := 0
	for _, rec := range records {
		id := rec.String(a.idField)
		if id == "" {
			skipped++
			continue
		}
		out[id] = a.Compute(rec)
	}
	if skipped > 0 {
		a.log.Warn("Records without identifier skipped in readiness batch",
			zap.Int("skipped", skipped))
	}
	return out
}

func statusFor(overall int) string {
	switch {
	case overall >= 85:
		return schemas.StatusFullyMissionCapable
	case overall >= 60:
		return schemas.StatusPartiallyMissionCapable
	default:
		return schemas.StatusNotMissionCapable
	}
}

// parsePercent normalizes the loosely typed KPI values (JSON numbers arrive
// as float64, older gateways send strings) to a 0..100 int.
func parsePercent(v any) (int, bool) {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case float64:
		f = val
	case string:
		if val == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	p := int(math.Round(f))
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p, true
}
