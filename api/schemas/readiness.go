package schemas

// Readiness status labels derived from the overall score.
const (
	StatusFullyMissionCapable     = "FMC"
	StatusPartiallyMissionCapable = "PMC"
	StatusNotMissionCapable       = "NMC"
	StatusUnknown                 = "UNK"
)

// ReadinessSnapshot holds the per-record readiness percentages. A nil field
// means the value was absent or unparseable upstream, which is different from
// a true zero; the Missing list names those fields so consumers can tell the
// two apart. Overall is nil when every input was missing.
type ReadinessSnapshot struct {
	ID        string   `json:"id"`
	Material  *int     `json:"material_pct"`
	Personnel *int     `json:"personnel_pct"`
	Training  *int     `json:"training_pct"`
	Overall   *int     `json:"overall_pct"`
	Status    string   `json:"status"`
	Missing   []string `json:"missing,omitempty"`
}

// Unavailable reports whether no readiness data was present at all.
func (s ReadinessSnapshot) Unavailable() bool {
	return s.Overall == nil
}
