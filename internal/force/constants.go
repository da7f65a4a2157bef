// Package force turns flat force-element records from the remote org service
// into trees, relationship graphs and readiness rollups.
package force

// Services and entity sets of the force-element org model.
const (
	ServiceForceElement = "DFS_FE_FRCELMNTORG_SRV"
	ServiceGraph        = "DFS_FE_FRCELMNTORGNTWKGRAPH_SRV"

	SetForceElementTP = "C_FrcElmntOrgTP"
	SetGraphEdge      = "C_FrcElmntOrgNtwkGraphRelshp"
)

// Key fields of the two entity sets.
const (
	FieldID         = "ForceElementOrgID"
	FieldEdgeSource = "ForceElementOrgID"
	FieldEdgeTarget = "FrcElmntOrgRelatedOrgID"
	FieldEdgeRel    = "FrcElmntOrgSubType"
	FieldName       = "FrcElmntOrgName"
)

// RelStructure tags the structural hierarchy relationship.
const RelStructure = "B002"

// The TP entity is draft enabled: without this guard the service returns
// draft and active variants of the same element.
const activeEntityFilter = "(IsActiveEntity eq true)"

// DefaultParentFields maps each hierarchy type to the parent-pointer field
// that defines it. The record set is self referential along all five at once;
// builders pick one per call.
func DefaultParentFields() map[string]string {
	return map[string]string{
		"structure": "FrcElmntOrgStrucParentID",
		"peacetime": "FrcElmntOrgPeaceTimeParentID",
		"wartime":   "FrcElmntOrgWarTimeParentID",
		"operation": "FrcElmntOrgOplAssgmtParentID",
		"exercise":  "FrcElmntOrgExerAssgmtParentID",
	}
}

// Readiness KPI percentage fields.
const (
	FieldReadinessMaterial  = "FrcElmntOrgMatlRdnssPct"
	FieldReadinessPersonnel = "FrcElmntOrgPrsnlRdnssPct"
	FieldReadinessTraining  = "FrcElmntOrgTrngRdnssPct"
)
