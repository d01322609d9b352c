package service

// Audit actions
const (
	ActionManualLink   = "MANUAL_LINK"
	ActionManualUnlink = "MANUAL_UNLINK"
	ActionUpdateNotes  = "UPDATE_NOTES"
	ActionReconcileRun = "RECONCILE_RUN"
)

// Audited entity types
const (
	EntityLink    = "ReconciliationLink"
	EntityInvoice = "Invoice"
	EntityRun     = "ReconciliationRun"
)

// DefaultActor is recorded when a caller does not identify itself.
const DefaultActor = "system"

func actorOrDefault(actor string) string {
	if actor == "" {
		return DefaultActor
	}
	return actor
}
