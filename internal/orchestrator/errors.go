package orchestrator

import "fmt"

// Error kinds reported on operation results. "cancelled" is an expected
// outcome, not a failure; "inconsistent_state" means the write was reported
// successful but the re-read disagreed, so the backup is the recovery path.
const (
	KindValidation        = "validation_error"
	KindUnsupported       = "unsupported_operation"
	KindPermission        = "permission_error"
	KindBackup            = "backup_error"
	KindCancelled         = "cancelled"
	KindOperationFailed   = "operation_failed"
	KindInconsistentState = "inconsistent_state"
)

// OpError carries the failure classification plus what the operator can do
// about it. BackupID is set when a snapshot already exists for the attempt.
type OpError struct {
	Kind        string
	Message     string
	Remediation string
	BackupID    string
}

func (e *OpError) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Remediation)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
