// Package orchestrator sequences fingerprint mutations: validate, check
// support, check privilege, snapshot, confirm, write, verify. No step may run
// before the one ahead of it succeeds, and no write ever happens without a
// verified backup on disk.
package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ilexum-group/janus/internal/backup"
	"github.com/ilexum-group/janus/internal/confirm"
	"github.com/ilexum-group/janus/internal/engine"
	"github.com/ilexum-group/janus/internal/identifier"
	"github.com/ilexum-group/janus/internal/permission"
	"github.com/ilexum-group/janus/internal/utils"
	"github.com/ilexum-group/janus/pkg/models"
)

// networkPayload is the backup payload for MAC mutations: every adapter's
// canonical MAC at snapshot time, so any of them can be put back.
type networkPayload struct {
	Adapters map[string]string `json:"adapters"`
}

// registryPayload is the backup payload for machine GUID mutations.
type registryPayload struct {
	Values []models.RegistryValue `json:"values"`
}

// Orchestrator coordinates one engine, one backup store, one permission gate,
// one confirmation gate, and one audit trail.
type Orchestrator struct {
	engine  engine.Engine
	perms   *permission.Gate
	backups *backup.Store
	confirm *confirm.Gate
	audits  AuditSink
	logger  utils.Logger

	mu      sync.Mutex
	targets map[string]*sync.Mutex
}

// AuditSink receives one record per finished operation attempt.
type AuditSink interface {
	Log(models.AuditRecord) error
}

// New creates an Orchestrator. auditSink may be nil, in which case no trail
// is kept.
func New(eng engine.Engine, perms *permission.Gate, backups *backup.Store, confirmGate *confirm.Gate, auditSink AuditSink, logger utils.Logger) *Orchestrator {
	return &Orchestrator{
		engine:  eng,
		perms:   perms,
		backups: backups,
		confirm: confirmGate,
		audits:  auditSink,
		logger:  logger,
		targets: make(map[string]*sync.Mutex),
	}
}

// targetLock returns the mutex serializing mutations of one target, so two
// concurrent attempts on the same adapter or key never interleave.
func (o *Orchestrator) targetLock(opType models.OperationType, target string) *sync.Mutex {
	key := string(opType) + "\x00" + target
	o.mu.Lock()
	defer o.mu.Unlock()
	if lock, ok := o.targets[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	o.targets[key] = lock
	return lock
}

// Execute runs one mutation attempt end to end and reports the outcome. A
// cancellation is a successful refusal, not an error. Every attempt that gets
// past validation leaves an audit record.
func (o *Orchestrator) Execute(op *models.Operation) models.OperationResult {
	if op.Risk == "" {
		op.Risk = op.Type.DefaultRisk()
	}
	started := time.Now()

	lock := o.targetLock(op.Type, op.Target)
	lock.Lock()
	defer lock.Unlock()

	result, stages := o.execute(op)

	o.writeAudit(op, result, stages, time.Since(started))
	return result
}

func (o *Orchestrator) execute(op *models.Operation) (models.OperationResult, []string) {
	// Step 1: validate and normalize the request.
	if err := o.normalize(op); err != nil {
		return failure(err), nil
	}

	// Step 2: refuse what this platform cannot do.
	if err := o.checkSupported(op.Type); err != nil {
		return failure(err), nil
	}

	// Step 3: refuse early when privilege is missing.
	if err := o.checkPrivilege(op.Type); err != nil {
		return failure(err), nil
	}

	// Step 4: snapshot the state being mutated and verify the snapshot.
	record, err := o.snapshot(op)
	if err != nil {
		return failure(err), nil
	}

	// Step 5: staged confirmation. Declining or timing out ends the attempt
	// without touching anything; the snapshot is kept.
	outcome, err := o.confirm.Run(op)
	if err != nil || outcome.State != confirm.StateApproved {
		reason := outcome.CancelReason
		if reason == "" && err != nil {
			reason = err.Error()
		}
		return models.OperationResult{
			Success:   false,
			Message:   fmt.Sprintf("operation cancelled: %s", reason),
			ErrorKind: KindCancelled,
			BackupID:  record.ID,
		}, outcome.StagesReached
	}

	// Step 6: the mutation itself.
	if err := o.write(op); err != nil {
		return failure(o.classifyWriteFailure(err, record.ID)), outcome.StagesReached
	}

	// Step 7: read back and compare. A mismatch here means the platform
	// reported success but the identifier did not change; the snapshot is the
	// way back, nothing is retried automatically.
	if err := o.verify(op); err != nil {
		return failure(&OpError{
			Kind:        KindInconsistentState,
			Message:     err.Error(),
			Remediation: fmt.Sprintf("inspect the target manually; backup %s holds the pre-mutation state", record.ID),
			BackupID:    record.ID,
		}), outcome.StagesReached
	}

	if o.logger != nil {
		o.logger.LogInfo("Operation completed", map[string]string{
			"operation": string(op.Type),
			"target":    op.Target,
			"value":     op.ProposedValue,
			"backup_id": record.ID,
		})
	}
	return models.OperationResult{
		Success:  true,
		Message:  fmt.Sprintf("%s applied to %s", op.Type, displayTarget(op)),
		BackupID: record.ID,
	}, outcome.StagesReached
}

// normalize canonicalizes the proposed value, generating one when the request
// leaves it empty.
func (o *Orchestrator) normalize(op *models.Operation) error {
	switch op.Type {
	case models.OpModifyMAC:
		if op.Target == "" {
			return &OpError{Kind: KindValidation, Message: "adapter ID is required"}
		}
		if op.ProposedValue == "" {
			mac, err := identifier.RandomMAC(op.AdditionalInfo["vendor_prefix"])
			if err != nil {
				return &OpError{Kind: KindValidation, Message: err.Error()}
			}
			op.ProposedValue = mac
			op.MergeInfo(map[string]string{"value_source": "generated"})
			return nil
		}
		mac, err := identifier.NormalizeMAC(op.ProposedValue)
		if err != nil {
			return &OpError{Kind: KindValidation, Message: err.Error(), Remediation: "provide 12 hexadecimal digits, separators optional"}
		}
		op.ProposedValue = mac
	case models.OpModifyGUID:
		if op.ProposedValue == "" {
			op.ProposedValue = identifier.RandomGUID()
			op.MergeInfo(map[string]string{"value_source": "generated"})
			return nil
		}
		guid, err := identifier.NormalizeGUID(op.ProposedValue)
		if err != nil {
			return &OpError{Kind: KindValidation, Message: err.Error(), Remediation: "provide an RFC 4122 UUID"}
		}
		op.ProposedValue = guid
	case models.OpModifyVolumeSerial:
		if op.Target == "" {
			return &OpError{Kind: KindValidation, Message: "volume is required"}
		}
		serial, err := identifier.NormalizeVolumeSerial(op.ProposedValue)
		if err != nil {
			return &OpError{Kind: KindValidation, Message: err.Error(), Remediation: "provide 8 hexadecimal digits"}
		}
		op.ProposedValue = serial
	default:
		return &OpError{Kind: KindValidation, Message: fmt.Sprintf("unknown operation type %q", op.Type)}
	}
	return nil
}

// checkSupported consults the engine's advertised mutation set.
func (o *Orchestrator) checkSupported(opType models.OperationType) error {
	for _, supported := range o.engine.SupportedOperations() {
		if supported == opType {
			return nil
		}
	}
	return &OpError{
		Kind:        KindUnsupported,
		Message:     fmt.Sprintf("%s is not supported on %s", opType, o.engine.OSName()),
		Remediation: "no workaround exists on this platform",
	}
}

func (o *Orchestrator) checkPrivilege(opType models.OperationType) error {
	elevated, err := o.perms.HasPrivilege(opType)
	if err != nil {
		return &OpError{Kind: KindPermission, Message: err.Error()}
	}
	if !elevated {
		return &OpError{
			Kind:        KindPermission,
			Message:     "insufficient privileges for this operation",
			Remediation: o.perms.DescribePrivilegeGap(),
		}
	}
	return nil
}

// snapshot captures the state the mutation is about to change and verifies
// the written backup before anything else proceeds.
func (o *Orchestrator) snapshot(op *models.Operation) (models.BackupRecord, error) {
	kind, payload, err := o.buildPayload(op)
	if err != nil {
		return models.BackupRecord{}, &OpError{Kind: KindBackup, Message: err.Error()}
	}

	record, err := o.backups.Create(kind, payload)
	if err != nil {
		return models.BackupRecord{}, &OpError{Kind: KindBackup, Message: err.Error()}
	}
	if err := o.backups.Verify(record.ID); err != nil {
		return models.BackupRecord{}, &OpError{
			Kind:    KindBackup,
			Message: fmt.Sprintf("backup written but failed verification: %v", err),
		}
	}
	return record, nil
}

func (o *Orchestrator) buildPayload(op *models.Operation) (models.BackupKind, json.RawMessage, error) {
	switch op.Type {
	case models.OpModifyMAC:
		adapters, err := o.engine.EnumerateAdapters()
		if err != nil {
			return "", nil, fmt.Errorf("snapshot adapters: %w", err)
		}
		payload := networkPayload{Adapters: make(map[string]string, len(adapters))}
		found := false
		for _, adapter := range adapters {
			if adapter.MACAddress == "" {
				continue
			}
			payload.Adapters[adapter.ID] = adapter.MACAddress
			if adapter.ID == op.Target {
				found = true
			}
		}
		if !found {
			return "", nil, fmt.Errorf("adapter %q not found", op.Target)
		}
		data, err := json.Marshal(payload)
		return models.BackupNetworkConfig, data, err

	case models.OpModifyGUID:
		current, err := o.engine.ReadMachineGUID()
		if err != nil {
			return "", nil, fmt.Errorf("snapshot machine guid: %w", err)
		}
		payload := registryPayload{Values: []models.RegistryValue{{
			KeyPath:   machineGUIDLocation(o.engine.OSName()),
			ValueName: "MachineGuid",
			ValueData: current,
		}}}
		data, err := json.Marshal(payload)
		return models.BackupRegistry, data, err

	case models.OpModifyVolumeSerial:
		serials, err := o.engine.ReadVolumeSerials()
		if err != nil {
			return "", nil, fmt.Errorf("snapshot volume serials: %w", err)
		}
		data, err := json.Marshal(map[string]any{"volumes": serials})
		return models.BackupFullSystem, data, err
	}
	return "", nil, fmt.Errorf("no backup strategy for %q", op.Type)
}

// CreateSnapshot takes an operator-requested backup outside of any mutation.
// The full_system kind bundles the network map, the machine GUID, and the
// volume serials together.
func (o *Orchestrator) CreateSnapshot(kind models.BackupKind) (models.BackupRecord, error) {
	var payload any
	switch kind {
	case models.BackupNetworkConfig:
		adapters, err := o.engine.EnumerateAdapters()
		if err != nil {
			return models.BackupRecord{}, err
		}
		network := networkPayload{Adapters: make(map[string]string, len(adapters))}
		for _, adapter := range adapters {
			if adapter.MACAddress != "" {
				network.Adapters[adapter.ID] = adapter.MACAddress
			}
		}
		payload = network

	case models.BackupRegistry:
		guid, err := o.engine.ReadMachineGUID()
		if err != nil {
			return models.BackupRecord{}, err
		}
		payload = registryPayload{Values: []models.RegistryValue{{
			KeyPath:   machineGUIDLocation(o.engine.OSName()),
			ValueName: "MachineGuid",
			ValueData: guid,
		}}}

	case models.BackupFullSystem:
		adapters, err := o.engine.EnumerateAdapters()
		if err != nil {
			return models.BackupRecord{}, err
		}
		network := networkPayload{Adapters: make(map[string]string, len(adapters))}
		for _, adapter := range adapters {
			if adapter.MACAddress != "" {
				network.Adapters[adapter.ID] = adapter.MACAddress
			}
		}
		guid, _ := o.engine.ReadMachineGUID()
		serials, _ := o.engine.ReadVolumeSerials()
		payload = map[string]any{
			"adapters":     network.Adapters,
			"machine_guid": guid,
			"volumes":      serials,
		}

	default:
		return models.BackupRecord{}, fmt.Errorf("unknown backup kind %q", kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return models.BackupRecord{}, err
	}
	record, err := o.backups.Create(kind, data)
	if err != nil {
		return models.BackupRecord{}, err
	}
	if err := o.backups.Verify(record.ID); err != nil {
		return models.BackupRecord{}, err
	}
	return record, nil
}

// machineGUIDLocation names where the machine GUID lives on each platform,
// recorded in backups for the operator's benefit.
func machineGUIDLocation(osName string) string {
	switch osName {
	case "windows":
		return `HKLM\SOFTWARE\Microsoft\Cryptography`
	case "linux":
		return "/etc/machine-id"
	case "darwin":
		return "IOPlatformExpertDevice"
	default:
		return osName
	}
}

func (o *Orchestrator) write(op *models.Operation) error {
	switch op.Type {
	case models.OpModifyMAC:
		return o.engine.WriteMAC(op.Target, op.ProposedValue)
	case models.OpModifyGUID:
		return o.engine.WriteMachineGUID(op.ProposedValue)
	case models.OpModifyVolumeSerial:
		return o.engine.WriteVolumeSerial(op.Target, op.ProposedValue)
	}
	return fmt.Errorf("no write strategy for %q", op.Type)
}

// verify re-reads the mutated identifier and compares it with the proposed
// value, tolerating separator and case differences.
func (o *Orchestrator) verify(op *models.Operation) error {
	var current string
	var err error
	switch op.Type {
	case models.OpModifyMAC:
		current, err = o.engine.ReadMAC(op.Target)
	case models.OpModifyGUID:
		current, err = o.engine.ReadMachineGUID()
	case models.OpModifyVolumeSerial:
		serials, serr := o.engine.ReadVolumeSerials()
		if serr != nil {
			err = serr
		} else {
			current = serials[op.Target]
		}
	}
	if err != nil {
		return fmt.Errorf("post-mutation read failed: %v", err)
	}
	if !identifier.EqualFold(current, op.ProposedValue) {
		return fmt.Errorf("target reads %q after a write of %q", current, op.ProposedValue)
	}
	return nil
}

// classifyWriteFailure maps engine errors onto the result taxonomy.
func (o *Orchestrator) classifyWriteFailure(err error, backupID string) error {
	switch {
	case errors.Is(err, engine.ErrPermissionDenied):
		return &OpError{
			Kind:        KindPermission,
			Message:     err.Error(),
			Remediation: o.perms.DescribePrivilegeGap(),
			BackupID:    backupID,
		}
	case errors.Is(err, engine.ErrUnsupported):
		return &OpError{Kind: KindUnsupported, Message: err.Error(), BackupID: backupID}
	default:
		return &OpError{Kind: KindOperationFailed, Message: err.Error(), BackupID: backupID}
	}
}

// Restore applies a backup's payload back onto the system. It runs the same
// confirmation flow as a mutation; nothing is written without approval.
func (o *Orchestrator) Restore(backupID string) models.OperationResult {
	started := time.Now()

	record, payload, err := o.backups.Restore(backupID)
	if err != nil {
		opErr := &OpError{Kind: KindBackup, Message: err.Error()}
		if errors.Is(err, backup.ErrIntegrity) {
			opErr.Remediation = "the backup file is corrupt; do not apply it"
		}
		return failure(opErr)
	}

	op := &models.Operation{
		Type:   restoreOperationType(record.Kind),
		Target: backupID,
		Risk:   models.RiskHigh,
		AdditionalInfo: map[string]string{
			"restore_of": backupID,
			"kind":       string(record.Kind),
		},
	}

	outcome, err := o.confirm.Run(op)
	if err != nil || outcome.State != confirm.StateApproved {
		reason := outcome.CancelReason
		if reason == "" && err != nil {
			reason = err.Error()
		}
		result := models.OperationResult{
			Success:   false,
			Message:   fmt.Sprintf("restore cancelled: %s", reason),
			ErrorKind: KindCancelled,
			BackupID:  backupID,
		}
		o.writeAudit(op, result, outcome.StagesReached, time.Since(started))
		return result
	}

	applyErr := o.applyPayload(record.Kind, payload)
	result := models.OperationResult{BackupID: backupID}
	if applyErr != nil {
		classified := o.classifyWriteFailure(applyErr, backupID)
		result = failure(classified)
	} else {
		result.Success = true
		result.Message = fmt.Sprintf("restored %s backup %s", record.Kind, backupID)
	}
	o.writeAudit(op, result, outcome.StagesReached, time.Since(started))
	return result
}

func restoreOperationType(kind models.BackupKind) models.OperationType {
	switch kind {
	case models.BackupNetworkConfig:
		return models.OpModifyMAC
	case models.BackupRegistry:
		return models.OpModifyGUID
	default:
		return models.OpModifyVolumeSerial
	}
}

// applyPayload writes a backup's contents back through the engine.
func (o *Orchestrator) applyPayload(kind models.BackupKind, payload json.RawMessage) error {
	switch kind {
	case models.BackupNetworkConfig:
		var network networkPayload
		if err := json.Unmarshal(payload, &network); err != nil {
			return fmt.Errorf("decode network payload: %w", err)
		}
		var failures []string
		for adapterID, mac := range network.Adapters {
			current, err := o.engine.ReadMAC(adapterID)
			if err == nil && identifier.EqualFold(current, mac) {
				continue
			}
			if err := o.engine.WriteMAC(adapterID, mac); err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", adapterID, err))
			}
		}
		if len(failures) > 0 {
			return fmt.Errorf("restore incomplete: %s", strings.Join(failures, "; "))
		}
		return nil

	case models.BackupRegistry:
		var reg registryPayload
		if err := json.Unmarshal(payload, &reg); err != nil {
			return fmt.Errorf("decode registry payload: %w", err)
		}
		for _, value := range reg.Values {
			if value.ValueName == "MachineGuid" {
				if err := o.engine.WriteMachineGUID(value.ValueData); err != nil {
					return err
				}
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: restore of %s backups", engine.ErrUnsupported, kind)
	}
}

// writeAudit records the attempt. Audit failures are logged, never allowed to
// change the operation's outcome.
func (o *Orchestrator) writeAudit(op *models.Operation, result models.OperationResult, stages []string, elapsed time.Duration) {
	if o.audits == nil {
		return
	}

	resultText := "failed"
	switch {
	case result.Success:
		resultText = "success"
	case result.ErrorKind == KindCancelled:
		resultText = "cancelled"
	}

	record := models.AuditRecord{
		Timestamp:     time.Now().UTC(),
		OperationType: op.Type,
		Target:        op.Target,
		Parameters:    op.AdditionalInfo,
		Result:        resultText,
		ErrorKind:     result.ErrorKind,
		RiskLevel:     op.Risk,
		StagesReached: stages,
		BackupID:      result.BackupID,
		User:          o.perms.CurrentUser(),
		Duration:      elapsed,
	}
	if err := o.audits.Log(record); err != nil && o.logger != nil {
		o.logger.LogError("Failed to write audit record", map[string]string{"error": err.Error()})
	}
}

// failure converts an error into an OperationResult, preserving the
// classification when the error is an OpError.
func failure(err error) models.OperationResult {
	var opErr *OpError
	if errors.As(err, &opErr) {
		message := opErr.Message
		if opErr.Remediation != "" {
			message = fmt.Sprintf("%s (%s)", message, opErr.Remediation)
		}
		return models.OperationResult{
			Success:   false,
			Message:   message,
			ErrorKind: opErr.Kind,
			BackupID:  opErr.BackupID,
		}
	}
	return models.OperationResult{Success: false, Message: err.Error(), ErrorKind: KindOperationFailed}
}

func displayTarget(op *models.Operation) string {
	if op.Target != "" {
		return op.Target
	}
	return string(op.Type)
}
