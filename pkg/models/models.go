// Package models defines data structures shared between the Janus core and its callers
package models

import "time"

// AdapterStatus describes the link state of a network adapter.
type AdapterStatus string

// Adapter status values
const (
	StatusConnected    AdapterStatus = "connected"
	StatusDisconnected AdapterStatus = "disconnected"
	StatusDisabled     AdapterStatus = "disabled"
	StatusUnknown      AdapterStatus = "unknown"
)

// AdapterType classifies a network adapter by its transport.
type AdapterType string

// Adapter type values
const (
	AdapterEthernet  AdapterType = "ethernet"
	AdapterWifi      AdapterType = "wifi"
	AdapterBluetooth AdapterType = "bluetooth"
	AdapterVirtual   AdapterType = "virtual"
	AdapterLoopback  AdapterType = "loopback"
	AdapterOther     AdapterType = "other"
)

// AdapterDescriptor describes one network adapter at enumeration time.
// MACAddress is always in canonical form (6 uppercase colon-separated octets);
// descriptors are rebuilt on every enumeration and replaced wholesale after a
// successful mutation, never patched in place.
type AdapterDescriptor struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	MACAddress  string            `json:"mac_address"`
	IPAddresses []string          `json:"ip_addresses"`
	Status      AdapterStatus     `json:"status"`
	Type        AdapterType       `json:"type"`
	IsPhysical  bool              `json:"is_physical"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// CPUSummary holds CPU information
type CPUSummary struct {
	Model string `json:"model"`
	Cores int    `json:"cores"`
}

// MemorySummary holds memory information
type MemorySummary struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
}

// DiskSummary holds disk partition information
type DiskSummary struct {
	Path       string `json:"path"`
	Total      uint64 `json:"total"`
	Used       uint64 `json:"used"`
	FileSystem string `json:"filesystem"`
}

// SystemDescriptor is a read-only snapshot of the host, regenerated per query.
type SystemDescriptor struct {
	OS           string        `json:"os"`
	OSVersion    string        `json:"os_version"`
	Architecture string        `json:"architecture"`
	Hostname     string        `json:"hostname"`
	CurrentUser  string        `json:"current_user"`
	BootTime     time.Time     `json:"boot_time"`
	Uptime       int64         `json:"uptime"`
	CPU          CPUSummary    `json:"cpu"`
	Memory       MemorySummary `json:"memory"`
	Disks        []DiskSummary `json:"disks"`
}

// RiskLevel grades how dangerous an operation is.
type RiskLevel string

// Risk levels
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// OperationType identifies a mutating operation.
type OperationType string

// Operation types
const (
	OpModifyMAC          OperationType = "modify_mac"
	OpModifyGUID         OperationType = "modify_guid"
	OpModifyVolumeSerial OperationType = "modify_volume_serial"
)

// DefaultRisk returns the declared risk level for an operation type.
func (t OperationType) DefaultRisk() RiskLevel {
	switch t {
	case OpModifyMAC:
		return RiskMedium
	case OpModifyGUID, OpModifyVolumeSerial:
		return RiskHigh
	default:
		return RiskLow
	}
}

// Operation is a single mutation request. It is constructed by the caller,
// consumed once by the orchestrator, and never reused; a retry is a new
// Operation so the audit history stays per-attempt.
type Operation struct {
	Type           OperationType     `json:"type"`
	Target         string            `json:"target"`
	ProposedValue  string            `json:"proposed_value"`
	Risk           RiskLevel         `json:"risk_level"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty"`
}

// MergeInfo folds stage-supplied answers into the operation so later
// confirmation stages can depend on earlier ones.
func (o *Operation) MergeInfo(info map[string]string) {
	if len(info) == 0 {
		return
	}
	if o.AdditionalInfo == nil {
		o.AdditionalInfo = make(map[string]string, len(info))
	}
	for k, v := range info {
		o.AdditionalInfo[k] = v
	}
}

// ConfirmationResult is the outcome of one confirmation stage.
type ConfirmationResult struct {
	Confirmed              bool              `json:"confirmed"`
	RequiresAdditionalInfo bool              `json:"requires_additional_info"`
	AdditionalInfo         map[string]string `json:"additional_info,omitempty"`
}

// OperationResult is what the orchestrator returns to the presentation layer.
// ErrorKind is empty on success and on user cancellation carries "cancelled",
// which is an expected outcome rather than a failure.
type OperationResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorKind string `json:"error_kind,omitempty"`
	BackupID  string `json:"backup_id,omitempty"`
}

// BackupKind identifies what a backup record protects.
type BackupKind string

// Backup kinds
const (
	BackupNetworkConfig BackupKind = "network_config"
	BackupRegistry      BackupKind = "registry"
	BackupFullSystem    BackupKind = "full_system"
)

// BackupRecord is the metadata of one immutable, checksum-verified snapshot.
// The timestamp is stored in three redundant textual forms so records written
// by older builds stay readable (see the store's fallback parser).
type BackupRecord struct {
	ID                string     `json:"id"`
	Kind              BackupKind `json:"kind"`
	TimestampReadable string     `json:"timestamp_readable"`
	TimestampISO      string     `json:"timestamp_iso"`
	CreatedAt         time.Time  `json:"-"`
	Checksum          string     `json:"checksum"`
	Size              int64      `json:"size"`
	Path              string     `json:"-"`
}

// RegistryValue is one (key path, value name, value data) triple inside a
// registry-kind backup payload.
type RegistryValue struct {
	KeyPath   string `json:"key_path"`
	ValueName string `json:"value_name"`
	ValueData string `json:"value_data"`
}
