// Package models - audit trail structures for fingerprint operations
package models

import (
	"time"
)

// CommandLogger is a function type for logging OS command executions with timing and metadata.
type CommandLogger func(id string, cmd string, args []string, startTime, endTime time.Time, exitCode int, err error, targetResource string)

// AuditRecord is the structured record written for every completed or
// cancelled operation.
type AuditRecord struct {
	// Unique identifier for this record (UUID v4)
	ID string `json:"id"`

	// UTC timestamp when the operation finished
	Timestamp time.Time `json:"timestamp"`

	// What was attempted
	OperationType OperationType     `json:"operation_type"`
	Target        string            `json:"target"`
	Parameters    map[string]string `json:"parameters,omitempty"`

	// Outcome
	Result    string    `json:"result"`
	ErrorKind string    `json:"error_kind,omitempty"`
	RiskLevel RiskLevel `json:"risk_level"`

	// Confirmation stages the operation passed before finishing
	StagesReached []string `json:"stages_reached"`

	// Backup created for this attempt, if any
	BackupID string `json:"backup_id,omitempty"`

	// Who ran it and how long it took
	User     string        `json:"user"`
	Duration time.Duration `json:"duration"`
}
