package model

import "time"

// Assignment is an append-only record of an owner change applied to a CI.
// Undo operations append a new record that references the original.
type Assignment struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	CIID               string    `json:"ci_id"`
	CIName             string    `json:"ci_name"`
	CIClass            string    `json:"ci_class"`
	PreviousOwner      OwnerRef  `json:"previous_owner"`
	NewOwner           OwnerRef  `json:"new_owner"`
	InstanceURL        string    `json:"instance_url"`
	IsUndo             bool      `json:"is_undo"`
	UndoesAssignmentID string    `json:"undoes_assignment_id,omitempty"`
}

// ScanRun is a persisted scan outcome.
type ScanRun struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"`
	Result    *ScanResult `json:"result"`
	CreatedAt time.Time   `json:"created_at"`
}
