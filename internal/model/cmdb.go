// Package model defines the canonical CMDB records and scan results shared
// across the ingestion, analysis, and service layers.
package model

import "time"

// AuditKind classifies an audit record. Every record carries exactly one kind.
type AuditKind string

const (
	AuditKindCIChange      AuditKind = "ci_change"
	AuditKindProfileChange AuditKind = "profile_change"
)

// OwnerRef identifies the user a CI is assigned to. All fields are resolved
// to plain strings by the ingestion layer.
type OwnerRef struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	SysID       string `json:"sys_id"`
}

// ConfigurationItem is an inventory asset with an assigned owner.
type ConfigurationItem struct {
	ID          string   `json:"ci_id"`
	Name        string   `json:"ci_name"`
	ClassName   string   `json:"ci_class"`
	Description string   `json:"ci_description"`
	Owner       OwnerRef `json:"owner"`
}

// HasOwner reports whether the CI has a resolvable owner username.
func (c ConfigurationItem) HasOwner() bool {
	return c.Owner.Username != ""
}

// AuditRecord is a single field change from the audit trail. For CI changes
// DocumentKey is the CI id; for profile changes it is the user's sys_id.
type AuditRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	RawTimestamp string    `json:"raw_timestamp,omitempty"`
	Table        string    `json:"table"`
	Field        string    `json:"field"`
	DocumentKey  string    `json:"document_key"`
	User         string    `json:"user"`
	OldValue     string    `json:"old_value"`
	NewValue     string    `json:"new_value"`
	Kind         AuditKind `json:"kind"`
}

// UserProfile is a directory entry.
type UserProfile struct {
	SysID       string `json:"sys_id"`
	Username    string `json:"user_name"`
	DisplayName string `json:"name"`
	Department  string `json:"department"`
	Title       string `json:"title"`
	Active      bool   `json:"active"`
}

// Snapshot is a canonicalized view of the three record sets a scan reads.
type Snapshot struct {
	CIs   []ConfigurationItem `json:"cis"`
	Audit []AuditRecord       `json:"audit"`
	Users []UserProfile       `json:"users"`
}
