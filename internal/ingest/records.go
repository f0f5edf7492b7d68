package ingest

import (
	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/pkg/servicenow"
)

// ProfileChangeTag marks raw sys_audit rows that were fetched as user-profile
// changes.
const ProfileChangeTag = servicenow.ProfileChangeTag

// UserTable is the ServiceNow user directory table.
const UserTable = "sys_user"

// profileTableFields are sys_user fields whose audit rows count as profile
// changes even when the row was not tagged at fetch time.
var profileTableFields = map[string]bool{
	"title":      true,
	"department": true,
	"manager":    true,
	"active":     true,
}

// Users canonicalizes sys_user rows. Rows without either a sys_id or a
// username are dropped.
func Users(rows []Record) []model.UserProfile {
	users := make([]model.UserProfile, 0, len(rows))
	for _, r := range rows {
		u := model.UserProfile{
			SysID:       Value(r["sys_id"]),
			Username:    Display(r["user_name"]),
			DisplayName: Display(r["name"]),
			Department:  CleanDepartment(r["department"]),
			Title:       Display(r["title"]),
			Active:      Bool(r["active"], true),
		}
		if u.SysID == "" && u.Username == "" {
			continue
		}
		if u.DisplayName == "" {
			u.DisplayName = u.Username
		}
		users = append(users, u)
	}
	return users
}

// AuditRecords canonicalizes sys_audit rows and classifies each as a CI or
// profile change. Rows without a document key are dropped.
func AuditRecords(rows []Record) []model.AuditRecord {
	records := make([]model.AuditRecord, 0, len(rows))
	for _, r := range rows {
		docKey := Value(r["documentkey"])
		if docKey == "" {
			continue
		}
		raw := Value(r["sys_created_on"])
		rec := model.AuditRecord{
			Timestamp:    ParseTimestamp(raw),
			RawTimestamp: raw,
			Table:        Display(r["tablename"]),
			Field:        Display(r["fieldname"]),
			DocumentKey:  docKey,
			User:         actingUser(r),
			OldValue:     Display(r["oldvalue"]),
			NewValue:     Display(r["newvalue"]),
		}
		rec.Kind = classify(Display(r["audit_type"]), rec.Table, rec.Field)
		records = append(records, rec)
	}
	return records
}

func classify(tag, table, field string) model.AuditKind {
	if tag == ProfileChangeTag || (table == UserTable && profileTableFields[field]) {
		return model.AuditKindProfileChange
	}
	return model.AuditKindCIChange
}

// actingUser prefers the expanded username of an audit row's user reference
// and falls back to the reference's sys_id, or to the bare string.
func actingUser(r Record) string {
	field := r["user"]
	if _, ok := asRef(field); ok {
		if username := Display(r["user.user_name"]); username != "" {
			return username
		}
		return Value(field)
	}
	return scalar(field)
}
