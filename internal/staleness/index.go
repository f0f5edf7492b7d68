// Package staleness derives per-CI features from the audit trail, evaluates
// the rule catalog, and recommends replacement owners.
package staleness

import (
	"github.com/sells-group/ownership-cli/internal/model"
)

// Index holds the per-scan lookups shared read-only by every CI evaluation.
type Index struct {
	auditByCI      map[string][]model.AuditRecord
	profileChanges []model.AuditRecord
	byUsername     map[string]model.UserProfile
	bySysID        map[string]model.UserProfile
	displayNames   map[string]string
}

// BuildIndex partitions the audit trail and indexes the user directory.
// Audit records keep their input order within each CI.
func BuildIndex(s model.Snapshot) *Index {
	ix := &Index{
		auditByCI:    make(map[string][]model.AuditRecord),
		byUsername:   make(map[string]model.UserProfile, len(s.Users)),
		bySysID:      make(map[string]model.UserProfile, len(s.Users)),
		displayNames: make(map[string]string, len(s.Users)),
	}

	for _, u := range s.Users {
		if u.Username != "" {
			ix.byUsername[u.Username] = u
			name := u.DisplayName
			if name == "" {
				name = u.Username
			}
			ix.displayNames[u.Username] = name
		}
		if u.SysID != "" {
			ix.bySysID[u.SysID] = u
		}
	}

	for _, r := range s.Audit {
		if r.Kind == model.AuditKindProfileChange {
			ix.profileChanges = append(ix.profileChanges, r)
			continue
		}
		if r.DocumentKey == "" {
			continue
		}
		ix.auditByCI[r.DocumentKey] = append(ix.auditByCI[r.DocumentKey], r)
	}

	return ix
}

// CIAudit returns the CI-change records for a CI.
func (ix *Index) CIAudit(ciID string) []model.AuditRecord {
	return ix.auditByCI[ciID]
}

// ProfileChanges returns every profile-change record in the snapshot.
func (ix *Index) ProfileChanges() []model.AuditRecord {
	return ix.profileChanges
}

// UserByUsername looks a user up by username.
func (ix *Index) UserByUsername(username string) (model.UserProfile, bool) {
	u, ok := ix.byUsername[username]
	return u, ok
}

// UserBySysID looks a user up by internal id.
func (ix *Index) UserBySysID(sysID string) (model.UserProfile, bool) {
	u, ok := ix.bySysID[sysID]
	return u, ok
}

// DisplayName returns the directory display name for a username.
func (ix *Index) DisplayName(username string) (string, bool) {
	n, ok := ix.displayNames[username]
	return n, ok
}

// Resolve maps an acting-user string, which may be a username or a sys_id,
// to a directory entry.
func (ix *Index) Resolve(actor string) (model.UserProfile, bool) {
	if actor == "" {
		return model.UserProfile{}, false
	}
	if u, ok := ix.byUsername[actor]; ok {
		return u, true
	}
	u, ok := ix.bySysID[actor]
	return u, ok
}

// owner identifies the current owner of a CI for attribution checks.
type owner struct {
	username string
	sysID    string
	profile  model.UserProfile
	known    bool
}

func (ix *Index) ownerOf(ci model.ConfigurationItem) owner {
	o := owner{username: ci.Owner.Username, sysID: ci.Owner.SysID}
	if u, ok := ix.byUsername[o.username]; ok {
		o.profile, o.known = u, true
	} else if u, ok := ix.bySysID[o.sysID]; ok && o.sysID != "" {
		o.profile, o.known = u, true
	}
	if o.sysID == "" && o.known {
		o.sysID = o.profile.SysID
	}
	return o
}

// isOwner reports whether an acting-user string is attributable to o: it is
// the owner's username, the owner's sys_id, or a sys_id that resolves to the
// owner's username.
func (ix *Index) isOwner(o owner, actor string) bool {
	if actor == "" {
		return false
	}
	if actor == o.username || (o.sysID != "" && actor == o.sysID) {
		return true
	}
	u, ok := ix.bySysID[actor]
	return ok && u.Username != "" && u.Username == o.username
}

// active reports the owner's directory status, defaulting to true when the
// owner is not in the directory.
func (o owner) active() bool {
	if !o.known {
		return true
	}
	return o.profile.Active
}
