package ingest

import (
	"github.com/sells-group/ownership-cli/internal/model"
)

// Directory indexes canonical users for owner resolution.
type Directory struct {
	bySysID    map[string]model.UserProfile
	byUsername map[string]model.UserProfile
}

// NewDirectory builds lookup maps over users.
func NewDirectory(users []model.UserProfile) *Directory {
	d := &Directory{
		bySysID:    make(map[string]model.UserProfile, len(users)),
		byUsername: make(map[string]model.UserProfile, len(users)),
	}
	for _, u := range users {
		if u.SysID != "" {
			d.bySysID[u.SysID] = u
		}
		if u.Username != "" {
			d.byUsername[u.Username] = u
		}
	}
	return d
}

// BySysID looks a user up by internal id.
func (d *Directory) BySysID(id string) (model.UserProfile, bool) {
	u, ok := d.bySysID[id]
	return u, ok
}

// ByUsername looks a user up by username.
func (d *Directory) ByUsername(name string) (model.UserProfile, bool) {
	u, ok := d.byUsername[name]
	return u, ok
}

// CIs canonicalizes cmdb_ci rows and resolves each assigned_to reference to
// an owner. CIs without a sys_id are dropped; CIs without an owner are kept
// with an empty OwnerRef.
func CIs(rows []Record, dir *Directory) []model.ConfigurationItem {
	cis := make([]model.ConfigurationItem, 0, len(rows))
	for _, r := range rows {
		id := Value(r["sys_id"])
		if id == "" {
			continue
		}
		name := Display(r["name"])
		if name == "" {
			name = "Unknown"
		}
		class := Display(r["sys_class_name"])
		if class == "" {
			class = "Unknown"
		}
		cis = append(cis, model.ConfigurationItem{
			ID:          id,
			Name:        name,
			ClassName:   class,
			Description: Display(r["short_description"]),
			Owner:       resolveOwner(r, dir),
		})
	}
	return cis
}

// resolveOwner turns an assigned_to reference into an OwnerRef.
//
// Reference pairs use the expanded assigned_to.user_name when present, then a
// directory lookup by sys_id, then the sys_id itself. Bare strings are tried
// as a sys_id and then as a username; unknown strings are kept as the
// username.
func resolveOwner(r Record, dir *Directory) model.OwnerRef {
	field := r["assigned_to"]
	if field == nil {
		return model.OwnerRef{}
	}

	if ref, ok := asRef(field); ok {
		owner := model.OwnerRef{
			DisplayName: Display(ref["display_value"]),
			SysID:       Value(ref["value"]),
		}
		if owner.SysID == "" {
			owner.SysID = Value(r["assigned_to.sys_id"])
		}
		owner.Username = Display(r["assigned_to.user_name"])
		if owner.Username == "" {
			owner.Username = Display(ref["user_name"])
		}
		if owner.Username == "" && owner.SysID != "" {
			if u, ok := dir.BySysID(owner.SysID); ok {
				owner.Username = u.Username
				if owner.DisplayName == "" {
					owner.DisplayName = u.DisplayName
				}
			}
		}
		if owner.Username == "" {
			owner.Username = owner.SysID
		}
		if owner.DisplayName == "" {
			owner.DisplayName = Display(r["assigned_to.name"])
		}
		if owner.DisplayName == "" {
			owner.DisplayName = owner.Username
		}
		return owner
	}

	s := scalar(field)
	if s == "" {
		return model.OwnerRef{}
	}
	u, ok := dir.BySysID(s)
	if !ok {
		u, ok = dir.ByUsername(s)
	}
	if ok {
		name := u.DisplayName
		if name == "" {
			name = s
		}
		username := u.Username
		if username == "" {
			username = s
		}
		return model.OwnerRef{Username: username, DisplayName: name, SysID: u.SysID}
	}
	return model.OwnerRef{Username: s, DisplayName: s}
}
