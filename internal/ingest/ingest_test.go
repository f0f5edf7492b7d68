package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ownership-cli/internal/model"
)

func ref(value, display string) map[string]any {
	return map[string]any{"value": value, "display_value": display}
}

func TestValueAndDisplay(t *testing.T) {
	assert.Equal(t, "abc", Value(ref("abc", "Alpha")))
	assert.Equal(t, "Alpha", Display(ref("abc", "Alpha")))
	assert.Equal(t, "Alpha", Value(ref("", "Alpha")))
	assert.Equal(t, "abc", Display(ref("abc", "")))
	assert.Equal(t, "plain", Value(" plain "))
	assert.Equal(t, "3", Display(3))
	assert.Equal(t, "", Value(nil))
	assert.Equal(t, "x", Value(map[string]string{"value": "x"}))
}

func TestBool(t *testing.T) {
	assert.True(t, Bool("true", false))
	assert.False(t, Bool("false", true))
	assert.False(t, Bool(" FALSE ", true))
	assert.False(t, Bool(ref("false", "false"), true))
	assert.True(t, Bool(nil, true))
	assert.True(t, Bool("", true))
	assert.True(t, Bool("maybe", true))
	assert.False(t, Bool(false, true))
}

func TestCleanDepartment(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"plain", "Engineering", "Engineering"},
		{"ref display", ref("d1", "Finance"), "Finance"},
		{"ref value only", ref("d1", ""), "d1"},
		{"empty ref", map[string]any{}, "Unknown"},
		{"json string", `{"display_value":"Ops","link":"https://x"}`, "Ops"},
		{"json value only", `{"value":"d9"}`, "d9"},
		{"bad json", `{oops`, "Unknown"},
		{"link text", "see link", "Unknown"},
		{"empty", "", "Unknown"},
		{"nil", nil, "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanDepartment(tt.in))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, want, ParseTimestamp("2024-03-05 14:30:00"))
	assert.Equal(t, want, ParseTimestamp("2024-03-05T14:30:00"))
	assert.Equal(t, want, ParseTimestamp("2024-03-05T14:30:00Z"))
	assert.Equal(t, want, ParseTimestamp("03/05/2024 14:30:00"))
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), ParseTimestamp("2024-03-05"))
	assert.Equal(t, Epoch, ParseTimestamp("not a date"))
	assert.Equal(t, Epoch, ParseTimestamp(""))
}

func TestUsers(t *testing.T) {
	rows := []Record{
		{
			"sys_id":     ref("u1", "u1"),
			"user_name":  ref("jdoe", "jdoe"),
			"name":       ref("Jane Doe", "Jane Doe"),
			"department": ref("d1", "IT"),
			"active":     ref("false", "false"),
		},
		{"sys_id": "u2", "user_name": "bob", "active": "true"},
		{"name": "nobody"},
	}

	got := Users(rows)
	require.Len(t, got, 2)
	assert.Equal(t, model.UserProfile{SysID: "u1", Username: "jdoe", DisplayName: "Jane Doe", Department: "IT", Active: false}, got[0])
	assert.Equal(t, "bob", got[1].DisplayName)
	assert.Equal(t, "Unknown", got[1].Department)
	assert.True(t, got[1].Active)
}

func TestAuditRecords(t *testing.T) {
	rows := []Record{
		{
			"sys_created_on": ref("2024-03-05 14:30:00", "03/05/2024 09:30:00"),
			"tablename":      "cmdb_ci_server",
			"fieldname":      "assigned_to",
			"documentkey":    ref("ci1", "server-1"),
			"user":           ref("u1", "Jane Doe"),
			"user.user_name": ref("jdoe", "jdoe"),
			"oldvalue":       "",
			"newvalue":       "u2",
		},
		{
			"sys_created_on": "2024-03-06 10:00:00",
			"tablename":      "sys_user",
			"fieldname":      "title",
			"documentkey":    "u1",
			"user":           "admin",
			"oldvalue":       "Engineer",
			"newvalue":       "Manager",
		},
		{
			"sys_created_on": "2024-03-06 10:00:00",
			"tablename":      "sys_user",
			"fieldname":      "cost_center",
			"documentkey":    "u1",
			"user":           ref("u9", "Admin"),
			"audit_type":     ProfileChangeTag,
		},
		{
			"tablename":   "sys_user",
			"fieldname":   "email",
			"documentkey": "u1",
			"user":        "admin",
		},
		{"fieldname": "comments"},
	}

	got := AuditRecords(rows)
	require.Len(t, got, 4)

	assert.Equal(t, "ci1", got[0].DocumentKey)
	assert.Equal(t, "jdoe", got[0].User)
	assert.Equal(t, time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC), got[0].Timestamp)
	assert.Equal(t, model.AuditKindCIChange, got[0].Kind)

	assert.Equal(t, model.AuditKindProfileChange, got[1].Kind)
	assert.Equal(t, "Manager", got[1].NewValue)

	assert.Equal(t, model.AuditKindProfileChange, got[2].Kind)
	assert.Equal(t, "u9", got[2].User)

	assert.Equal(t, model.AuditKindCIChange, got[3].Kind, "untracked sys_user fields are not profile changes")
	assert.Equal(t, Epoch, got[3].Timestamp)
}

func TestCIs_OwnerResolution(t *testing.T) {
	dir := NewDirectory([]model.UserProfile{
		{SysID: "u1", Username: "jdoe", DisplayName: "Jane Doe"},
		{SysID: "u2", Username: "bob", DisplayName: "Bob Jones"},
	})
	rows := []Record{
		{
			"sys_id":                ref("c1", "c1"),
			"name":                  ref("srv1", "srv1"),
			"sys_class_name":        ref("cmdb_ci_server", "Server"),
			"assigned_to":           ref("u1", "Jane Doe"),
			"assigned_to.user_name": ref("jdoe", "jdoe"),
		},
		{"sys_id": "c2", "assigned_to": ref("u2", "")},
		{"sys_id": "c3", "assigned_to": ref("u404", "Ghost")},
		{"sys_id": "c4", "assigned_to": "u1"},
		{"sys_id": "c5", "assigned_to": "bob"},
		{"sys_id": "c6", "assigned_to": "someone"},
		{"sys_id": "c7", "assigned_to": ""},
		{"sys_id": "c8"},
		{"name": "no id"},
	}

	got := CIs(rows, dir)
	require.Len(t, got, 8)

	assert.Equal(t, model.OwnerRef{Username: "jdoe", DisplayName: "Jane Doe", SysID: "u1"}, got[0].Owner)
	assert.Equal(t, "Server", got[0].ClassName)
	assert.Equal(t, model.OwnerRef{Username: "bob", DisplayName: "Bob Jones", SysID: "u2"}, got[1].Owner)
	assert.Equal(t, model.OwnerRef{Username: "u404", DisplayName: "Ghost", SysID: "u404"}, got[2].Owner)
	assert.Equal(t, model.OwnerRef{Username: "jdoe", DisplayName: "Jane Doe", SysID: "u1"}, got[3].Owner)
	assert.Equal(t, model.OwnerRef{Username: "bob", DisplayName: "Bob Jones", SysID: "u2"}, got[4].Owner)
	assert.Equal(t, model.OwnerRef{Username: "someone", DisplayName: "someone"}, got[5].Owner)
	assert.False(t, got[6].HasOwner())
	assert.False(t, got[7].HasOwner())
	assert.Equal(t, "Unknown", got[7].Name)
}

func TestSnapshotRoundTrip(t *testing.T) {
	raw := &RawSnapshot{
		CIs:   []Record{{"sys_id": "c1", "assigned_to": map[string]any{"value": "u1", "display_value": "Jane"}}},
		Audit: []Record{{"documentkey": "c1", "user": "bob", "fieldname": "comments", "sys_created_on": "2024-01-02 03:04:05"}},
		Users: []Record{{"sys_id": "u1", "user_name": "jdoe", "name": "Jane", "active": "true"}},
	}

	for _, name := range []string{"snap.json", "snap.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteSnapshot(path, raw))

			loaded, err := LoadSnapshot(path)
			require.NoError(t, err)

			snap := Canonicalize(*loaded)
			require.Len(t, snap.CIs, 1)
			assert.Equal(t, model.OwnerRef{Username: "jdoe", DisplayName: "Jane", SysID: "u1"}, snap.CIs[0].Owner)
			require.Len(t, snap.Audit, 1)
			assert.Equal(t, "bob", snap.Audit[0].User)
			require.Len(t, snap.Users, 1)
			assert.True(t, snap.Users[0].Active)
		})
	}
}

func TestLoadSnapshot_Errors(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadSnapshot(path)
	assert.Error(t, err)
}
