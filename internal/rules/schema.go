// Package rules implements the staleness rule catalog and a small typed
// predicate interpreter over a fixed feature schema.
package rules

import "fmt"

// Kind is the type of a feature value.
type Kind int

// Feature kinds.
const (
	KindNumber Kind = iota + 1
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a single typed feature value.
type Value struct {
	Kind Kind
	Num  float64
	Bool bool
	Str  string
}

// Number wraps a numeric feature value.
func Number(v float64) Value { return Value{Kind: KindNumber, Num: v} }

// Boolean wraps a boolean feature value.
func Boolean(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// Text wraps a string feature value.
func Text(v string) Value { return Value{Kind: KindString, Str: v} }

// Features answers feature lookups by name.
type Features interface {
	Feature(name string) (Value, bool)
}

// Map is a Features backed by a plain map. Mostly useful in tests.
type Map map[string]Value

// Feature implements Features.
func (m Map) Feature(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

// Feature names understood by the catalog.
const (
	TotalActivityCount       = "total_activity_count"
	OwnerActivityCount       = "owner_activity_count"
	OwnerActivityRatio       = "owner_activity_ratio"
	DaysSinceOwnerActivity   = "days_since_owner_activity"
	OtherUsersCount          = "other_users_count"
	TopOtherUser             = "top_other_user"
	TopOtherUserCount        = "top_other_user_count"
	TopOtherUserRatio        = "top_other_user_ratio"
	RecentOtherActivities    = "recent_other_activities"
	OwnerActive              = "owner_active"
	OwnerName                = "owner_name"
	TitleChangesCount        = "title_changes_count"
	DepartmentChangesCount   = "department_changes_count"
	OwnerProfileChangesCount = "owner_profile_changes_count"
	OwnerRoleChanges         = "owner_role_changes"
	OwnerTitleChanged        = "owner_title_changed"
	OwnerDeptChanged         = "owner_dept_changed"
	NonOwnerOwnershipChanges = "non_owner_ownership_changes"
	AssignedGroupActive      = "assigned_group_active"
)

// Schema maps feature names to their kinds.
type Schema map[string]Kind

// DefaultSchema returns the feature schema produced by the feature extractor.
func DefaultSchema() Schema {
	return Schema{
		TotalActivityCount:       KindNumber,
		OwnerActivityCount:       KindNumber,
		OwnerActivityRatio:       KindNumber,
		DaysSinceOwnerActivity:   KindNumber,
		OtherUsersCount:          KindNumber,
		TopOtherUser:             KindString,
		TopOtherUserCount:        KindNumber,
		TopOtherUserRatio:        KindNumber,
		RecentOtherActivities:    KindNumber,
		OwnerActive:              KindBool,
		OwnerName:                KindString,
		TitleChangesCount:        KindNumber,
		DepartmentChangesCount:   KindNumber,
		OwnerProfileChangesCount: KindNumber,
		OwnerRoleChanges:         KindNumber,
		OwnerTitleChanged:        KindBool,
		OwnerDeptChanged:         KindBool,
		NonOwnerOwnershipChanges: KindNumber,
		AssignedGroupActive:      KindBool,
	}
}
