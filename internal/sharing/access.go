// Package sharing models grants of access to patient records and resolves
// the effective access level an account holds over a record.
package sharing

// Access levels a share may carry. AccessDefault is a grant of unspecified
// strength; it resolves to read. AccessOwner is never stored on a share's
// access field, it is derived from the reserved owner group.
const (
	AccessNone    = "none"
	AccessRead    = "read"
	AccessWrite   = "write"
	AccessDefault = "default"
	AccessOwner   = "owner"
)

// GroupOwner is the reserved group tag of the share created with a record.
const GroupOwner = "owner"

// grantableAccess are the levels accepted when creating or updating a share.
var grantableAccess = map[string]bool{
	AccessRead:    true,
	AccessWrite:   true,
	AccessDefault: true,
}

// accessRank orders non-owner levels for max-wins resolution:
// none < read < write. A default grant counts as read.
func accessRank(access string) int {
	switch access {
	case AccessWrite:
		return 2
	case AccessRead, AccessDefault:
		return 1
	default:
		return 0
	}
}

// Allows reports whether an effective access level satisfies a required one.
// Owner satisfies everything; only owner satisfies owner.
func Allows(effective, required string) bool {
	if effective == AccessOwner {
		return true
	}
	if required == AccessOwner {
		return false
	}
	return accessRank(effective) >= accessRank(required)
}
