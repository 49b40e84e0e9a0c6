package models

// Role is the scope a session acts with.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOfficial Role = "official"
	RoleUser     Role = "user"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOfficial, RoleUser:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

type Permission string

const (
	PermissionView      Permission = "view"
	PermissionMutate    Permission = "mutate"
	PermissionPublish   Permission = "publish"
	PermissionIssueKeys Permission = "issue_keys"
)

// PermissionsFor lists what a role may do.
func PermissionsFor(role Role) []Permission {
	switch role {
	case RoleAdmin:
		return []Permission{PermissionView, PermissionMutate, PermissionPublish, PermissionIssueKeys}
	case RoleOfficial:
		return []Permission{PermissionView, PermissionMutate, PermissionPublish}
	case RoleUser:
		return []Permission{PermissionView}
	default:
		return nil
	}
}

// AuthorizationKey is a short credential that elevates another session for one tournament.
type AuthorizationKey struct {
	Value            string `json:"value" firestore:"value"`
	KeyUUID          string `json:"keyUuid" firestore:"keyUuid"`
	IssuedAt         int64  `json:"issuedAt" firestore:"issuedAt"`
	OneTime          bool   `json:"oneTime" firestore:"oneTime"`
	Scope            Role   `json:"scope" firestore:"scope"`
	TournamentID     string `json:"tournamentId" firestore:"tournamentId"`
	RequesterIsAdmin bool   `json:"requesterIsAdmin" firestore:"requesterIsAdmin"`
	Used             bool   `json:"used" firestore:"used"`
	RedeemedBy       string `json:"redeemedBy,omitempty" firestore:"redeemedBy"`
}
