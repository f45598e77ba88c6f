// ABOUTME: Verified user identity types and guest synthesis
// ABOUTME: Identities seed session state; guests are derived deterministically from the raw id

package identity

import "fmt"

// Identity is the verified profile for one user, immutable once resolved
// for a turn. JobTitle and Phone are optional.
type Identity struct {
	UserID     string
	Name       string
	Department string
	Email      string
	JobTitle   string
	Phone      string
}

// StateMap returns the attributes to inject into session state. Empty
// optional fields are omitted. The is_registered flag marks the session as
// identity-seeded; the tool guard checks it before every gated call.
func (id *Identity) StateMap() map[string]any {
	state := map[string]any{
		"user_id":       id.UserID,
		"user_name":     id.Name,
		"department":    id.Department,
		"email":         id.Email,
		"is_registered": true,
	}
	if id.JobTitle != "" {
		state["job_title"] = id.JobTitle
	}
	if id.Phone != "" {
		state["phone"] = id.Phone
	}
	return state
}

// Guest synthesizes a deterministic fallback identity for an id the
// directory has no record of. The same id always yields the same guest.
func Guest(userID string) *Identity {
	return &Identity{
		UserID:     userID,
		Name:       "訪客_" + userID,
		Department: "未知",
		Email:      fmt.Sprintf("%s@guest.local", userID),
	}
}
