package domain

// Identity is the authenticated user as seen by this client: an opaque
// provider-assigned id plus the locally mutable display name.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}
