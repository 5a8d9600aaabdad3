package auth

// Profile is the normalized identity an external provider vouches for.
// It contains facts only, no decisions.
type Profile struct {
	Provider       string // "google", "facebook"
	ProviderUserID string // provider-scoped user id
	DisplayName    string
	Email          string // may be empty
}
