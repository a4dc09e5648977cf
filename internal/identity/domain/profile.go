package domain

// Profile is the identity asserted by the federation provider's ID token.
// Subject is the provider's stable account id; email and name are display
// data captured at first sight.
type Profile struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}
