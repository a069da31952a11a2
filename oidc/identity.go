package oidc

import "strings"

// Identity is the authenticated user handed to the host after a successful
// callback.
type Identity struct {
	UID   string `json:"uid"`
	Info  Info   `json:"info"`
	Extra Extra  `json:"extra"`
}

// Info is the normalized user profile.
type Info struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Provider  string `json:"provider"`
	UID       string `json:"uid"`
}

// Extra carries the claims the profile was built from.
type Extra struct {
	RawClaims map[string]interface{} `json:"raw_claims"`
}

// NewIdentity maps claims to an Identity. The name joins given_name and
// usual_name with a space, skipping absent parts.
func NewIdentity(providerName string, c *Claims) *Identity {
	if c == nil {
		return nil
	}
	var parts []string
	for _, p := range []string{c.GivenName, c.UsualName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return &Identity{
		UID: c.Subject,
		Info: Info{
			Email:     c.Email,
			FirstName: c.GivenName,
			LastName:  c.UsualName,
			Name:      strings.Join(parts, " "),
			Phone:     c.PhoneNumber,
			Provider:  providerName,
			UID:       c.Subject,
		},
		Extra: Extra{RawClaims: c.Raw},
	}
}
