package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims carried by a Sociowire identity token.
// The token only asserts who the caller is; what the caller may read or
// mutate is decided per endpoint.
type Payload struct {
	// StandardClaims embeds the standard JWT fields (Exp, Iat, Iss) used
	// for validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the durable account identifier, stable across reconnects.
	UserID string `json:"userId"`
}
