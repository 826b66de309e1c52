package auth

import "github.com/golang-jwt/jwt/v5"

const (
	// DefaultSessionIssuer is the issuer stamped on and required of session tokens.
	DefaultSessionIssuer = "byteedu"
	// DefaultCookieName carries the session token for browser clients.
	DefaultCookieName = "byteedu_session"
)

// SessionClaims is the payload of a session token. The subject is the DID
// the student signed in with.
type SessionClaims struct {
	DID         string `json:"did"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Identity describes who a token is issued for.
type Identity struct {
	DID         string
	DisplayName string
}
