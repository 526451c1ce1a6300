package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// OAuthState is what a pending authorization flow remembers between redirect and callback.
type OAuthState struct {
	Platform string `json:"platform"`
	UserID   int64  `json:"user_id"`
	Verifier string `json:"verifier,omitempty"`
}
