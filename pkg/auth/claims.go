package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	SessionID string
	Staff     bool
}

// AccessTokenClaims represents the typed JWT issued to clients. The storefront
// only needs a stable user id, the browser session id the cart lives under,
// and a staff flag; login and registration are handled by the identity service.
type AccessTokenClaims struct {
	UserID    uuid.UUID `json:"user_id"`
	SessionID string    `json:"session_id"`
	Staff     bool      `json:"staff"`
	jwt.RegisteredClaims
}
