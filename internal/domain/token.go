package domain

import "time"

// TokenPair is the credential set handed to a client after login, register
// or refresh. The access token is stateless; the refresh token carries a
// jti tracked by the revocation list once rotated or logged out.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
