package domain

import "time"

// TokenPair is what the user endpoints hand back: a short-lived access token
// and a longer-lived refresh token of the same shape.
type TokenPair struct {
	AuthToken    string `json:"authToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenVersion is the persisted form of a principal's revocation counter.
type TokenVersion struct {
	Principal string
	Version   uint64
	UpdatedAt time.Time
}
