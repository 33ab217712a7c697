package session

import "time"

// Principal is the minimal view of a user the token service needs; the
// identity package's user type satisfies this by projection, keeping
// session free of any dependency on identity (§4.7, §4.12).
type Principal struct {
	UserID      string
	Permissions []string // "<resource>.<scope>.<action>" decimal-bitfield strings (§3)
	Provider    string
	Username    string
	Email       string
	Avatar      string
	OrgID       string
}

// AccessPayload is the plaintext sealed inside an access-token envelope (§3).
type AccessPayload struct {
	UserID      string    `json:"userId"`
	Permissions []string  `json:"permissions"`
	DeviceID    string    `json:"deviceId"`
	Metadata    Metadata  `json:"metadata"`
	IssuedAt    int64     `json:"iat"`
	ExpiresAt   int64     `json:"exp"`
}

// Metadata mirrors the access-token payload's nested metadata object (§3).
type Metadata struct {
	Provider string `json:"provider"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	OrgID    string `json:"orgId,omitempty"`
}

// TokenPair is what createTokenPair returns: an opaque sealed access token
// and an opaque refresh token string.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// VerifyResult is the outcome of verifyAccessToken (§4.7).
type VerifyResult struct {
	Valid           bool
	Session         AccessPayload
	UsedPreviousKey bool
}

// BlockStatus mirrors §3's block-status shape.
type BlockStatus struct {
	Blocked      bool
	BlockedUntil *time.Time
	Permanent    bool
	Reason       string
}

// UserLookup resolves a user id to its current Principal projection, used
// by refreshTokens to re-derive a fresh access token (§4.7).
type UserLookup interface {
	Lookup(userID string) (Principal, error)
}
