package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// MaxClientLength caps the stored client label.
const MaxClientLength = 128

// RefreshToken is the long-lived credential kept in one client's session
// file. Each refresh replaces it with a successor in the same family; the
// family id is the id of the token issued at sign-in.
type RefreshToken struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	FamilyID   string     `json:"familyId"`
	TokenHash  string     `json:"-"`
	Client     string     `json:"client"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
	ReplacedBy string     `json:"replacedBy,omitempty"`
}

// NewRefreshToken starts a token family for a sign-in from client. It returns
// the model, whose ID is already set, and the plaintext for the client.
func NewRefreshToken(id, userID, client string, ttl time.Duration) (*RefreshToken, string, error) {
	plain, err := randomToken()
	if err != nil {
		return nil, "", err
	}
	now := time.Now()
	return &RefreshToken{
		ID:        id,
		UserID:    userID,
		FamilyID:  id,
		TokenHash: HashToken(plain),
		Client:    ClientLabel(client),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, plain, nil
}

// Successor issues the token that replaces t on refresh. It keeps the family
// and takes the client label of the refreshing request.
func (t *RefreshToken) Successor(id, client string, ttl time.Duration) (*RefreshToken, string, error) {
	next, plain, err := NewRefreshToken(id, t.UserID, client, ttl)
	if err != nil {
		return nil, "", err
	}
	next.FamilyID = t.FamilyID
	return next, plain, nil
}

// HashToken returns the stored form of a plaintext token.
func HashToken(plainToken string) string {
	hash := sha256.Sum256([]byte(plainToken))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// ClientLabel trims a User-Agent to the stored label.
func ClientLabel(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}
	if len(userAgent) > MaxClientLength {
		return userAgent[:MaxClientLength]
	}
	return userAgent
}

// Rotated reports whether the token was already exchanged for a successor.
// Presenting it again means a copy of the session file is in other hands.
func (t *RefreshToken) Rotated() bool {
	return t.ReplacedBy != ""
}

// IsExpired returns true if the token has expired.
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsValid reports whether the token can still be exchanged.
func (t *RefreshToken) IsValid() bool {
	return t.RevokedAt == nil && !t.IsExpired()
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
