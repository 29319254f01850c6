package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Family is a named batch of access codes sharing a default duration and label.
type Family struct {
	ID        string      `json:"family_id"`
	Label     string      `json:"label"`
	Site      string      `json:"site"`
	Duration  int         `json:"duration"` // minutes
	Children  []ChildCode `json:"children"`
	CreatedAt time.Time   `json:"created_at"`
}

// ChildCode is one redeemable, single-use code belonging to a Family.
// The plaintext code is never stored; only its SHA-256 digest is. The ID
// doubles as the opaque client token handed out on redemption.
type ChildCode struct {
	ID          string     `json:"id"`
	Hash        string     `json:"hash"`
	Used        bool       `json:"used"`
	UsedIP      *string    `json:"used_ip"`    // nil until redeemed
	ActivatedAt *time.Time `json:"activation"` // nil until redeemed
	ExpiresAt   *time.Time `json:"expiration"` // nil until redeemed
	Duration    *int       `json:"duration_override,omitempty"`
}

// EffectiveDuration returns the child's validity window, preferring a
// per-child override over the family default.
func (c *ChildCode) EffectiveDuration(family *Family) time.Duration {
	minutes := family.Duration
	if c.Duration != nil {
		minutes = *c.Duration
	}
	return time.Duration(minutes) * time.Minute
}

// HashCode computes the hex SHA-256 digest of a plaintext code.
func HashCode(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
