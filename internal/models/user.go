package models

import "time"

// User is an internal member identity that payouts are addressed to.
type User struct {
	ID            string    `json:"id"`
	Handle        string    `json:"handle"`
	WalletAddress *string   `json:"walletAddress,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PlatformIdentity links an external platform account to an internal user.
// Curation resolution goes through this mapping.
type PlatformIdentity struct {
	Platform       string    `json:"platform"`
	PlatformUserID string    `json:"platformUserId"`
	UserID         string    `json:"userId"`
	VerifiedAt     time.Time `json:"verifiedAt"`
}
