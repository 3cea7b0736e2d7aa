package entity

import "time"

// Credential is the record of one issued invite link for one user.
// At most one credential per user exists at a time: issuing a new link
// replaces the previous row, which makes the old link unusable even
// inside its remaining validity window.
type Credential struct {
	UserId     int64     `json:"user_id" bson:"user_id"`
	InviteLink string    `json:"invite_link" bson:"invite_link"`
	IssuedAt   time.Time `json:"issued_at" bson:"issued_at"`
	ExpireAt   time.Time `json:"expire_at" bson:"expire_at"`
}

// RateLimitMark remembers when a user last received a link.
// Updated only on successful issuance, never on rejected requests.
type RateLimitMark struct {
	UserId       int64     `bson:"user_id"`
	LastIssuedAt time.Time `bson:"last_issued_at"`
}
