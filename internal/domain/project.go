package domain

import "time"

// Project belongs to one client. The invite code, when set, is unique and
// matched case-insensitively.
type Project struct {
	ID         int64
	ClientID   int64
	Name       string
	InviteCode *string
	IsActive   bool
	CreatedAt  time.Time
}
