package domain

import "time"

// UserBinding records a client user's membership in a project. A user may
// hold many bindings; the one with the most recent UpdatedAt is the current
// project. There is no separate "active" flag.
type UserBinding struct {
	ID          int64
	UserID      int64
	Username    string
	DisplayName string
	ProjectID   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
