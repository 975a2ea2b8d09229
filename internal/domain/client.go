package domain

import "time"

// Client is a company. It owns exactly one lazily-created thread in the
// operator workspace; all of its tickets share that thread.
type Client struct {
	ID        int64
	Name      string
	ThreadID  *int64
	ChannelID *int64
	CreatedAt time.Time
}

// PredefinedUser maps a known gateway username to a client so the user is
// bound automatically on first contact, without an invite code.
type PredefinedUser struct {
	ID        int64
	Username  string
	ClientID  int64
	CreatedAt time.Time
}
