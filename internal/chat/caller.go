package chat

import "kataba/internal/guest"

// Caller identifies who is sending a message. It is either Authenticated or
// Guest.
type Caller interface {
	isCaller()
}

// Authenticated is a signed-in user. Their conversation is persisted.
type Authenticated struct {
	OwnerID int64
}

// Guest is an anonymous visitor bound by a message quota. Nothing a guest
// sends is persisted server-side.
type Guest struct {
	Quota *guest.Tracker
}

func (Authenticated) isCaller() {}

func (Guest) isCaller() {}
