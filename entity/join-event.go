// Package entity defines domain types shared across the application.
package entity

import "time"

// Member statuses reported by chat_member updates. Only statuses
// meaning "the user is now present in the chat" are evaluated by the
// join guard; transitions like leaving or being banned are not.
const (
	StatusMember     = "member"
	StatusRestricted = "restricted"
	StatusLeft       = "left"
	StatusKicked     = "kicked"
)

// JoinEvent is the guard-facing view of a membership update.
type JoinEvent struct {
	ChatId     int64
	UserId     int64
	Username   string
	Status     string
	InviteLink string // link the member joined with, empty if none reported
	ObservedAt time.Time
}

func (e JoinEvent) IsPresent() bool {
	return e.Status == StatusMember || e.Status == StatusRestricted
}
