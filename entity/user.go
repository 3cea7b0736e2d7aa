package entity

import "time"

// User is a directory record of everyone who ever talked to the bot.
// Written once on first contact; used for broadcast fan-out and stats.
type User struct {
	UserId    int64     `json:"user_id" bson:"user_id"`
	Username  string    `json:"username" bson:"username"`
	FirstName string    `json:"first_name" bson:"first_name"`
	LastName  string    `json:"last_name" bson:"last_name"`
	FirstUsed time.Time `json:"first_used" bson:"first_used"`
}

func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "unknown"
}
