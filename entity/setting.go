package entity

import (
	"net/http"

	"gatebot/lib/validate"
)

// SettingPrivateChatId stores the id of the chat guarded by the bot.
// Absence of the setting is a normal not-yet-configured state.
const SettingPrivateChatId = "private_chat_id"

// Setting is one key-value row of bot configuration kept in the database.
type Setting struct {
	Key   string `json:"key" bson:"key" validate:"required"`
	Value string `json:"value" bson:"value" validate:"required"`
}

func (s *Setting) Bind(_ *http.Request) error {
	return validate.Struct(s)
}

// Status is the operational snapshot returned by the admin API.
type Status struct {
	Env               string `json:"env"`
	ChatConfigured    bool   `json:"chat_configured"`
	ActiveCredentials int64  `json:"active_credentials"`
	KnownUsers        int64  `json:"known_users"`
}
