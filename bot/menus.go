package bot

import (
	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// Command lists for Telegram's menu button (the "/" icon in the chat
// input). The default scope covers everyone; the admin gets an
// extended menu via BotCommandScopeChat.

var commandsUser = []tgbotapi.BotCommand{
	{Command: "start", Description: "Welcome and overview"},
	{Command: "link", Description: "Get a personal invite link"},
	{Command: "bots", Description: "List of bots"},
	{Command: "sites", Description: "Current sites"},
	{Command: "help", Description: "Show available commands"},
}

var commandsAdmin = []tgbotapi.BotCommand{
	{Command: "start", Description: "Welcome and overview"},
	{Command: "link", Description: "Get a personal invite link"},
	{Command: "bots", Description: "List of bots"},
	{Command: "sites", Description: "Current sites"},
	{Command: "setchat", Description: "Set the guarded chat"},
	{Command: "addbot", Description: "Add a bot to the list"},
	{Command: "removebot", Description: "Remove a bot"},
	{Command: "addsite", Description: "Add a site"},
	{Command: "removesite", Description: "Remove a site"},
	{Command: "settings", Description: "Show configuration"},
	{Command: "broadcast", Description: "Message all known users"},
	{Command: "help", Description: "Show available commands"},
}

func (t *TgBot) setDefaultCommands() {
	_, err := t.api.SetMyCommands(commandsUser, &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeDefault{},
	})
	if err != nil {
		t.log.Warn("setting default commands", "error", err)
	}
}

func (t *TgBot) setAdminCommands() {
	if t.config.AdminId == 0 {
		return
	}
	_, err := t.api.SetMyCommands(commandsAdmin, &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeChat{ChatId: t.config.AdminId},
	})
	if err != nil {
		t.log.Warn("setting admin commands", "chat_id", t.config.AdminId, "error", err)
	}
}
