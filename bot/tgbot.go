// Package bot implements the Telegram surface of the gate bot.
//
// Architecture overview:
//   - tgbot.go    — TgBot struct, lifecycle (Start/Stop), Database interface
//   - commands.go — user commands: /start, /link, /bots, /sites, /help
//   - admin.go    — admin commands: /setchat, /addbot, /removebot, /addsite,
//     /removesite, /settings, /broadcast
//   - members.go  — chat_member updates handed to the join guard
//   - telegram.go — guard.Platform implementation over the Bot API
//   - helpers.go  — Sanitize, plainResponse, sendWithKeyboard, reportError
//   - menus.go    — command menus via Telegram's BotCommandScope API
//
// The admission-control logic itself lives in impl/guard; this package
// only translates Telegram updates into guard calls and guard results
// into messages.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"

	"gatebot/entity"
	"gatebot/impl/guard"
	"gatebot/lib/retry"
	"gatebot/lib/sl"
)

// BotConfig holds Telegram-specific configuration.
type BotConfig struct {
	AdminId      int64
	WelcomeImage string
}

// Database defines the storage operations the bot depends on.
// Implemented by internal/database.
type Database interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	RegisterUser(ctx context.Context, user *entity.User) error
	UserIds(ctx context.Context) ([]int64, error)
	Bots(ctx context.Context) ([]string, error)
	AddBot(ctx context.Context, username string) error
	RemoveBot(ctx context.Context, username string) error
	Sites(ctx context.Context) ([]string, error)
	AddSite(ctx context.Context, url string) error
	RemoveSite(ctx context.Context, url string) error
}

// TgBot is the central Telegram bot instance.
type TgBot struct {
	log        *slog.Logger
	api        *tgbotapi.Bot
	db         Database
	issuer     *guard.LinkIssuer
	guard      *guard.JoinGuard
	updater    *ext.Updater
	config     BotConfig
	sendPolicy retry.Policy
}

func NewTgBot(apiKey string, db Database, log *slog.Logger, cfg BotConfig) (*TgBot, error) {
	tgBot := &TgBot{
		log:    log.With(sl.Module("tgbot")),
		db:     db,
		config: cfg,
		sendPolicy: retry.Policy{
			Attempts:   3,
			JitterMin:  300 * time.Millisecond,
			JitterMax:  1200 * time.Millisecond,
			RetryDelay: 2 * time.Second,
			Terminal:   sendTerminal,
		},
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

// SetGuard connects the admission-control core. The issuer and the
// join guard are built over Platform(), so they cannot exist before
// the bot itself.
func (t *TgBot) SetGuard(issuer *guard.LinkIssuer, joinGuard *guard.JoinGuard) {
	t.issuer = issuer
	t.guard = joinGuard
}

func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	// User commands
	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("link", t.link))
	dispatcher.AddHandler(handlers.NewCommand("bots", t.bots))
	dispatcher.AddHandler(handlers.NewCommand("sites", t.sites))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))

	// Admin commands
	dispatcher.AddHandler(handlers.NewCommand("setchat", t.setchat))
	dispatcher.AddHandler(handlers.NewCommand("addbot", t.addbot))
	dispatcher.AddHandler(handlers.NewCommand("removebot", t.removebot))
	dispatcher.AddHandler(handlers.NewCommand("addsite", t.addsite))
	dispatcher.AddHandler(handlers.NewCommand("removesite", t.removesite))
	dispatcher.AddHandler(handlers.NewCommand("settings", t.settings))
	dispatcher.AddHandler(handlers.NewCommand("broadcast", t.broadcast))

	// Membership updates of the guarded chat
	dispatcher.AddHandler(handlers.NewChatMember(nil, t.onChatMember))

	t.setDefaultCommands()
	t.setAdminCommands()

	// chat_member updates are not delivered unless explicitly allowed.
	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout:        9,
			AllowedUpdates: []string{"message", "chat_member"},
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		t.updater.Stop()
	}
}
