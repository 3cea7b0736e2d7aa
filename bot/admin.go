package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/google/uuid"

	"gatebot/entity"
	"gatebot/lib/retry"
	"gatebot/lib/sl"
)

// setchat stores the id of the chat the bot guards. The bot must be an
// admin of that chat with the invite-users right before /link works.
func (t *TgBot) setchat(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(chatId, "Usage: `/setchat <chat_id>`")
		return nil
	}

	guardedId, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		t.plainResponse(chatId, "Invalid chat id: "+Sanitize(args[1]))
		return nil
	}

	err = t.db.SetSetting(context.Background(), entity.SettingPrivateChatId, strconv.FormatInt(guardedId, 10))
	if err != nil {
		t.reportError(chatId, "/setchat", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("Guarded chat set to `%d`\\.", guardedId))
	return nil
}

func (t *TgBot) addbot(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.listCommand(ctx, "/addbot", "Usage: `/addbot <bot>`", func(arg string) error {
		return t.db.AddBot(context.Background(), arg)
	})
}

func (t *TgBot) removebot(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.listCommand(ctx, "/removebot", "Usage: `/removebot <bot>`", func(arg string) error {
		return t.db.RemoveBot(context.Background(), arg)
	})
}

func (t *TgBot) addsite(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.listCommand(ctx, "/addsite", "Usage: `/addsite <url>`", func(arg string) error {
		return t.db.AddSite(context.Background(), arg)
	})
}

func (t *TgBot) removesite(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.listCommand(ctx, "/removesite", "Usage: `/removesite <url>`", func(arg string) error {
		return t.db.RemoveSite(context.Background(), arg)
	})
}

// listCommand factors the shared shape of the four list-CRUD commands:
// admin check, single argument, one store call, confirmation.
func (t *TgBot) listCommand(ctx *ext.Context, command, usage string, action func(arg string) error) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(chatId, usage)
		return nil
	}

	if err := action(args[1]); err != nil {
		t.reportError(chatId, command, err)
		return nil
	}
	t.plainResponse(chatId, "Done: `"+Sanitize(args[1])+"`")
	return nil
}

func (t *TgBot) settings(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	guardedChat, err := t.db.GetSetting(context.Background(), entity.SettingPrivateChatId)
	if err != nil {
		t.reportError(chatId, "/settings", err)
		return nil
	}
	if guardedChat == "" {
		guardedChat = "not set"
	}

	bots, _ := t.db.Bots(context.Background())
	sites, _ := t.db.Sites(context.Background())
	users, _ := t.db.UserIds(context.Background())

	msg := fmt.Sprintf(
		"*Settings*\n"+
			"Guarded chat: `%s`\n"+
			"Bots: `%d`\n"+
			"Sites: `%d`\n"+
			"Known users: `%d`",
		Sanitize(guardedChat), len(bots), len(sites), len(users),
	)
	t.plainResponse(chatId, msg)
	return nil
}

// broadcast fans a message out to every user in the directory. Each
// delivery runs under the send retry policy; individual failures are
// counted, not fatal.
func (t *TgBot) broadcast(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	text := strings.TrimSpace(strings.TrimPrefix(ctx.EffectiveMessage.Text, "/broadcast"))
	if text == "" {
		t.plainResponse(chatId, "Usage: `/broadcast <text>`")
		return nil
	}

	userIds, err := t.db.UserIds(context.Background())
	if err != nil {
		t.reportError(chatId, "/broadcast", err)
		return nil
	}

	runId := uuid.New().String()[:8]
	log := t.log.With(slog.String("run", runId))
	log.Info("broadcast started", slog.Int("recipients", len(userIds)))

	sent, failed := 0, 0
	for _, userId := range userIds {
		err = retry.Do(context.Background(), t.sendPolicy, func() error {
			_, sendErr := t.api.SendMessage(userId, Sanitize(text), &tgbotapi.SendMessageOpts{
				ParseMode: "MarkdownV2",
			})
			return sendErr
		})
		if err != nil {
			failed++
			log.Warn("broadcast delivery failed", slog.Int64("user_id", userId), sl.Err(err))
			continue
		}
		sent++
	}

	log.Info("broadcast finished", slog.Int("sent", sent), slog.Int("failed", failed))
	t.plainResponse(chatId, fmt.Sprintf("Broadcast `%s` done: %d sent, %d failed\\.", runId, sent, failed))
	return nil
}
