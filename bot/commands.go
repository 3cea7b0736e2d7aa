package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"gatebot/impl/guard"
)

func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	t.registerUser(ctx.EffectiveUser)

	bots, err := t.db.Bots(context.Background())
	if err != nil {
		t.reportError(chatId, "/start", err)
		return nil
	}
	sites, err := t.db.Sites(context.Background())
	if err != nil {
		t.reportError(chatId, "/start", err)
		return nil
	}

	name := ctx.EffectiveUser.FirstName
	if name == "" {
		name = "there"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Hi, %s\\!\n\n", Sanitize(name)))
	sb.WriteString("*Available bots:*\n")
	sb.WriteString(formatList("", bots))
	sb.WriteString("\n\n*Current sites:*\n")
	sb.WriteString(formatList("", sites))
	sb.WriteString("\n\nThis bot hands out personal access to a private chat\\.\n")
	sb.WriteString("*How it works:*\n")
	sb.WriteString("1\\. Send /link\n")
	sb.WriteString("2\\. The link is valid for a few seconds and admits one member\n")
	sb.WriteString("3\\. A new link is available after the cooldown\n")

	if t.requireAdmin(chatId) {
		sb.WriteString("\n*Admin commands:*\n")
		sb.WriteString("`/setchat <id>` \\- set the guarded chat\n")
		sb.WriteString("`/addbot <bot>` `/removebot <bot>`\n")
		sb.WriteString("`/addsite <url>` `/removesite <url>`\n")
		sb.WriteString("`/settings` \\- show configuration\n")
		sb.WriteString("`/broadcast <text>` \\- message all known users")
	} else {
		sb.WriteString("\n*Your commands:*\n")
		sb.WriteString("`/link` \\- get a personal invite link\n")
		sb.WriteString("`/bots` \\- list of bots\n")
		sb.WriteString("`/sites` \\- current sites")
	}

	t.sendWelcome(chatId, sb.String())
	return nil
}

// link is the entry request: the issuer enforces configuration,
// debounce and cooldown, creates the invite and records the
// credential; this handler only translates outcomes into messages.
func (t *TgBot) link(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil || t.issuer == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	t.registerUser(ctx.EffectiveUser)

	cred, err := t.issuer.RequestLink(context.Background(), chatId)
	if err != nil {
		var rateErr *guard.RateLimitedError
		switch {
		case errors.Is(err, guard.ErrDuplicateRequest):
			// Double click, stay silent.
		case errors.Is(err, guard.ErrNotConfigured):
			t.plainResponse(chatId, "The private chat is not configured yet\\. Try again later\\.")
		case errors.Is(err, guard.ErrForbidden):
			t.plainResponse(chatId, "I have no admin rights in the private chat\\. An admin has to fix this first\\.")
		case errors.As(err, &rateErr):
			wait := rateErr.RetryAfter.Round(time.Second)
			t.plainResponse(chatId, fmt.Sprintf(
				"You already requested a link\\. Next one available in %s\\.",
				Sanitize(wait.String()),
			))
		default:
			t.reportError(chatId, "/link", err)
		}
		return nil
	}

	ttl := int(cred.ExpireAt.Sub(cred.IssuedAt).Seconds())
	t.sendWithKeyboard(chatId,
		fmt.Sprintf("Your personal invite link\\. Valid for %d seconds, one entry only\\.", ttl),
		buildJoinKeyboard(cred.InviteLink),
	)
	return nil
}

func (t *TgBot) bots(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	list, err := t.db.Bots(context.Background())
	if err != nil {
		t.reportError(chatId, "/bots", err)
		return nil
	}
	t.plainResponse(chatId, "*Available bots:*\n"+formatList("", list))
	return nil
}

func (t *TgBot) sites(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	list, err := t.db.Sites(context.Background())
	if err != nil {
		t.reportError(chatId, "/sites", err)
		return nil
	}
	t.plainResponse(chatId, "*Current sites:*\n"+formatList("", list))
	return nil
}

func (t *TgBot) help(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id

	var sb strings.Builder
	sb.WriteString("*Available Commands*\n\n")
	sb.WriteString("`/start` \\- Welcome and overview\n")
	sb.WriteString("`/link` \\- Get a personal invite link\n")
	sb.WriteString("`/bots` \\- List of bots\n")
	sb.WriteString("`/sites` \\- Current sites\n")
	sb.WriteString("`/help` \\- Show this help\n")

	if t.requireAdmin(chatId) {
		sb.WriteString("\n*Admin Commands:*\n")
		sb.WriteString("`/setchat <id>` \\- Set the guarded chat\n")
		sb.WriteString("`/addbot <bot>` \\- Add a bot to the list\n")
		sb.WriteString("`/removebot <bot>` \\- Remove a bot\n")
		sb.WriteString("`/addsite <url>` \\- Add a site\n")
		sb.WriteString("`/removesite <url>` \\- Remove a site\n")
		sb.WriteString("`/settings` \\- Show configuration\n")
		sb.WriteString("`/broadcast <text>` \\- Message all known users\n")
	}

	t.plainResponse(chatId, sb.String())
	return nil
}

func buildJoinKeyboard(inviteLink string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{{
			{Text: "Join the chat", Url: inviteLink},
		}},
	}
}

// sendWelcome attaches the welcome image when one is configured.
func (t *TgBot) sendWelcome(chatId int64, caption string) {
	if t.config.WelcomeImage == "" {
		t.plainResponse(chatId, caption)
		return
	}
	_, err := t.api.SendPhoto(chatId, tgbotapi.InputFileByURL(t.config.WelcomeImage), &tgbotapi.SendPhotoOpts{
		Caption:   caption,
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.plainResponse(chatId, caption)
	}
}
