package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/google/uuid"

	"gatebot/impl/guard"
)

// platformAPI adapts the Bot API to the guard.Platform contract.
// Calls are raw and unretried: the issuer wraps invite creation in its
// own retry policy, and eviction failures are tolerated by the guard.
type platformAPI struct {
	api *tgbotapi.Bot
}

func (t *TgBot) Platform() guard.Platform {
	return &platformAPI{api: t.api}
}

func (p *platformAPI) CreateSingleUseInvite(_ context.Context, chatId int64, expireAt time.Time) (string, error) {
	link, err := p.api.CreateChatInviteLink(chatId, &tgbotapi.CreateChatInviteLinkOpts{
		Name:        "gate-" + uuid.New().String()[:8],
		ExpireDate:  expireAt.Unix(),
		MemberLimit: 1,
	})
	if err != nil {
		return "", mapTelegramError(err)
	}
	return link.InviteLink, nil
}

func (p *platformAPI) BanMember(_ context.Context, chatId, userId int64) error {
	_, err := p.api.BanChatMember(chatId, userId, nil)
	return mapTelegramError(err)
}

func (p *platformAPI) UnbanMember(_ context.Context, chatId, userId int64) error {
	_, err := p.api.UnbanChatMember(chatId, userId, &tgbotapi.UnbanChatMemberOpts{
		OnlyIfBanned: true,
	})
	return mapTelegramError(err)
}

// mapTelegramError translates Bot API failures into the guard
// taxonomy: 401/403 mean the bot lacks rights in the target chat and
// must not be retried.
func mapTelegramError(err error) error {
	if err == nil {
		return nil
	}
	var tgErr *tgbotapi.TelegramError
	if errors.As(err, &tgErr) && (tgErr.Code == 401 || tgErr.Code == 403) {
		return fmt.Errorf("%w: %s", guard.ErrForbidden, tgErr.Description)
	}
	return err
}

// sendTerminal reports Bot API rejections that retrying cannot fix:
// anything except rate limits and server-side errors. Plain network
// failures stay retryable.
func sendTerminal(err error) bool {
	var tgErr *tgbotapi.TelegramError
	if errors.As(err, &tgErr) {
		return tgErr.Code != 429 && tgErr.Code < 500
	}
	return false
}
