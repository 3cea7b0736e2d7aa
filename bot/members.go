package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"gatebot/entity"
	"gatebot/impl/guard"
	"gatebot/lib/sl"
)

// onChatMember forwards membership updates to the join guard. The
// guard decides whether the new member presented a valid link and
// evicts otherwise; this handler only maps update fields to the event.
func (t *TgBot) onChatMember(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.guard == nil || ctx.ChatMember == nil {
		return nil
	}

	update := ctx.ChatMember
	member := update.NewChatMember.MergeChatMember()

	event := entity.JoinEvent{
		ChatId:     update.Chat.Id,
		UserId:     member.User.Id,
		Username:   member.User.Username,
		Status:     member.Status,
		ObservedAt: time.Unix(update.Date, 0),
	}
	if update.InviteLink != nil {
		event.InviteLink = update.InviteLink.InviteLink
	}

	decision, err := t.guard.HandleJoin(context.Background(), event)
	if err != nil {
		t.log.Warn("handling member update",
			slog.Int64("user_id", event.UserId),
			sl.Err(err),
		)
		return nil
	}
	if decision != guard.DecisionIgnored {
		t.log.Debug("member update handled",
			slog.Int64("user_id", event.UserId),
			slog.String("decision", decision.String()),
		)
	}
	return nil
}
