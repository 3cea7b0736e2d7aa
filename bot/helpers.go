package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"gatebot/entity"
	"gatebot/lib/retry"
	"gatebot/lib/sl"
)

const maxTelegramMessageLen = 4096

// plainResponse sends a MarkdownV2 message under the bounded retry
// policy, falling back to plain text when the markup is rejected.
func (t *TgBot) plainResponse(chatId int64, text string) {
	if text == "" {
		t.log.With("id", chatId).Debug("empty message")
		return
	}
	for _, part := range splitMessage(text, maxTelegramMessageLen) {
		t.sendPart(chatId, part)
	}
}

func (t *TgBot) sendPart(chatId int64, text string) {
	err := retry.Do(context.Background(), t.sendPolicy, func() error {
		_, sendErr := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
			ParseMode: "MarkdownV2",
		})
		return sendErr
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Error("sending safe message", sl.Err(err))
		}
	}
}

// sendWithKeyboard sends a message with an inline keyboard attached.
func (t *TgBot) sendWithKeyboard(chatId int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if text == "" {
		return
	}
	err := retry.Do(context.Background(), t.sendPolicy, func() error {
		_, sendErr := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
			ParseMode:   "MarkdownV2",
			ReplyMarkup: keyboard,
		})
		return sendErr
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message with keyboard", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
			ReplyMarkup: keyboard,
		})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Error("sending message with keyboard fallback", sl.Err(err))
		}
	}
}

func Sanitize(input string) string {
	reservedChars := "\\_{}#+-.!|()[]=*"
	sanitized := ""
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized += "\\" + string(char)
		} else {
			sanitized += string(char)
		}
	}
	return sanitized
}

func (t *TgBot) requireAdmin(chatId int64) bool {
	return t.config.AdminId != 0 && chatId == t.config.AdminId
}

// registerUser records first contact in the user directory. The store
// keeps only the first record per user, so repeated calls are cheap.
func (t *TgBot) registerUser(from *tgbotapi.User) {
	if t.db == nil || from == nil {
		return
	}
	user := &entity.User{
		UserId:    from.Id,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		FirstUsed: time.Now(),
	}
	if err := t.db.RegisterUser(context.Background(), user); err != nil {
		t.log.Warn("registering user", slog.Int64("user_id", from.Id), sl.Err(err))
		return
	}
	t.log.Debug("user seen", slog.String("user", user.DisplayName()))
}

func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		// Try to split at newline
		cutAt := maxLen
		nlIdx := strings.LastIndex(text[:maxLen], "\n")
		if nlIdx > 0 {
			cutAt = nlIdx + 1
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}

// formatList renders one line per entry, or a dash when empty.
func formatList(prefix string, entries []string) string {
	if len(entries) == 0 {
		return "—"
	}
	var sb strings.Builder
	for i, entry := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(prefix)
		sb.WriteString(Sanitize(entry))
	}
	return sb.String()
}

// reportError logs the error, notifies the admin with details, and
// sends a neutral message to the user.
func (t *TgBot) reportError(chatId int64, command string, err error) {
	t.log.Error("bot command failed",
		slog.String("command", command),
		slog.Int64("user_id", chatId),
		sl.Err(err),
	)
	if t.config.AdminId != 0 && t.config.AdminId != chatId {
		t.plainResponse(t.config.AdminId, fmt.Sprintf(
			"Command `%s` failed\nUser: `%d`\nError: `%s`",
			Sanitize(command), chatId, Sanitize(err.Error()),
		))
	}
	t.plainResponse(chatId, "Something went wrong\\. Please try again later\\.")
}
