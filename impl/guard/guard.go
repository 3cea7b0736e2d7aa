// Package guard implements the invite-link admission control core:
// issuing short-lived single-use invite links and reverting chat joins
// that do not present an issued, unexpired, unconsumed link.
//
//   - issuer.go    — LinkIssuer: cooldown, debounce, invite creation, credential upsert
//   - joinguard.go — JoinGuard: per-event admission decision and eviction
//   - sweeper.go   — periodic deletion of expired credentials
//
// The package talks to the outside world only through the interfaces
// below, so the bot and the storage layer stay replaceable in tests.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gatebot/entity"
)

// CredentialStore persists issued credentials and rate-limit marks,
// both keyed by user id. Implemented by internal/database. The store
// must be shared between processes; an in-memory map would break the
// one-credential-per-user invariant under multi-process deployment.
type CredentialStore interface {
	Credential(ctx context.Context, userId int64) (*entity.Credential, error)
	UpsertCredential(ctx context.Context, cred *entity.Credential) error
	// ConsumeCredential deletes the user's credential only if the stored
	// invite link still equals the given one, and reports whether a row
	// was deleted. The conditional delete anchors the accept path: a
	// credential replaced by a concurrent re-issue fails the condition.
	ConsumeCredential(ctx context.Context, userId int64, inviteLink string) (bool, error)
	DeleteExpiredCredentials(ctx context.Context, before time.Time) (int64, error)
	RateLimitMark(ctx context.Context, userId int64) (*entity.RateLimitMark, error)
	UpsertRateLimitMark(ctx context.Context, mark *entity.RateLimitMark) error
}

// SettingStore resolves bot configuration stored outside the process.
// An empty value means the setting is absent.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// Platform is the messaging-platform surface the guard needs.
// Implemented by the bot package over the Telegram API.
type Platform interface {
	CreateSingleUseInvite(ctx context.Context, chatId int64, expireAt time.Time) (string, error)
	BanMember(ctx context.Context, chatId, userId int64) error
	UnbanMember(ctx context.Context, chatId, userId int64) error
}

// Config holds the temporal policy of the gate.
type Config struct {
	LinkTTL    time.Duration // validity window of an issued link
	Cooldown   time.Duration // minimum pause between issued links per user
	LockWindow time.Duration // debounce window for duplicate clicks
	Grace      time.Duration // tolerance past expiry for join-event latency
}

var (
	// ErrNotConfigured means the guarded chat id setting is absent.
	ErrNotConfigured = errors.New("guarded chat is not configured")
	// ErrForbidden means the bot lacks admin rights in the guarded chat.
	ErrForbidden = errors.New("no admin rights in the guarded chat")
	// ErrDuplicateRequest marks a request inside the debounce window;
	// callers treat it as an accidental double click and stay silent.
	ErrDuplicateRequest = errors.New("duplicate link request")
)

// RateLimitedError rejects a request made before the cooldown elapsed.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// GuardedChat resolves the configured chat id from the setting store.
func GuardedChat(ctx context.Context, settings SettingStore) (int64, error) {
	value, err := settings.GetSetting(ctx, entity.SettingPrivateChatId)
	if err != nil {
		return 0, fmt.Errorf("read setting: %w", err)
	}
	if value == "" {
		return 0, ErrNotConfigured
	}
	chatId, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid chat id %q", ErrNotConfigured, value)
	}
	return chatId, nil
}
