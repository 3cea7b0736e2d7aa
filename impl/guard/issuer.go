package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gatebot/entity"
	"gatebot/lib/retry"
	"gatebot/lib/sl"
)

// LinkIssuer turns a user's entry request into exactly one valid,
// bounded-lifetime, single-use invite link.
type LinkIssuer struct {
	store    CredentialStore
	settings SettingStore
	platform Platform
	conf     Config
	log      *slog.Logger
	clock    func() time.Time
	policy   retry.Policy
}

func NewLinkIssuer(store CredentialStore, settings SettingStore, platform Platform, conf Config, log *slog.Logger) *LinkIssuer {
	return &LinkIssuer{
		store:    store,
		settings: settings,
		platform: platform,
		conf:     conf,
		log:      log.With(sl.Module("guard.issuer")),
		clock:    time.Now,
		policy: retry.Policy{
			Attempts:   3,
			JitterMin:  300 * time.Millisecond,
			JitterMax:  1200 * time.Millisecond,
			RetryDelay: 2 * time.Second,
			Terminal: func(err error) bool {
				return errors.Is(err, ErrForbidden)
			},
		},
	}
}

// RequestLink issues a fresh invite credential for the user.
//
// Failure paths perform no state change: ErrNotConfigured when the
// guarded chat is unset, ErrDuplicateRequest inside the debounce
// window, RateLimitedError inside the cooldown, ErrForbidden when the
// bot lacks rights in the chat. Transient platform failures are
// retried under the bounded policy before being surfaced.
//
// On success the rate-limit mark and the credential are upserted, the
// credential replacing any previous one for the same user.
func (i *LinkIssuer) RequestLink(ctx context.Context, userId int64) (*entity.Credential, error) {
	chatId, err := GuardedChat(ctx, i.settings)
	if err != nil {
		return nil, err
	}

	now := i.clock()
	mark, err := i.store.RateLimitMark(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("read rate mark: %w", err)
	}
	if mark != nil {
		elapsed := now.Sub(mark.LastIssuedAt)
		if elapsed < i.conf.LockWindow {
			return nil, ErrDuplicateRequest
		}
		if elapsed < i.conf.Cooldown {
			return nil, &RateLimitedError{RetryAfter: i.conf.Cooldown - elapsed}
		}
	}

	expireAt := now.Add(i.conf.LinkTTL)
	var link string
	err = retry.Do(ctx, i.policy, func() error {
		var callErr error
		link, callErr = i.platform.CreateSingleUseInvite(ctx, chatId, expireAt)
		return callErr
	})
	if err != nil {
		i.log.Warn("creating invite link",
			slog.Int64("user_id", userId),
			sl.Err(err),
		)
		return nil, err
	}

	if err = i.store.UpsertRateLimitMark(ctx, &entity.RateLimitMark{
		UserId:       userId,
		LastIssuedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("record rate mark: %w", err)
	}

	cred := &entity.Credential{
		UserId:     userId,
		InviteLink: link,
		IssuedAt:   now,
		ExpireAt:   expireAt,
	}
	if err = i.store.UpsertCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("record credential: %w", err)
	}

	i.log.Info("link issued",
		slog.Int64("user_id", userId),
		slog.Time("expire_at", expireAt),
	)
	return cred, nil
}
