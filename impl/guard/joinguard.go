package guard

import (
	"context"
	"errors"
	"log/slog"

	"gatebot/entity"
	"gatebot/lib/sl"
)

// Decision is the outcome of evaluating one membership update.
type Decision int

const (
	DecisionIgnored Decision = iota
	DecisionAccepted
	DecisionEvicted
)

func (d Decision) String() string {
	switch d {
	case DecisionAccepted:
		return "accepted"
	case DecisionEvicted:
		return "evicted"
	default:
		return "ignored"
	}
}

// JoinGuard decides, per membership update of the guarded chat,
// whether a new member is allowed to stay. The decision is stateless
// across events: a pure function of the current store and the event.
type JoinGuard struct {
	store    CredentialStore
	settings SettingStore
	platform Platform
	conf     Config
	log      *slog.Logger
}

func NewJoinGuard(store CredentialStore, settings SettingStore, platform Platform, conf Config, log *slog.Logger) *JoinGuard {
	return &JoinGuard{
		store:    store,
		settings: settings,
		platform: platform,
		conf:     conf,
		log:      log.With(sl.Module("guard.join")),
	}
}

// HandleJoin evaluates one membership update. Events that do not put
// a user into the guarded chat are ignored. A join is accepted only
// when it presents the exact link stored for that user, within the
// validity window plus grace, and the credential can be consumed.
// Everything else is evicted.
func (g *JoinGuard) HandleJoin(ctx context.Context, event entity.JoinEvent) (Decision, error) {
	if !event.IsPresent() {
		return DecisionIgnored, nil
	}

	chatId, err := GuardedChat(ctx, g.settings)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return DecisionIgnored, nil
		}
		return DecisionIgnored, err
	}
	if event.ChatId != chatId {
		return DecisionIgnored, nil
	}

	if g.validate(ctx, event) {
		g.log.Info("join accepted",
			slog.Int64("user_id", event.UserId),
			slog.String("username", event.Username),
		)
		return DecisionAccepted, nil
	}

	g.evict(ctx, event)
	return DecisionEvicted, nil
}

// validate checks the event against the stored credential and, when it
// matches, consumes the credential. Consumption is a conditional delete
// on (user, link): if a concurrent re-issue replaced the credential
// after our read, the delete misses and the join is rejected without
// touching the fresh credential. Store failures reject the join; the
// gate fails closed.
func (g *JoinGuard) validate(ctx context.Context, event entity.JoinEvent) bool {
	cred, err := g.store.Credential(ctx, event.UserId)
	if err != nil {
		g.log.Error("reading credential", slog.Int64("user_id", event.UserId), sl.Err(err))
		return false
	}
	if cred == nil {
		return false
	}
	if event.InviteLink == "" || event.InviteLink != cred.InviteLink {
		return false
	}
	if event.ObservedAt.After(cred.ExpireAt.Add(g.conf.Grace)) {
		return false
	}

	consumed, err := g.store.ConsumeCredential(ctx, event.UserId, cred.InviteLink)
	if err != nil {
		g.log.Error("consuming credential", slog.Int64("user_id", event.UserId), sl.Err(err))
		return false
	}
	return consumed
}

// evict removes the joiner with a ban and immediately lifts it, so the
// user is only thrown out, not permanently barred, and may request a
// legitimate link later. Both calls are best-effort without retries:
// the dominant failure is missing admin rights, which retrying cannot
// fix, and there is no recipient to report the failure to.
func (g *JoinGuard) evict(ctx context.Context, event entity.JoinEvent) {
	if err := g.platform.BanMember(ctx, event.ChatId, event.UserId); err != nil {
		g.log.Warn("banning member", slog.Int64("user_id", event.UserId), sl.Err(err))
	}
	if err := g.platform.UnbanMember(ctx, event.ChatId, event.UserId); err != nil {
		g.log.Warn("unbanning member", slog.Int64("user_id", event.UserId), sl.Err(err))
	}
	g.log.Info("evicted unauthorized join",
		slog.Int64("user_id", event.UserId),
		slog.String("username", event.Username),
		slog.String("status", event.Status),
	)
}
