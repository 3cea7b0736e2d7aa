package guard

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"time"

	"gatebot/entity"
)

// In-memory test doubles for the store and platform contracts.

type fakeStore struct {
	creds map[int64]*entity.Credential
	marks map[int64]*entity.RateLimitMark

	credErr    error
	markErr    error
	consumeErr error
	// consumeHook, when set, runs before the conditional delete and can
	// simulate a concurrent re-issue between read and delete.
	consumeHook func()

	credUpserts int
	markUpserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		creds: make(map[int64]*entity.Credential),
		marks: make(map[int64]*entity.RateLimitMark),
	}
}

func (s *fakeStore) Credential(_ context.Context, userId int64) (*entity.Credential, error) {
	if s.credErr != nil {
		return nil, s.credErr
	}
	cred, ok := s.creds[userId]
	if !ok {
		return nil, nil
	}
	copied := *cred
	return &copied, nil
}

func (s *fakeStore) UpsertCredential(_ context.Context, cred *entity.Credential) error {
	if s.credErr != nil {
		return s.credErr
	}
	s.credUpserts++
	copied := *cred
	s.creds[cred.UserId] = &copied
	return nil
}

func (s *fakeStore) ConsumeCredential(_ context.Context, userId int64, inviteLink string) (bool, error) {
	if s.consumeErr != nil {
		return false, s.consumeErr
	}
	if s.consumeHook != nil {
		s.consumeHook()
	}
	cred, ok := s.creds[userId]
	if !ok || cred.InviteLink != inviteLink {
		return false, nil
	}
	delete(s.creds, userId)
	return true, nil
}

func (s *fakeStore) DeleteExpiredCredentials(_ context.Context, before time.Time) (int64, error) {
	var removed int64
	for id, cred := range s.creds {
		if cred.ExpireAt.Before(before) {
			delete(s.creds, id)
			removed++
		}
	}
	return removed, nil
}

func (s *fakeStore) RateLimitMark(_ context.Context, userId int64) (*entity.RateLimitMark, error) {
	if s.markErr != nil {
		return nil, s.markErr
	}
	mark, ok := s.marks[userId]
	if !ok {
		return nil, nil
	}
	copied := *mark
	return &copied, nil
}

func (s *fakeStore) UpsertRateLimitMark(_ context.Context, mark *entity.RateLimitMark) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.markUpserts++
	copied := *mark
	s.marks[mark.UserId] = &copied
	return nil
}

type fakeSettings struct {
	values map[string]string
	err    error
}

func newFakeSettings(chatId int64) *fakeSettings {
	values := make(map[string]string)
	if chatId != 0 {
		values[entity.SettingPrivateChatId] = strconv.FormatInt(chatId, 10)
	}
	return &fakeSettings{values: values}
}

func (s *fakeSettings) GetSetting(_ context.Context, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.values[key], nil
}

type inviteCall struct {
	chatId   int64
	expireAt time.Time
}

type fakePlatform struct {
	link      string
	inviteErr error
	// failures controls CreateSingleUseInvite: a positive value fails
	// that many calls with inviteErr before succeeding, -1 fails always.
	failures int

	invites  []inviteCall
	banned   []int64
	unbanned []int64
	banErr   error
	unbanErr error
}

func (p *fakePlatform) CreateSingleUseInvite(_ context.Context, chatId int64, expireAt time.Time) (string, error) {
	p.invites = append(p.invites, inviteCall{chatId: chatId, expireAt: expireAt})
	if p.failures != 0 {
		if p.failures > 0 {
			p.failures--
		}
		return "", p.inviteErr
	}
	return p.link, nil
}

func (p *fakePlatform) BanMember(_ context.Context, _ int64, userId int64) error {
	p.banned = append(p.banned, userId)
	return p.banErr
}

func (p *fakePlatform) UnbanMember(_ context.Context, _ int64, userId int64) error {
	p.unbanned = append(p.unbanned, userId)
	return p.unbanErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// immediatePolicy removes delays from the issuer's retry policy so
// tests do not sleep.
func immediatePolicy(issuer *LinkIssuer) {
	issuer.policy.JitterMin = 0
	issuer.policy.JitterMax = 0
	issuer.policy.RetryDelay = 0
}
