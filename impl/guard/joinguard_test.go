package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatebot/entity"
)

func newTestGuard(store *fakeStore, platform *fakePlatform) *JoinGuard {
	return NewJoinGuard(store, newFakeSettings(guardedChatId), platform, testConfig(), testLogger())
}

func storedCredential(store *fakeStore, issuedAt time.Time) *entity.Credential {
	cred := &entity.Credential{
		UserId:     42,
		InviteLink: "https://t.me/+abc123",
		IssuedAt:   issuedAt,
		ExpireAt:   issuedAt.Add(15 * time.Second),
	}
	store.creds[42] = cred
	return cred
}

func joinEvent(cred *entity.Credential, observedAt time.Time) entity.JoinEvent {
	return entity.JoinEvent{
		ChatId:     guardedChatId,
		UserId:     42,
		Username:   "alice",
		Status:     entity.StatusMember,
		InviteLink: cred.InviteLink,
		ObservedAt: observedAt,
	}
}

func TestHandleJoinAcceptsWithinGrace(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := newTestGuard(store, platform)

	issuedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	cred := storedCredential(store, issuedAt)

	// expire_at + grace is the last accepted instant: t=25 for a link
	// issued at t=0 with ttl 15s and grace 10s.
	decision, err := g.HandleJoin(context.Background(), joinEvent(cred, cred.ExpireAt.Add(10*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, DecisionAccepted, decision)

	assert.Empty(t, platform.banned)
	assert.Nil(t, store.creds[42], "credential must be consumed on accept")
}

func TestHandleJoinRejectsAfterGrace(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := newTestGuard(store, platform)

	issuedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	cred := storedCredential(store, issuedAt)

	decision, err := g.HandleJoin(context.Background(), joinEvent(cred, cred.ExpireAt.Add(11*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, DecisionEvicted, decision)

	assert.Equal(t, []int64{42}, platform.banned)
	assert.Equal(t, []int64{42}, platform.unbanned)
	assert.NotNil(t, store.creds[42], "expired credential is left to the sweeper")
}

func TestHandleJoinRejectsWrongLink(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := newTestGuard(store, platform)

	issuedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	cred := storedCredential(store, issuedAt)

	event := joinEvent(cred, issuedAt.Add(5*time.Second))
	event.InviteLink = "https://t.me/+someone-elses"

	decision, err := g.HandleJoin(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DecisionEvicted, decision)
	assert.NotNil(t, store.creds[42])
}

func TestHandleJoinRejectsWithoutLink(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := newTestGuard(store, platform)

	issuedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	cred := storedCredential(store, issuedAt)

	event := joinEvent(cred, issuedAt.Add(5*time.Second))
	event.InviteLink = ""

	decision, err := g.HandleJoin(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DecisionEvicted, decision)
}

func TestHandleJoinRejectsWithoutCredential(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := newTestGuard(store, platform)

	event := entity.JoinEvent{
		ChatId:     guardedChatId,
		UserId:     42,
		Status:     entity.StatusMember,
		InviteLink: "https://t.me/+abc123",
		ObservedAt: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
	}

	decision, err := g.HandleJoin(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DecisionEvicted, decision)
	assert.Equal(t, []int64{42}, platform.banned)
}

func TestHandleJoinEnforcesOneTimeUse(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := newTestGuard(store, platform)

	issuedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	cred := storedCredential(store, issuedAt)
	event := joinEvent(cred, issuedAt.Add(5*time.Second))

	decision, err := g.HandleJoin(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, DecisionAccepted, decision)

	// Same link presented again after consumption.
	decision, err = g.HandleJoin(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DecisionEvicted, decision)
}

func TestHandleJoinRejectsSupersededLink(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := newTestGuard(store, platform)

	issuedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	old := storedCredential(store, issuedAt)
	oldEvent := joinEvent(old, issuedAt.Add(5*time.Second))

	// A newer link replaced the stored credential before the join for
	// the old one arrived.
	store.creds[42] = &entity.Credential{
		UserId:     42,
		InviteLink: "https://t.me/+fresh",
		IssuedAt:   issuedAt.Add(2 * time.Second),
		ExpireAt:   issuedAt.Add(17 * time.Second),
	}

	decision, err := g.HandleJoin(context.Background(), oldEvent)
	require.NoError(t, err)
	assert.Equal(t, DecisionEvicted, decision)
	assert.Equal(t, "https://t.me/+fresh", store.creds[42].InviteLink)
}

func TestHandleJoinRejectsWhenConsumeMisses(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := newTestGuard(store, platform)

	issuedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	cred := storedCredential(store, issuedAt)
	event := joinEvent(cred, issuedAt.Add(5*time.Second))

	// Simulate a re-issue racing between the guard's read and its
	// conditional delete: the fresh credential must survive.
	store.consumeHook = func() {
		store.creds[42] = &entity.Credential{
			UserId:     42,
			InviteLink: "https://t.me/+fresh",
			IssuedAt:   issuedAt.Add(4 * time.Second),
			ExpireAt:   issuedAt.Add(19 * time.Second),
		}
	}

	decision, err := g.HandleJoin(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DecisionEvicted, decision)
	assert.Equal(t, "https://t.me/+fresh", store.creds[42].InviteLink)
}

func TestHandleJoinIgnoresAbsentStatuses(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := newTestGuard(store, platform)

	for _, status := range []string{entity.StatusLeft, entity.StatusKicked, "administrator"} {
		event := entity.JoinEvent{
			ChatId:     guardedChatId,
			UserId:     42,
			Status:     status,
			ObservedAt: time.Now(),
		}
		decision, err := g.HandleJoin(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, DecisionIgnored, decision, "status %q", status)
	}
	assert.Empty(t, platform.banned)
}

func TestHandleJoinIgnoresForeignChat(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := newTestGuard(store, platform)

	issuedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	cred := storedCredential(store, issuedAt)
	event := joinEvent(cred, issuedAt.Add(5*time.Second))
	event.ChatId = guardedChatId + 1

	decision, err := g.HandleJoin(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DecisionIgnored, decision)
	assert.NotNil(t, store.creds[42])
}

func TestHandleJoinIgnoredWhenUnconfigured(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{}
	g := NewJoinGuard(store, newFakeSettings(0), platform, testConfig(), testLogger())

	event := entity.JoinEvent{
		ChatId:     guardedChatId,
		UserId:     42,
		Status:     entity.StatusMember,
		ObservedAt: time.Now(),
	}
	decision, err := g.HandleJoin(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DecisionIgnored, decision)
}

func TestHandleJoinSwallowsEvictionFailures(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{
		banErr:   errors.New("not enough rights"),
		unbanErr: errors.New("not enough rights"),
	}
	g := newTestGuard(store, platform)

	event := entity.JoinEvent{
		ChatId:     guardedChatId,
		UserId:     42,
		Status:     entity.StatusRestricted,
		ObservedAt: time.Now(),
	}
	decision, err := g.HandleJoin(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DecisionEvicted, decision)
	assert.Equal(t, []int64{42}, platform.banned)
	assert.Equal(t, []int64{42}, platform.unbanned)
}

func TestSweeperRemovesExpired(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	store.creds[1] = &entity.Credential{UserId: 1, InviteLink: "a", ExpireAt: now.Add(-time.Minute)}
	store.creds[2] = &entity.Credential{UserId: 2, InviteLink: "b", ExpireAt: now.Add(time.Minute)}

	s := NewSweeper(store, testConfig(), time.Minute, testLogger())
	s.clock = func() time.Time { return now }
	s.sweep()

	assert.Nil(t, store.creds[1])
	assert.NotNil(t, store.creds[2])
}
