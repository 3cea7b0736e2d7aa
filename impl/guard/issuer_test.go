package guard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatebot/entity"
)

const guardedChatId int64 = -1001234567890

func testConfig() Config {
	return Config{
		LinkTTL:    15 * time.Second,
		Cooldown:   1800 * time.Second,
		LockWindow: 3 * time.Second,
		Grace:      10 * time.Second,
	}
}

func newTestIssuer(store *fakeStore, settings *fakeSettings, platform *fakePlatform) (*LinkIssuer, time.Time) {
	issued := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	issuer := NewLinkIssuer(store, settings, platform, testConfig(), testLogger())
	issuer.clock = func() time.Time { return issued }
	immediatePolicy(issuer)
	return issuer, issued
}

func TestRequestLinkIssuesCredential(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{link: "https://t.me/+abc123"}
	issuer, now := newTestIssuer(store, newFakeSettings(guardedChatId), platform)

	cred, err := issuer.RequestLink(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), cred.UserId)
	assert.Equal(t, "https://t.me/+abc123", cred.InviteLink)
	assert.Equal(t, now, cred.IssuedAt)
	assert.Equal(t, now.Add(15*time.Second), cred.ExpireAt)

	require.Len(t, platform.invites, 1)
	assert.Equal(t, guardedChatId, platform.invites[0].chatId)
	assert.Equal(t, now.Add(15*time.Second), platform.invites[0].expireAt)

	require.NotNil(t, store.creds[42])
	require.NotNil(t, store.marks[42])
	assert.Equal(t, now, store.marks[42].LastIssuedAt)
}

func TestRequestLinkNotConfigured(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{link: "https://t.me/+abc123"}
	issuer, _ := newTestIssuer(store, newFakeSettings(0), platform)

	_, err := issuer.RequestLink(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotConfigured)

	assert.Empty(t, platform.invites)
	assert.Zero(t, store.credUpserts)
	assert.Zero(t, store.markUpserts)
}

func TestRequestLinkCooldown(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{link: "https://t.me/+abc123"}
	issuer, now := newTestIssuer(store, newFakeSettings(guardedChatId), platform)

	// Last link issued 5 seconds ago: past the debounce window, well
	// inside the 1800s cooldown.
	store.marks[42] = &entity.RateLimitMark{UserId: 42, LastIssuedAt: now.Add(-5 * time.Second)}

	_, err := issuer.RequestLink(context.Background(), 42)

	var rateErr *RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 1795*time.Second, rateErr.RetryAfter)

	assert.Empty(t, platform.invites)
	assert.Zero(t, store.credUpserts)
	assert.Zero(t, store.markUpserts)
}

func TestRequestLinkDebounce(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{link: "https://t.me/+abc123"}
	issuer, now := newTestIssuer(store, newFakeSettings(guardedChatId), platform)

	store.marks[42] = &entity.RateLimitMark{UserId: 42, LastIssuedAt: now.Add(-time.Second)}

	_, err := issuer.RequestLink(context.Background(), 42)
	require.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Empty(t, platform.invites)
}

func TestRequestLinkAfterCooldownElapsed(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{link: "https://t.me/+new"}
	issuer, now := newTestIssuer(store, newFakeSettings(guardedChatId), platform)

	store.marks[42] = &entity.RateLimitMark{UserId: 42, LastIssuedAt: now.Add(-1800 * time.Second)}

	cred, err := issuer.RequestLink(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/+new", cred.InviteLink)
	assert.Equal(t, now, store.marks[42].LastIssuedAt)
}

func TestRequestLinkForbiddenIsNotRetried(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{
		inviteErr: fmt.Errorf("%w: bot is not a member", ErrForbidden),
		failures:  -1,
	}
	issuer, _ := newTestIssuer(store, newFakeSettings(guardedChatId), platform)

	_, err := issuer.RequestLink(context.Background(), 42)
	require.ErrorIs(t, err, ErrForbidden)

	assert.Len(t, platform.invites, 1)
	assert.Zero(t, store.credUpserts)
	assert.Zero(t, store.markUpserts)
}

func TestRequestLinkRetriesTransientFailures(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{
		link:      "https://t.me/+abc123",
		inviteErr: errors.New("request timeout"),
		failures:  2,
	}
	issuer, _ := newTestIssuer(store, newFakeSettings(guardedChatId), platform)

	cred, err := issuer.RequestLink(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/+abc123", cred.InviteLink)
	assert.Len(t, platform.invites, 3)
}

func TestRequestLinkGivesUpAfterRetries(t *testing.T) {
	store := newFakeStore()
	transient := errors.New("request timeout")
	platform := &fakePlatform{inviteErr: transient, failures: -1}
	issuer, _ := newTestIssuer(store, newFakeSettings(guardedChatId), platform)

	_, err := issuer.RequestLink(context.Background(), 42)
	require.ErrorIs(t, err, transient)

	assert.Len(t, platform.invites, 3)
	assert.Zero(t, store.credUpserts)
}

func TestRequestLinkReplacesPreviousCredential(t *testing.T) {
	store := newFakeStore()
	platform := &fakePlatform{link: "https://t.me/+second"}
	issuer, now := newTestIssuer(store, newFakeSettings(guardedChatId), platform)

	store.creds[42] = &entity.Credential{
		UserId:     42,
		InviteLink: "https://t.me/+first",
		IssuedAt:   now.Add(-2000 * time.Second),
		ExpireAt:   now.Add(-1985 * time.Second),
	}
	store.marks[42] = &entity.RateLimitMark{UserId: 42, LastIssuedAt: now.Add(-2000 * time.Second)}

	cred, err := issuer.RequestLink(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/+second", cred.InviteLink)
	assert.Equal(t, "https://t.me/+second", store.creds[42].InviteLink)
}
