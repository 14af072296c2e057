package services

import (
	"context"
	"testing"
	"time"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/store"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateToken(t *testing.T) {
	records := store.NewMemoryStore()
	svc := NewTokenService(records)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "contrat-moe", "admin@x.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.NotContains(t, token.Token, "contrat-moe")
	assert.InDelta(t, 24*time.Hour.Seconds(), time.Until(token.ExpiresAt).Seconds(), 5)

	documentID, err := svc.Validate(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, "contrat-moe", documentID)

	// Validation alone does not consume the token.
	documentID, err = svc.Validate(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, "contrat-moe", documentID)
}

func TestValidateUnknownToken(t *testing.T) {
	svc := NewTokenService(store.NewMemoryStore())

	_, err := svc.Validate(context.Background(), "no-such-token")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestValidateExpiredTokenDeletesRecord(t *testing.T) {
	records := store.NewMemoryStore()
	svc := NewTokenService(records)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "contrat-moe", "")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	_, err = svc.Validate(ctx, token.Token)
	require.Error(t, err)
	assert.Equal(t, CodeExpired, errors.GetCode(err))

	// The record is gone; a second validation reports NotFound.
	_, err = svc.Validate(ctx, token.Token)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestMarkUsedBlocksFurtherValidation(t *testing.T) {
	records := store.NewMemoryStore()
	svc := NewTokenService(records)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "contrat-moe", "")
	require.NoError(t, err)
	require.NoError(t, svc.MarkUsed(ctx, token.Token))

	_, err = svc.Validate(ctx, token.Token)
	require.Error(t, err)
	assert.Equal(t, CodeAlreadyUsed, errors.GetCode(err))
}

func TestRevokeToken(t *testing.T) {
	records := store.NewMemoryStore()
	svc := NewTokenService(records)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "contrat-moe", "")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, token.Token))

	_, err = svc.Validate(ctx, token.Token)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	// Revoking again is a no-op.
	require.NoError(t, svc.Revoke(ctx, token.Token))
}

func TestSweepExpiredRemovesOnlyExpired(t *testing.T) {
	records := store.NewMemoryStore()
	svc := NewTokenService(records)
	ctx := context.Background()

	live, err := svc.Issue(ctx, "doc-live", "")
	require.NoError(t, err)

	// Issue two tokens in the past so they are expired by the time of the sweep.
	svc.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }
	expired1, err := svc.Issue(ctx, "doc-a", "")
	require.NoError(t, err)
	expired2, err := svc.Issue(ctx, "doc-b", "")
	require.NoError(t, err)
	svc.now = time.Now

	swept, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	_, err = svc.Validate(ctx, expired1.Token)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	_, err = svc.Validate(ctx, expired2.Token)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	documentID, err := svc.Validate(ctx, live.Token)
	require.NoError(t, err)
	assert.Equal(t, "doc-live", documentID)
}

func TestTokenExpiredHelper(t *testing.T) {
	now := time.Now()
	token := models.SecureToken{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, token.Expired(now))
	assert.True(t, token.Expired(now.Add(time.Minute)))
	assert.True(t, token.Expired(now.Add(2*time.Minute)))
}
