package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/store"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"golang.org/x/sync/errgroup"
)

const tokenTTL = 24 * time.Hour

// TokenService issues and validates the opaque bearer tokens behind
// shareable signing links. Records are keyed by the token value itself so
// validation is a point read.
type TokenService struct {
	records store.RecordStore
	now     func() time.Time
}

func NewTokenService(records store.RecordStore) *TokenService {
	return &TokenService{records: records, now: time.Now}
}

// Issue creates a 24h token for a document. The token value is 32 bytes of
// CSPRNG output and carries no relationship to the document id.
func (s *TokenService) Issue(ctx context.Context, documentID, createdBy string) (*models.SecureToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	token := models.SecureToken{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Token:      base64.RawURLEncoding.EncodeToString(raw),
		CreatedBy:  createdBy,
		Used:       false,
		CreatedAt:  now,
		ExpiresAt:  now.Add(tokenTTL),
	}
	if err := s.records.Set(ctx, store.CollectionSecureTokens, token.Token, token); err != nil {
		return nil, err
	}
	slog.Info("Secure token issued.", "documentId", documentID, "tokenId", token.ID)
	return &token, nil
}

// Validate resolves a token to its document. Expired tokens are deleted on
// sight; tokens consumed by a completed signing fail with ALREADY_USED.
func (s *TokenService) Validate(ctx context.Context, tokenValue string) (string, error) {
	var token models.SecureToken
	if err := s.records.Get(ctx, store.CollectionSecureTokens, tokenValue, &token); err != nil {
		return "", err
	}

	if token.Expired(s.now()) {
		_ = s.records.Delete(ctx, store.CollectionSecureTokens, tokenValue)
		return "", errors.Newf(CodeExpired, "signing link has expired, request a new one")
	}
	if token.Used {
		return "", errors.Newf(CodeAlreadyUsed, "signing link was already used")
	}
	return token.DocumentID, nil
}

// MarkUsed flags a token after the signing flow it gated has completed.
// Subsequent Validate calls fail with ALREADY_USED.
func (s *TokenService) MarkUsed(ctx context.Context, tokenValue string) error {
	var token models.SecureToken
	if err := s.records.Get(ctx, store.CollectionSecureTokens, tokenValue, &token); err != nil {
		return err
	}
	token.Used = true
	return s.records.Set(ctx, store.CollectionSecureTokens, tokenValue, token)
}

// Revoke deletes a token on administrator demand.
func (s *TokenService) Revoke(ctx context.Context, tokenValue string) error {
	return s.records.Delete(ctx, store.CollectionSecureTokens, tokenValue)
}

// SweepExpired scans the token collection and deletes every entry past its
// expiry. Deletes are idempotent, so the sweep is safe to run concurrently
// with Issue and Validate.
func (s *TokenService) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	var expired []string
	err := s.records.List(ctx, store.CollectionSecureTokens, func(key string, decode func(out any) error) error {
		var token models.SecureToken
		if err := decode(&token); err != nil {
			slog.Warn("Skipping undecodable token record during sweep.", "key", key, "error", err)
			return nil
		}
		if token.Expired(now) {
			expired = append(expired, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(10)
	for _, key := range expired {
		eg.Go(func() error {
			return s.records.Delete(gctx, store.CollectionSecureTokens, key)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, fmt.Errorf("token sweep failed: %w", err)
	}
	if len(expired) > 0 {
		slog.Info("Expired tokens swept.", "count", len(expired))
	}
	return len(expired), nil
}
