package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/store"
	"github.com/jmgilman/go/errors"
)

const (
	codeTTL     = 10 * time.Minute
	maxAttempts = 3
)

// OTPEngine issues and validates the one-shot email verification codes that
// gate the signing flow. A code is bound to (email, documentId); every
// terminal outcome deletes the underlying record.
type OTPEngine struct {
	records store.RecordStore
	mailer  Mailer
	now     func() time.Time
}

func NewOTPEngine(records store.RecordStore, mailer Mailer) *OTPEngine {
	return &OTPEngine{
		records: records,
		mailer:  mailer,
		now:     time.Now,
	}
}

// Verified is the successful outcome of a code check.
type Verified struct {
	Role models.SignerRole
}

func codeKey(email, documentID string) string {
	return fmt.Sprintf("%s::%s", documentID, strings.ToLower(strings.TrimSpace(email)))
}

// IssueCode generates a fresh 6-digit code, persists it with a 10 minute
// TTL, and dispatches it by email. Any live code for the same
// (email, documentId) is superseded by the write.
func (e *OTPEngine) IssueCode(ctx context.Context, email, documentID, documentName string) error {
	logCtx := slog.With("documentId", documentID)

	authorized, _, err := e.IsAuthorized(ctx, email, documentID)
	if err != nil {
		return err
	}
	if !authorized {
		logCtx.Warn("Refused to issue code for unauthorized email.")
		return errors.Newf(errors.CodeForbidden, "email is not on the signer list for this document")
	}

	code, err := randomCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}

	now := e.now()
	record := models.VerificationCode{
		Email:      strings.ToLower(strings.TrimSpace(email)),
		DocumentID: documentID,
		Code:       code,
		Attempts:   0,
		CreatedAt:  now,
		ExpiresAt:  now.Add(codeTTL),
	}
	if err := e.records.Set(ctx, store.CollectionVerificationCodes, codeKey(email, documentID), record); err != nil {
		return err
	}

	subject := fmt.Sprintf("Code de vérification — %s", documentName)
	body := verificationMailBody(code, documentName)
	if err := e.mailer.Send(ctx, email, subject, body); err != nil {
		logCtx.Error("Failed to dispatch verification mail.", "error", err)
		return err
	}
	logCtx.Info("Verification code issued.")
	return nil
}

// Verify checks a submitted code. The record is deleted on success, on
// expiry, and on attempt exhaustion; only a plain mismatch with budget left
// keeps it alive.
func (e *OTPEngine) Verify(ctx context.Context, email, documentID, inputCode string) (*Verified, error) {
	key := codeKey(email, documentID)

	var record models.VerificationCode
	if err := e.records.Get(ctx, store.CollectionVerificationCodes, key, &record); err != nil {
		return nil, err
	}

	if e.now().After(record.ExpiresAt) {
		_ = e.records.Delete(ctx, store.CollectionVerificationCodes, key)
		return nil, errors.Newf(CodeExpired, "verification code has expired, request a new one")
	}

	if record.Attempts >= maxAttempts {
		_ = e.records.Delete(ctx, store.CollectionVerificationCodes, key)
		return nil, errors.Newf(CodeExhausted, "too many failed attempts, request a new code")
	}

	record.Attempts++
	if err := e.records.Set(ctx, store.CollectionVerificationCodes, key, record); err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(inputCode)) != 1 {
		remaining := maxAttempts - record.Attempts
		if remaining <= 0 {
			_ = e.records.Delete(ctx, store.CollectionVerificationCodes, key)
			return nil, errors.Newf(CodeExhausted, "too many failed attempts, request a new code")
		}
		err := errors.Newf(errors.CodeInvalidInput, "incorrect verification code")
		return nil, errors.WithContext(err, "attemptsRemaining", remaining)
	}

	if err := e.records.Delete(ctx, store.CollectionVerificationCodes, key); err != nil {
		return nil, err
	}

	_, role, err := e.IsAuthorized(ctx, email, documentID)
	if err != nil {
		return nil, err
	}
	slog.Info("Signer verified.", "documentId", documentID, "role", role)
	return &Verified{Role: role}, nil
}

// IsAuthorized consults the document's signer allow-list. Emails are matched
// case-insensitively.
func (e *OTPEngine) IsAuthorized(ctx context.Context, email, documentID string) (bool, models.SignerRole, error) {
	var config models.SignatureConfig
	err := e.records.Get(ctx, store.CollectionSignatureConfigs, documentID, &config)
	if err != nil {
		if errors.GetCode(err) == errors.CodeNotFound {
			return false, "", nil
		}
		return false, "", err
	}
	role, ok := config.RoleFor(email)
	return ok, role, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func verificationMailBody(code, documentName string) string {
	return fmt.Sprintf(
		`<p>Votre code de vérification pour le document <strong>%s</strong> :</p>
<p style="font-size:24px;letter-spacing:4px;"><strong>%s</strong></p>
<p>Ce code expire dans 10 minutes.</p>`,
		documentName, code)
}
