package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/jmgilman/go/errors"
)

// SessionState is one step of a signing session.
type SessionState string

const (
	StateReading           SessionState = "READING"
	StateEmailVerification SessionState = "EMAIL_VERIFICATION"
	StateSignatureCapture  SessionState = "SIGNATURE_CAPTURE"
	StateStamping          SessionState = "STAMPING"
	StatePersisting        SessionState = "PERSISTING"
	StateDone              SessionState = "DONE"
	StateFailed            SessionState = "FAILED"
)

// SigningSession tracks one signer working through one document. Steps are
// strictly sequential: a step only opens after the previous one completed.
type SigningSession struct {
	mu         sync.Mutex
	documentID string
	email      string
	token      string
	role       models.SignerRole
	state      SessionState
	failReason string
	startedAt  time.Time
}

// State reports the session's current step.
func (s *SigningSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FailReason reports why a FAILED session failed.
func (s *SigningSession) FailReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failReason
}

// advance transitions from an expected state to the next one.
func (s *SigningSession) advance(from, to SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return errors.Newf(errors.CodeInvalidInput, "signing step out of order: session is %s, expected %s", s.state, from)
	}
	s.state = to
	return nil
}

func (s *SigningSession) fail(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDone {
		s.state = StateFailed
		s.failReason = reason
	}
}

// DocumentStamper is the stamping engine contract the signing flow needs.
type DocumentStamper interface {
	FetchDocument(ctx context.Context, url string) ([]byte, error)
	PageCount(pdf []byte) (int, error)
	Stamp(basePDF []byte, zones []models.SignatureZone, stamp SignerStamp) ([]byte, error)
}

// sessionTTL bounds how long an abandoned session stays in memory.
const sessionTTL = 2 * time.Hour

// Orchestrator composes the verification, stamping, and persistence
// components into the end-to-end signing flow and enforces its ordering.
type Orchestrator struct {
	otp     *OTPEngine
	tokens  *TokenService
	zones   *ZoneService
	stamper DocumentStamper
	records *RecordService

	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*SigningSession
}

func NewOrchestrator(otp *OTPEngine, tokens *TokenService, zones *ZoneService, stamper DocumentStamper, records *RecordService) *Orchestrator {
	return &Orchestrator{
		otp:      otp,
		tokens:   tokens,
		zones:    zones,
		stamper:  stamper,
		records:  records,
		now:      time.Now,
		sessions: make(map[string]*SigningSession),
	}
}

func sessionKey(documentID, email string) string {
	return documentID + "::" + strings.ToLower(strings.TrimSpace(email))
}

// StartSession opens a session in the READING state. An existing session for
// the same signer and document is replaced, and sessions past their lifetime
// are dropped on the way.
func (o *Orchestrator) StartSession(documentID, email string) *SigningSession {
	sess := &SigningSession{
		documentID: documentID,
		email:      strings.ToLower(strings.TrimSpace(email)),
		state:      StateReading,
		startedAt:  o.now(),
	}
	o.mu.Lock()
	o.pruneLocked()
	o.sessions[sessionKey(documentID, email)] = sess
	o.mu.Unlock()
	return sess
}

// pruneLocked drops sessions older than sessionTTL. Callers hold o.mu.
func (o *Orchestrator) pruneLocked() {
	cutoff := o.now().Add(-sessionTTL)
	for key, sess := range o.sessions {
		if sess.startedAt.Before(cutoff) {
			delete(o.sessions, key)
		}
	}
}

// StartSessionFromToken opens a session through a shareable link. The token
// is validated first and remembered so it can be consumed when the signing
// completes.
func (o *Orchestrator) StartSessionFromToken(ctx context.Context, tokenValue, email string) (*SigningSession, error) {
	documentID, err := o.tokens.Validate(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	sess := o.StartSession(documentID, email)
	sess.token = tokenValue
	return sess, nil
}

// Session resolves the live session for a signer and document.
func (o *Orchestrator) Session(documentID, email string) (*SigningSession, error) {
	o.mu.Lock()
	sess, ok := o.sessions[sessionKey(documentID, email)]
	o.mu.Unlock()
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "no signing session for this document, acknowledge the document first")
	}
	return sess, nil
}

// AcknowledgeReading records that the signer has read the document, opening
// the verification step.
func (o *Orchestrator) AcknowledgeReading(sess *SigningSession) error {
	return sess.advance(StateReading, StateEmailVerification)
}

// RequestCode dispatches a verification code. Only allowed once reading has
// been acknowledged.
func (o *Orchestrator) RequestCode(ctx context.Context, sess *SigningSession, documentName string) error {
	if sess.State() != StateEmailVerification {
		return errors.Newf(errors.CodeInvalidInput, "signing step out of order: acknowledge the document before requesting a code")
	}
	return o.otp.IssueCode(ctx, sess.email, sess.documentID, documentName)
}

// VerifyCode checks the submitted code and, on success, opens the capture
// step. Credential errors do not advance or fail the session; the signer can
// request a fresh code.
func (o *Orchestrator) VerifyCode(ctx context.Context, sess *SigningSession, code string) (*Verified, error) {
	if sess.State() != StateEmailVerification {
		return nil, errors.Newf(errors.CodeInvalidInput, "signing step out of order: acknowledge the document before verifying")
	}
	verified, err := o.otp.Verify(ctx, sess.email, sess.documentID, code)
	if err != nil {
		return nil, err
	}
	if err := sess.advance(StateEmailVerification, StateSignatureCapture); err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.role = verified.Role
	sess.mu.Unlock()
	return verified, nil
}

// Sign runs the captured signature through stamping and persistence. Either
// the uploaded artifact and its record both commit, or neither does: on a
// conflicting or failed record write the fresh blob is deleted again.
func (o *Orchestrator) Sign(ctx context.Context, sess *SigningSession, req models.SignRequest) (string, error) {
	if err := sess.advance(StateSignatureCapture, StateStamping); err != nil {
		return "", err
	}
	logCtx := slog.With("documentId", sess.documentID)

	signedURL, err := o.runSign(ctx, logCtx, sess, req)
	if err != nil {
		sess.fail(err.Error())
		// The failed session is dropped; the signer restarts from the
		// acknowledge step.
		o.mu.Lock()
		delete(o.sessions, sessionKey(sess.documentID, sess.email))
		o.mu.Unlock()
		return "", err
	}

	if sess.token != "" {
		if err := o.tokens.MarkUsed(ctx, sess.token); err != nil {
			logCtx.Warn("Failed to mark signing token used.", "error", err)
		}
	}

	o.mu.Lock()
	delete(o.sessions, sessionKey(sess.documentID, sess.email))
	o.mu.Unlock()

	logCtx.Info("Signing session complete.", "signedUrl", signedURL)
	return signedURL, nil
}

func (o *Orchestrator) runSign(ctx context.Context, logCtx *slog.Logger, sess *SigningSession, req models.SignRequest) (string, error) {
	// Read the record version before doing any work so a concurrent signer
	// who commits in the meantime surfaces as CONFLICT, not a lost update.
	version, err := o.records.CurrentVersion(ctx, sess.documentID)
	if err != nil {
		return "", err
	}

	base, err := o.stamper.FetchDocument(ctx, req.BaseDocumentURL)
	if err != nil {
		return "", err
	}
	pageCount, err := o.stamper.PageCount(base)
	if err != nil {
		return "", err
	}
	zones, err := o.zones.EffectiveZones(ctx, sess.documentID, pageCount)
	if err != nil {
		return "", err
	}

	signed, err := o.stamper.Stamp(base, zones, SignerStamp{
		Name:  req.SignerName,
		Date:  req.SignerDate,
		Image: req.SignatureImage,
	})
	if err != nil {
		return "", err
	}

	if err := sess.advance(StateStamping, StatePersisting); err != nil {
		return "", err
	}

	url, blobPath, err := o.records.Upload(ctx, sess.documentID, signed)
	if err != nil {
		return "", err
	}

	record := models.SignatureRecord{
		DocumentID:        sess.documentID,
		SignerName:        req.SignerName,
		SignerDate:        req.SignerDate,
		SignerRole:        sess.role,
		SignedAt:          time.Now(),
		SignedDocumentURL: url,
		BlobPath:          blobPath,
	}
	if err := o.records.Save(ctx, record, version); err != nil {
		if derr := o.records.DiscardUpload(ctx, blobPath); derr != nil {
			logCtx.Error("Failed to discard uncommitted artifact.", "blobPath", blobPath, "error", derr)
		}
		return "", err
	}

	if err := sess.advance(StatePersisting, StateDone); err != nil {
		return "", fmt.Errorf("session state corrupted after commit: %w", err)
	}
	return url, nil
}
