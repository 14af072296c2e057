package models

import (
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
)

// SignerRole identifies which party a signature zone or signer belongs to.
type SignerRole string

const (
	RoleClient       SignerRole = "client"
	RoleCounterparty SignerRole = "counterparty"
)

// SignatureZone is a rectangular region on a document page where a signature
// stamp is rendered. Coordinates are percentages of the page box, with (x, y)
// measured from the top-left corner of the page.
type SignatureZone struct {
	ID         string     `firestore:"id" json:"id"`
	Label      string     `firestore:"label" json:"label"`
	Page       int        `firestore:"page" json:"page"`
	X          float64    `firestore:"x" json:"x"`
	Y          float64    `firestore:"y" json:"y"`
	Width      float64    `firestore:"width" json:"width"`
	Height     float64    `firestore:"height" json:"height"`
	SignerRole SignerRole `firestore:"signerRole" json:"signerRole"`
	Required   bool       `firestore:"required" json:"required"`
}

// NewSignatureZone validates the numeric ranges and role before handing back
// a zone. Zones read back from the store are assumed to have passed through
// here on the way in.
func NewSignatureZone(id, label string, page int, x, y, width, height float64, role SignerRole, required bool) (SignatureZone, error) {
	if page < 1 {
		return SignatureZone{}, errors.Newf(errors.CodeInvalidInput, "zone page must be >= 1, got %d", page)
	}
	if x < 0 || x > 100 || y < 0 || y > 100 {
		return SignatureZone{}, errors.Newf(errors.CodeInvalidInput, "zone position out of range: x=%.2f y=%.2f", x, y)
	}
	if width < 5 || width > 50 {
		return SignatureZone{}, errors.Newf(errors.CodeInvalidInput, "zone width must be within [5, 50], got %.2f", width)
	}
	if height < 5 || height > 30 {
		return SignatureZone{}, errors.Newf(errors.CodeInvalidInput, "zone height must be within [5, 30], got %.2f", height)
	}
	if role != RoleClient && role != RoleCounterparty {
		return SignatureZone{}, errors.Newf(errors.CodeInvalidInput, "unknown signer role %q", role)
	}
	return SignatureZone{
		ID:         id,
		Label:      label,
		Page:       page,
		X:          x,
		Y:          y,
		Width:      width,
		Height:     height,
		SignerRole: role,
		Required:   required,
	}, nil
}

// AuthorizedSigner is one entry of a document's signer allow-list.
type AuthorizedSigner struct {
	Email string     `firestore:"email" json:"email"`
	Role  SignerRole `firestore:"role" json:"role"`
}

// SignatureConfig is the administrator-configured signing layout for one
// document: the zones to stamp and the emails allowed to sign.
type SignatureConfig struct {
	DocumentID string             `firestore:"documentId" json:"documentId"`
	TotalPages int                `firestore:"totalPages" json:"totalPages"`
	Zones      []SignatureZone    `firestore:"zones" json:"zones"`
	Signers    []AuthorizedSigner `firestore:"signers" json:"signers"`
	UpdatedAt  time.Time          `firestore:"updatedAt" json:"updatedAt"`
}

// RoleFor returns the allow-list role for an email address. Lookup is
// case-insensitive on the email.
func (c *SignatureConfig) RoleFor(email string) (SignerRole, bool) {
	needle := strings.ToLower(strings.TrimSpace(email))
	for _, s := range c.Signers {
		if strings.ToLower(s.Email) == needle {
			return s.Role, true
		}
	}
	return "", false
}

// VerificationCode is a one-shot email verification credential. At most one
// live code exists per (email, documentId); reissuing overwrites the prior
// record.
type VerificationCode struct {
	Email      string    `firestore:"email"`
	DocumentID string    `firestore:"documentId"`
	Code       string    `firestore:"code"`
	Attempts   int       `firestore:"attempts"`
	ExpiresAt  time.Time `firestore:"expiresAt"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

// SecureToken is an opaque bearer credential for a shareable signing link.
type SecureToken struct {
	ID         string    `firestore:"id" json:"id"`
	DocumentID string    `firestore:"documentId" json:"documentId"`
	Token      string    `firestore:"token" json:"token"`
	CreatedBy  string    `firestore:"createdBy,omitempty" json:"createdBy,omitempty"`
	Used       bool      `firestore:"used" json:"used"`
	CreatedAt  time.Time `firestore:"createdAt" json:"createdAt"`
	ExpiresAt  time.Time `firestore:"expiresAt" json:"expiresAt"`
}

// Expired reports whether the token is past its lifetime at the given instant.
func (t *SecureToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// SignatureRecord is the current signed state of a document. Writing a new
// record replaces the visible state; Version backs the optimistic
// check-and-increment that rejects concurrent writers.
type SignatureRecord struct {
	DocumentID        string    `firestore:"documentId" json:"documentId"`
	SignerName        string    `firestore:"signerName" json:"signerName"`
	SignerDate        string    `firestore:"signerDate" json:"signerDate"`
	SignerRole        SignerRole `firestore:"signerRole" json:"signerRole"`
	SignedAt          time.Time `firestore:"signedAt" json:"signedAt"`
	SignedDocumentURL string    `firestore:"signedDocumentUrl" json:"signedDocumentUrl"`
	BlobPath          string    `firestore:"blobPath" json:"blobPath,omitempty"`
	Version           int64     `firestore:"version" json:"version"`
}
