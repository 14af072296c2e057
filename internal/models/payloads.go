package models

// These structs define the JSON payloads for the HTTP surface exposed to the
// web client and the admin tooling.

// AcknowledgeRequest opens a signing session once the signer has read the
// document. Token is set when the signer arrived through a shareable link.
type AcknowledgeRequest struct {
	DocumentID string `json:"documentId"`
	Email      string `json:"email"`
	Token      string `json:"token,omitempty"`
}

// AcknowledgeResponse reports the session's state after acknowledgement.
type AcknowledgeResponse struct {
	Success bool   `json:"success"`
	State   string `json:"state"`
}

// SendCodeRequest asks for a verification code to be emailed to a signer.
type SendCodeRequest struct {
	Email        string `json:"email"`
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
}

// SendCodeResponse acknowledges the dispatch of a verification code.
type SendCodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VerifyCodeRequest submits the code the signer received by email.
type VerifyCodeRequest struct {
	Email      string `json:"email"`
	DocumentID string `json:"documentId"`
	Code       string `json:"code"`
}

// VerifyCodeResponse reports the verification outcome and, on success, the
// signer's role from the document allow-list.
type VerifyCodeResponse struct {
	Success           bool       `json:"success"`
	Role              SignerRole `json:"role,omitempty"`
	AttemptsRemaining int        `json:"attemptsRemaining,omitempty"`
	Message           string     `json:"message"`
}

// IssueTokenRequest creates a shareable signing link token for a document.
type IssueTokenRequest struct {
	DocumentID string `json:"documentId"`
	CreatedBy  string `json:"createdBy,omitempty"`
}

// IssueTokenResponse carries the opaque token back to the administrator.
type IssueTokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// ValidateTokenResponse resolves a shareable-link token to its document.
type ValidateTokenResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId,omitempty"`
	Message    string `json:"message,omitempty"`
}

// SignRequest carries everything needed to stamp and persist a signature.
// SignatureImage is the raw raster bytes (PNG or JPEG), base64 in JSON.
type SignRequest struct {
	DocumentID      string `json:"documentId"`
	Email           string `json:"email"`
	BaseDocumentURL string `json:"baseDocumentUrl"`
	SignerName      string `json:"signerName"`
	SignerDate      string `json:"signerDate"`
	SignatureImage  []byte `json:"signatureImage"`
}

// SignResponse returns the public URL of the signed artifact.
type SignResponse struct {
	Success   bool   `json:"success"`
	SignedURL string `json:"signedUrl,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ResetRequest tears down a document's signature state for re-signing.
type ResetRequest struct {
	DocumentID string `json:"documentId"`
}

// ResetResponse acknowledges a teardown.
type ResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is the point-read of a document's signing status.
type StatusResponse struct {
	IsSigned bool             `json:"isSigned"`
	Record   *SignatureRecord `json:"record,omitempty"`
}

// SaveZonesRequest stores the administrator's zone layout and signer
// allow-list for a document.
type SaveZonesRequest struct {
	DocumentID string             `json:"documentId"`
	TotalPages int                `json:"totalPages"`
	Zones      []SignatureZone    `json:"zones"`
	Signers    []AuthorizedSigner `json:"signers"`
}

// SaveZonesResponse acknowledges a configuration write.
type SaveZonesResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
