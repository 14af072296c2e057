package handlers

import (
	"net/http"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/jmgilman/go/errors"
)

// SignatureHandler exposes the signing subsystem over HTTP.
type SignatureHandler struct {
	orchestrator *services.Orchestrator
	tokens       *services.TokenService
	zones        *services.ZoneService
	records      *services.RecordService
}

func NewSignatureHandler(
	orchestrator *services.Orchestrator,
	tokens *services.TokenService,
	zones *services.ZoneService,
	records *services.RecordService,
) *SignatureHandler {
	return &SignatureHandler{
		orchestrator: orchestrator,
		tokens:       tokens,
		zones:        zones,
		records:      records,
	}
}

// httpStatus maps platform error codes onto HTTP statuses. Conflicts get
// their own status so the client can prompt a reload instead of a retry.
func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeForbidden, errors.CodeUnauthorized:
		return http.StatusForbidden
	case errors.CodeConflict:
		return http.StatusConflict
	case services.CodeExpired, services.CodeAlreadyUsed, services.CodeExhausted:
		return http.StatusGone
	case errors.CodeNetwork, errors.CodeTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	resp := errors.ToJSON(err)
	c.JSON(httpStatus(errors.GetCode(err)), gin.H{
		"success": false,
		"message": resp.Message,
		"error":   resp,
	})
}

// Acknowledge opens a signing session after the signer confirms having read
// the document. Arriving with a token routes through token validation first.
func (h *SignatureHandler) Acknowledge(c *gin.Context) {
	var req models.AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Wrap(err, errors.CodeInvalidInput, "could not parse request body"))
		return
	}
	if req.Email == "" || (req.DocumentID == "" && req.Token == "") {
		fail(c, errors.New(errors.CodeInvalidInput, "email and documentId (or token) are required"))
		return
	}

	var sess *services.SigningSession
	var err error
	if req.Token != "" {
		sess, err = h.orchestrator.StartSessionFromToken(c.Request.Context(), req.Token, req.Email)
		if err != nil {
			fail(c, err)
			return
		}
	} else {
		sess = h.orchestrator.StartSession(req.DocumentID, req.Email)
	}
	if err := h.orchestrator.AcknowledgeReading(sess); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AcknowledgeResponse{Success: true, State: string(sess.State())})
}

// SendCode dispatches a verification code to a signer with an open session.
func (h *SignatureHandler) SendCode(c *gin.Context) {
	var req models.SendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Wrap(err, errors.CodeInvalidInput, "could not parse request body"))
		return
	}
	sess, err := h.orchestrator.Session(req.DocumentID, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.orchestrator.RequestCode(c.Request.Context(), sess, req.DocumentName); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SendCodeResponse{Success: true, Message: "verification code sent"})
}

// VerifyCode checks a submitted code and reports the signer's role.
func (h *SignatureHandler) VerifyCode(c *gin.Context) {
	var req models.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Wrap(err, errors.CodeInvalidInput, "could not parse request body"))
		return
	}
	sess, err := h.orchestrator.Session(req.DocumentID, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	verified, err := h.orchestrator.VerifyCode(c.Request.Context(), sess, req.Code)
	if err != nil {
		resp := errors.ToJSON(err)
		body := models.VerifyCodeResponse{Success: false, Message: resp.Message}
		if remaining, ok := resp.Context["attemptsRemaining"].(int); ok {
			body.AttemptsRemaining = remaining
		}
		c.JSON(httpStatus(errors.GetCode(err)), body)
		return
	}
	c.JSON(http.StatusOK, models.VerifyCodeResponse{Success: true, Role: verified.Role, Message: "email verified"})
}

// IssueToken creates a shareable signing link token (administrator action).
func (h *SignatureHandler) IssueToken(c *gin.Context) {
	var req models.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Wrap(err, errors.CodeInvalidInput, "could not parse request body"))
		return
	}
	if req.DocumentID == "" {
		fail(c, errors.New(errors.CodeInvalidInput, "documentId is required"))
		return
	}
	token, err := h.tokens.Issue(c.Request.Context(), req.DocumentID, req.CreatedBy)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.IssueTokenResponse{Success: true, Token: token.Token})
}

// ValidateToken resolves a shareable-link token to its document id.
func (h *SignatureHandler) ValidateToken(c *gin.Context) {
	tokenValue := c.Query("token")
	if tokenValue == "" {
		fail(c, errors.New(errors.CodeInvalidInput, "token query parameter is required"))
		return
	}
	documentID, err := h.tokens.Validate(c.Request.Context(), tokenValue)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ValidateTokenResponse{Success: true, DocumentID: documentID})
}

// Sign runs the stamping and persistence flow for a verified session.
func (h *SignatureHandler) Sign(c *gin.Context) {
	var req models.SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Wrap(err, errors.CodeInvalidInput, "could not parse request body"))
		return
	}
	if len(req.SignatureImage) == 0 {
		fail(c, errors.New(errors.CodeInvalidInput, "signatureImage is required"))
		return
	}
	sess, err := h.orchestrator.Session(req.DocumentID, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	signedURL, err := h.orchestrator.Sign(c.Request.Context(), sess, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SignResponse{Success: true, SignedURL: signedURL})
}

// Reset tears down a document's signature state (administrator action).
func (h *SignatureHandler) Reset(c *gin.Context) {
	var req models.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Wrap(err, errors.CodeInvalidInput, "could not parse request body"))
		return
	}
	if req.DocumentID == "" {
		fail(c, errors.New(errors.CodeInvalidInput, "documentId is required"))
		return
	}
	if err := h.records.Reset(c.Request.Context(), req.DocumentID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ResetResponse{Success: true})
}

// SaveZones stores the administrator's zone layout and signer allow-list.
func (h *SignatureHandler) SaveZones(c *gin.Context) {
	var req models.SaveZonesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Wrap(err, errors.CodeInvalidInput, "could not parse request body"))
		return
	}
	config := models.SignatureConfig{
		DocumentID: req.DocumentID,
		TotalPages: req.TotalPages,
		Zones:      req.Zones,
		Signers:    req.Signers,
	}
	if err := h.zones.SaveConfig(c.Request.Context(), config); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SaveZonesResponse{Success: true})
}

// GetZones returns a document's stored configuration.
func (h *SignatureHandler) GetZones(c *gin.Context) {
	config, err := h.zones.GetConfig(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

// Status is the point read of a document's signing state.
func (h *SignatureHandler) Status(c *gin.Context) {
	isSigned, record, err := h.records.Status(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{IsSigned: isSigned, Record: record})
}
