package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/services"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkMailer struct {
	sent int
	last string
}

func (m *sinkMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.sent++
	m.last = to
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *store.MemoryStore, *sinkMailer) {
	t.Helper()
	records := store.NewMemoryStore()
	blobs := store.NewMemoryBlobStore()
	mailer := &sinkMailer{}

	otp := services.NewOTPEngine(records, mailer)
	tokens := services.NewTokenService(records)
	zones := services.NewZoneService(records)
	recordSvc := services.NewRecordService(records, blobs, zones)
	orch := services.NewOrchestrator(otp, tokens, zones, services.NewStamper(), recordSvc)

	router := NewRouter(orch, tokens, zones, recordSvc)
	router.SetupRoutes()
	return router.Engine(), records, mailer
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := newTestRouter(t)
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenIssueAndValidateOverHTTP(t *testing.T) {
	h, _, _ := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/signature/token/issue", models.IssueTokenRequest{
		DocumentID: "contrat-moe",
		CreatedBy:  "admin",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var issued models.IssueTokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)

	w = doJSON(t, h, http.MethodGet, "/signature/token/validate?token="+issued.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var validated models.ValidateTokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &validated))
	assert.Equal(t, "contrat-moe", validated.DocumentID)

	// Unknown tokens map onto 404.
	w = doJSON(t, h, http.MethodGet, "/signature/token/validate?token=bogus", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Missing token parameter maps onto 400.
	w = doJSON(t, h, http.MethodGet, "/signature/token/validate", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestZonesRoundTripOverHTTP(t *testing.T) {
	h, _, _ := newTestRouter(t)

	zone, err := models.NewSignatureZone("z1", "Signature client", 3, 10, 80, 25, 10, models.RoleClient, true)
	require.NoError(t, err)

	w := doJSON(t, h, http.MethodPost, "/signature/zones", models.SaveZonesRequest{
		DocumentID: "contrat-moe",
		TotalPages: 3,
		Zones:      []models.SignatureZone{zone},
		Signers:    []models.AuthorizedSigner{{Email: "c@x.com", Role: models.RoleClient}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/signature/zones/contrat-moe", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var config models.SignatureConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &config))
	require.Len(t, config.Zones, 1)
	assert.Equal(t, "z1", config.Zones[0].ID)

	w = doJSON(t, h, http.MethodGet, "/signature/zones/unknown-doc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestZonesRejectOutOfRangeGeometry(t *testing.T) {
	h, _, _ := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/signature/zones", models.SaveZonesRequest{
		DocumentID: "contrat-moe",
		TotalPages: 3,
		Zones: []models.SignatureZone{
			{ID: "bad", Page: 1, X: 10, Y: 80, Width: 90, Height: 10, SignerRole: models.RoleClient},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusOfUnsignedDocument(t *testing.T) {
	h, _, _ := newTestRouter(t)

	w := doJSON(t, h, http.MethodGet, "/signature/status/contrat-moe", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.IsSigned)
	assert.Nil(t, status.Record)
}

func TestAcknowledgeThenSendCodeFlow(t *testing.T) {
	h, records, mailer := newTestRouter(t)

	// Seed the allow-list the verification step consults.
	config := models.SignatureConfig{
		DocumentID: "contrat-moe",
		TotalPages: 2,
		Signers:    []models.AuthorizedSigner{{Email: "c@x.com", Role: models.RoleClient}},
	}
	require.NoError(t, records.Set(context.Background(), store.CollectionSignatureConfigs, "contrat-moe", config))

	// Sending a code without a session is out of order.
	w := doJSON(t, h, http.MethodPost, "/signature/code/send", models.SendCodeRequest{
		Email: "c@x.com", DocumentID: "contrat-moe", DocumentName: "Contrat",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, mailer.sent)

	w = doJSON(t, h, http.MethodPost, "/signature/acknowledge", models.AcknowledgeRequest{
		DocumentID: "contrat-moe", Email: "c@x.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodPost, "/signature/code/send", models.SendCodeRequest{
		Email: "c@x.com", DocumentID: "contrat-moe", DocumentName: "Contrat",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, mailer.sent)
	assert.Equal(t, "c@x.com", mailer.last)

	// Unlisted signers are rejected before any mail goes out.
	w = doJSON(t, h, http.MethodPost, "/signature/acknowledge", models.AcknowledgeRequest{
		DocumentID: "contrat-moe", Email: "stranger@x.com",
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, h, http.MethodPost, "/signature/code/send", models.SendCodeRequest{
		Email: "stranger@x.com", DocumentID: "contrat-moe", DocumentName: "Contrat",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 1, mailer.sent)
}

func TestResetRequiresDocumentID(t *testing.T) {
	h, _, _ := newTestRouter(t)
	w := doJSON(t, h, http.MethodPost, "/signature/reset", models.ResetRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorBodyShape(t *testing.T) {
	h, _, _ := newTestRouter(t)
	w := doJSON(t, h, http.MethodGet, "/signature/token/validate?token=bogus", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var body struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Message)
	assert.NotEmpty(t, body.Error, fmt.Sprintf("error detail missing in %s", w.Body.String()))
}
