package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/gcp"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/services"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/store"
)

var (
	tokenService *services.TokenService
	once         sync.Once
	initErr      error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Registered under the entry point name configured on the scheduler job.
	functions.HTTP("SweepExpiredTokens", sweepExpiredTokens)
}

// main is required by the Go Functions Framework.
func main() {}

func initTokenService(ctx context.Context) (*services.TokenService, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return services.NewTokenService(store.NewFirestoreStore(firestoreClient)), nil
}

// sweepExpiredTokens is invoked by Cloud Scheduler. Expired token deletes
// are idempotent, so overlapping invocations are harmless.
func sweepExpiredTokens(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		tokenService, initErr = initTokenService(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization.", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	swept, err := tokenService.SweepExpired(r.Context())
	if err != nil {
		slog.Error("Token sweep failed.", "error", err)
		http.Error(w, "Internal Server Error: sweep failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "swept": swept})
}
