package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/api"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/gcp"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/services"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		slog.Error("PROJECT_ID environment variable must be set")
		os.Exit(1)
	}
	bucket := gcp.GetEnv("SIGNED_DOCUMENTS_BUCKET", "")
	if bucket == "" {
		slog.Error("SIGNED_DOCUMENTS_BUCKET environment variable must be set")
		os.Exit(1)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		slog.Error("Failed to create Firestore client.", "error", err)
		os.Exit(1)
	}
	defer firestoreClient.Close()

	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		slog.Error("Failed to create Storage client.", "error", err)
		os.Exit(1)
	}
	defer storageClient.Close()

	records := store.NewFirestoreStore(firestoreClient)
	blobs := store.NewGCSBlobStore(storageClient, bucket)

	var mailer services.Mailer
	if relay := gcp.GetEnv("MAIL_RELAY_URL", ""); relay != "" {
		mailer = services.NewWebhookMailer(relay, gcp.GetEnv("MAIL_RELAY_KEY", ""))
	} else {
		slog.Warn("MAIL_RELAY_URL not set, verification mails will only be logged.")
		mailer = services.LogMailer{}
	}

	otp := services.NewOTPEngine(records, mailer)
	tokens := services.NewTokenService(records)
	zones := services.NewZoneService(records)
	stamper := services.NewStamper()
	recordSvc := services.NewRecordService(records, blobs, zones)
	orchestrator := services.NewOrchestrator(otp, tokens, zones, stamper, recordSvc)

	router := api.NewRouter(orchestrator, tokens, zones, recordSvc)
	router.SetupRoutes()

	port := gcp.GetEnv("PORT", "8080")
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router.Engine(),
	}

	go func() {
		slog.Info("Signature API listening.", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed.", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed.", "error", err)
	}
	slog.Info("Server stopped.")
}
