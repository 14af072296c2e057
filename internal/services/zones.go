package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/store"
	"github.com/jmgilman/go/errors"
)

// ZoneService manages the administrator-configured signature layout for each
// document.
type ZoneService struct {
	records store.RecordStore
}

func NewZoneService(records store.RecordStore) *ZoneService {
	return &ZoneService{records: records}
}

// SaveConfig validates every zone through the factory before persisting, so
// nothing out of range ever reaches the store.
func (s *ZoneService) SaveConfig(ctx context.Context, config models.SignatureConfig) error {
	if config.DocumentID == "" {
		return errors.New(errors.CodeInvalidInput, "documentId is required")
	}
	if config.TotalPages < 1 {
		return errors.Newf(errors.CodeInvalidInput, "totalPages must be >= 1, got %d", config.TotalPages)
	}
	validated := make([]models.SignatureZone, 0, len(config.Zones))
	for _, z := range config.Zones {
		zone, err := models.NewSignatureZone(z.ID, z.Label, z.Page, z.X, z.Y, z.Width, z.Height, z.SignerRole, z.Required)
		if err != nil {
			return err
		}
		validated = append(validated, zone)
	}
	config.Zones = validated
	config.UpdatedAt = time.Now()

	if err := s.records.Set(ctx, store.CollectionSignatureConfigs, config.DocumentID, config); err != nil {
		return err
	}
	slog.Info("Signature configuration saved.", "documentId", config.DocumentID, "zoneCount", len(validated))
	return nil
}

// GetConfig is a point read of a document's configuration.
func (s *ZoneService) GetConfig(ctx context.Context, documentID string) (*models.SignatureConfig, error) {
	var config models.SignatureConfig
	if err := s.records.Get(ctx, store.CollectionSignatureConfigs, documentID, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// DeleteConfig removes a document's configuration. Missing configs are a
// no-op so reset remains idempotent.
func (s *ZoneService) DeleteConfig(ctx context.Context, documentID string) error {
	return s.records.Delete(ctx, store.CollectionSignatureConfigs, documentID)
}

// EffectiveZones resolves the zones to stamp for a document. A document with
// no stored configuration, or a configuration with no zones, gets the single
// default zone at the bottom-right of the last page.
func (s *ZoneService) EffectiveZones(ctx context.Context, documentID string, totalPages int) ([]models.SignatureZone, error) {
	config, err := s.GetConfig(ctx, documentID)
	if err != nil {
		if errors.GetCode(err) == errors.CodeNotFound {
			return []models.SignatureZone{DefaultZone(totalPages)}, nil
		}
		return nil, err
	}
	if len(config.Zones) == 0 {
		return []models.SignatureZone{DefaultZone(totalPages)}, nil
	}
	return config.Zones, nil
}

// DefaultZone is the zone synthesized when a document has no configured
// layout: bottom-right corner of the last page.
func DefaultZone(totalPages int) models.SignatureZone {
	if totalPages < 1 {
		totalPages = 1
	}
	return models.SignatureZone{
		ID:         "default",
		Label:      "Signature",
		Page:       totalPages,
		X:          62,
		Y:          82,
		Width:      30,
		Height:     12,
		SignerRole: models.RoleClient,
		Required:   true,
	}
}
