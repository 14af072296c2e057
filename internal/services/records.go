package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/store"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
)

// StatusEvent is one delta delivered to status subscribers: a document was
// signed, re-signed, or reset. Consumers get per-document events rather than
// full collection snapshots.
type StatusEvent struct {
	DocumentID string
	IsSigned   bool
	Record     *models.SignatureRecord
}

// RecordService persists signed artifacts and their records, and broadcasts
// per-document status changes.
type RecordService struct {
	records store.RecordStore
	blobs   store.BlobStore
	zones   *ZoneService
}

func NewRecordService(records store.RecordStore, blobs store.BlobStore, zones *ZoneService) *RecordService {
	return &RecordService{records: records, blobs: blobs, zones: zones}
}

// Upload stores the signed bytes under a unique object path and returns the
// public URL with the path it was stored under.
func (s *RecordService) Upload(ctx context.Context, documentID string, pdf []byte) (url, blobPath string, err error) {
	blobPath = fmt.Sprintf("signed/%s/%d-%s.pdf", documentID, time.Now().Unix(), uuid.NewString())
	url, err = s.blobs.Put(ctx, blobPath, pdf)
	if err != nil {
		return "", "", err
	}
	return url, blobPath, nil
}

// DiscardUpload removes an artifact whose record write never committed, so
// a failed signing leaves no orphaned blob behind.
func (s *RecordService) DiscardUpload(ctx context.Context, blobPath string) error {
	return s.blobs.Delete(ctx, blobPath)
}

// CurrentVersion reads the version of a document's record; a document that
// was never signed is at version 0.
func (s *RecordService) CurrentVersion(ctx context.Context, documentID string) (int64, error) {
	var record models.SignatureRecord
	err := s.records.Get(ctx, store.CollectionSignatureRecords, documentID, &record)
	if err != nil {
		if errors.GetCode(err) == errors.CodeNotFound {
			return 0, nil
		}
		return 0, err
	}
	return record.Version, nil
}

// Save upserts the record for a document iff nobody else committed since
// expectedVersion was read. A losing concurrent writer gets CONFLICT instead
// of silently clobbering the first signature.
func (s *RecordService) Save(ctx context.Context, record models.SignatureRecord, expectedVersion int64) error {
	record.Version = expectedVersion + 1
	if err := s.records.CompareAndSet(ctx, store.CollectionSignatureRecords, record.DocumentID, expectedVersion, record); err != nil {
		return err
	}
	slog.Info("Signature record saved.", "documentId", record.DocumentID, "version", record.Version)
	return nil
}

// Status is a point read of a document's signing state.
func (s *RecordService) Status(ctx context.Context, documentID string) (bool, *models.SignatureRecord, error) {
	var record models.SignatureRecord
	err := s.records.Get(ctx, store.CollectionSignatureRecords, documentID, &record)
	if err != nil {
		if errors.GetCode(err) == errors.CodeNotFound {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, &record, nil
}

// Reset tears down everything signing created for a document: the record,
// its blob, and the zone configuration. Safe to repeat; every step is a
// no-op on absent state.
func (s *RecordService) Reset(ctx context.Context, documentID string) error {
	logCtx := slog.With("documentId", documentID)

	var record models.SignatureRecord
	err := s.records.Get(ctx, store.CollectionSignatureRecords, documentID, &record)
	switch {
	case err != nil && errors.GetCode(err) == errors.CodeNotFound:
		// Nothing signed; still clear the configuration below.
	case err != nil:
		return err
	default:
		if err := s.records.Delete(ctx, store.CollectionSignatureRecords, documentID); err != nil {
			return err
		}
		if record.BlobPath != "" {
			if err := s.blobs.Delete(ctx, record.BlobPath); err != nil {
				return err
			}
		}
	}

	if err := s.zones.DeleteConfig(ctx, documentID); err != nil {
		return err
	}
	logCtx.Info("Document signature state reset.")
	return nil
}

// Subscribe streams status deltas until ctx is cancelled, invoking fn for
// every record write or delete. The watch runs on its own goroutine; fn must
// not block indefinitely.
func (s *RecordService) Subscribe(ctx context.Context, fn func(StatusEvent)) error {
	changes, err := s.records.Watch(ctx, store.CollectionSignatureRecords)
	if err != nil {
		return err
	}
	go func() {
		for change := range changes {
			event := StatusEvent{DocumentID: change.Key}
			if change.Kind == store.ChangeSet {
				var record models.SignatureRecord
				if err := change.Decode(&record); err != nil {
					slog.Warn("Skipping undecodable record change.", "documentId", change.Key, "error", err)
					continue
				}
				event.IsSigned = true
				event.Record = &record
			}
			fn(event)
		}
	}()
	return nil
}
