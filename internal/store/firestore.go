package store

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/jmgilman/go/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements RecordStore on top of a Firestore database. It is
// the single source of truth for every collection; nothing is cached here.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Get(ctx context.Context, collection, key string, out any) error {
	snap, err := s.client.Collection(collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.Newf(errors.CodeNotFound, "no record %s/%s", collection, key)
		}
		return errors.Wrapf(err, errors.CodeDatabase, "failed to read %s/%s", collection, key)
	}
	if err := snap.DataTo(out); err != nil {
		return errors.Wrapf(err, errors.CodeDatabase, "failed to decode %s/%s", collection, key)
	}
	return nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, key string, value any) error {
	if _, err := s.client.Collection(collection).Doc(key).Set(ctx, value); err != nil {
		return errors.Wrapf(err, errors.CodeDatabase, "failed to write %s/%s", collection, key)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, key string) error {
	// Firestore deletes are idempotent; a missing doc is not an error.
	if _, err := s.client.Collection(collection).Doc(key).Delete(ctx); err != nil {
		return errors.Wrapf(err, errors.CodeDatabase, "failed to delete %s/%s", collection, key)
	}
	return nil
}

func (s *FirestoreStore) List(ctx context.Context, collection string, fn func(key string, decode func(out any) error) error) error {
	it := s.client.Collection(collection).Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, errors.CodeDatabase, "failed to scan collection %s", collection)
		}
		if err := fn(snap.Ref.ID, snap.DataTo); err != nil {
			return err
		}
	}
}

// CompareAndSet runs a transaction that re-reads the record, checks its
// version field against expected, and writes. A concurrent writer that
// committed in between surfaces as CONFLICT rather than a silent overwrite.
func (s *FirestoreStore) CompareAndSet(ctx context.Context, collection, key string, expected int64, value any) error {
	ref := s.client.Collection(collection).Doc(key)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		current := int64(0)
		switch {
		case err != nil && status.Code(err) == codes.NotFound:
			// First writer; version 0 is the expected baseline.
		case err != nil:
			return fmt.Errorf("transactional read of %s/%s: %w", collection, key, err)
		default:
			if raw, derr := snap.DataAt("version"); derr == nil {
				if v, ok := raw.(int64); ok {
					current = v
				}
			}
		}
		if current != expected {
			return errors.Newf(errors.CodeConflict, "record %s/%s is at version %d, expected %d", collection, key, current, expected)
		}
		return tx.Set(ref, value)
	})
	if err != nil {
		if errors.GetCode(err) == errors.CodeConflict {
			return err
		}
		return errors.Wrapf(err, errors.CodeDatabase, "compare-and-set on %s/%s failed", collection, key)
	}
	return nil
}

func (s *FirestoreStore) Watch(ctx context.Context, collection string) (<-chan RecordChange, error) {
	out := make(chan RecordChange)
	it := s.client.Collection(collection).Snapshots(ctx)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("Watch stream on collection ended unexpectedly.", "collection", collection, "error", err)
				}
				return
			}
			for _, change := range snap.Changes {
				rc := RecordChange{Key: change.Doc.Ref.ID}
				switch change.Kind {
				case firestore.DocumentRemoved:
					rc.Kind = ChangeDelete
				default:
					rc.Kind = ChangeSet
					rc.Decode = change.Doc.DataTo
				}
				select {
				case out <- rc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
