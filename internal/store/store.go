// Package store provides the persistence collaborators for the signature
// pipeline: a generic keyed record store with watch semantics and a blob
// store for signed artifacts. Services depend on the interfaces so tests can
// substitute the in-memory implementations.
package store

import "context"

// Collection names for the four logical record collections.
const (
	CollectionVerificationCodes = "verification_codes"
	CollectionSecureTokens      = "secure_tokens"
	CollectionSignatureConfigs  = "signature_configs"
	CollectionSignatureRecords  = "signature_records"
)

// ChangeKind classifies a watched record change.
type ChangeKind int

const (
	ChangeSet ChangeKind = iota
	ChangeDelete
)

// RecordChange is one delta delivered by Watch. Decode unmarshals the
// record's current data into out; it is nil for deletions.
type RecordChange struct {
	Kind   ChangeKind
	Key    string
	Decode func(out any) error
}

// RecordStore is the generic key/value persistence layer shared by every
// component. Implementations must return an error with code NOT_FOUND from
// Get when the key is absent, and treat Delete of an absent key as a no-op.
type RecordStore interface {
	Get(ctx context.Context, collection, key string, out any) error
	Set(ctx context.Context, collection, key string, value any) error
	Delete(ctx context.Context, collection, key string) error

	// List visits every record in a collection. The decode closure
	// unmarshals the visited record; returning an error from fn stops the
	// scan.
	List(ctx context.Context, collection string, fn func(key string, decode func(out any) error) error) error

	// CompareAndSet writes value only if the stored record's "version"
	// field still equals expected. A missing record counts as version 0.
	// A stale expected version yields an error with code CONFLICT.
	CompareAndSet(ctx context.Context, collection, key string, expected int64, value any) error

	// Watch streams per-record deltas for a collection until ctx is
	// cancelled. The returned channel is closed when the stream ends.
	Watch(ctx context.Context, collection string) (<-chan RecordChange, error)
}

// BlobStore persists signed PDF artifacts and returns publicly resolvable
// URLs for them.
type BlobStore interface {
	Put(ctx context.Context, objectName string, data []byte) (string, error)
	Delete(ctx context.Context, objectName string) error
}
