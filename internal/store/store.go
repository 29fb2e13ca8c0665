// Package store persists parsed messages into the message database,
// spilling large part bodies to blob storage.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"mimestream"
	"mimestream/internal/blobstorage"
	"mimestream/internal/db"
)

// Store writes parsed messages to the database. Bodies larger than
// blobThreshold are stored as deduplicated blobs, in S3 when enabled and in
// the local blobs table otherwise.
type Store struct {
	db            *sql.DB
	blobs         *blobstorage.S3BlobStorage
	blobThreshold int
}

// New creates a Store. blobs may be a disabled storage; bodies then stay
// local regardless of size.
func New(d *sql.DB, blobs *blobstorage.S3BlobStorage, blobThreshold int) *Store {
	return &Store{db: d, blobs: blobs, blobThreshold: blobThreshold}
}

// SaveMessage persists a parsed message tree and returns the new message ID.
func (s *Store) SaveMessage(ctx context.Context, msg *mimestream.Message, sourceFile string) (int64, error) {
	msgID, err := db.CreateMessage(s.db, sourceFile, msg.MboxFrom)
	if err != nil {
		return 0, fmt.Errorf("failed to create message record: %v", err)
	}

	if err := s.savePart(ctx, msgID, nil, 0, msg); err != nil {
		return 0, err
	}
	return msgID, nil
}

func (s *Store) savePart(ctx context.Context, msgID int64, parentID *int64, seq int, part *mimestream.Message) error {
	partID, err := db.AddPart(s.db, msgID, parentID, seq,
		part.ContentType(), part.Boundary, part.Preamble, part.Epilogue)
	if err != nil {
		return fmt.Errorf("failed to store part: %v", err)
	}

	for i, f := range part.Fields {
		if err := db.AddHeader(s.db, partID, i, f.Name, f.Value); err != nil {
			return fmt.Errorf("failed to store header: %v", err)
		}
	}

	if part.Body != "" {
		if err := s.saveBody(ctx, partID, part.Body); err != nil {
			return err
		}
	}

	for i, child := range part.Parts {
		if err := s.savePart(ctx, msgID, &partID, i, child); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveBody(ctx context.Context, partID int64, body string) error {
	id := contentID(body)

	if len(body) >= s.blobThreshold && s.blobs.IsEnabled() {
		if _, err := s.blobs.Store(ctx, body); err != nil {
			return fmt.Errorf("failed to store body in object storage: %v", err)
		}
		if err := db.StoreBlobS3(s.db, id, len(body)); err != nil {
			return err
		}
	} else {
		if err := db.StoreBlob(s.db, id, body); err != nil {
			return err
		}
	}

	return db.SetPartBody(s.db, partID, id)
}

// LoadBody retrieves a part body by blob ID, fetching from object storage
// when the blob was spilled to S3.
func (s *Store) LoadBody(ctx context.Context, blobID string) (string, error) {
	storageType, content, err := db.GetBlob(s.db, blobID)
	if err != nil {
		return "", fmt.Errorf("failed to load blob: %v", err)
	}
	if storageType == "s3" {
		return s.blobs.Retrieve(ctx, blobID)
	}
	return content, nil
}

func contentID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
