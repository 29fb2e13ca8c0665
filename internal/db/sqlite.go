package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the message database at file and creates the schema if it
// does not exist yet.
func InitDB(file string) (*sql.DB, error) {
	if dir := filepath.Dir(file); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %v", err)
		}
	}

	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_file TEXT,
		mbox_from TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS parts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id INTEGER NOT NULL,
		parent_id INTEGER,
		seq INTEGER NOT NULL,
		content_type TEXT,
		boundary TEXT,
		preamble TEXT,
		epilogue TEXT,
		body_blob TEXT,
		FOREIGN KEY (message_id) REFERENCES messages(id),
		FOREIGN KEY (parent_id) REFERENCES parts(id),
		FOREIGN KEY (body_blob) REFERENCES blobs(id)
	);

	CREATE TABLE IF NOT EXISTS headers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		part_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		name TEXT,
		value TEXT,
		FOREIGN KEY (part_id) REFERENCES parts(id)
	);

	CREATE TABLE IF NOT EXISTS blobs (
		id TEXT PRIMARY KEY,
		storage_type TEXT NOT NULL DEFAULT 'local',
		content TEXT,
		size INTEGER NOT NULL,
		ref_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_parts_message ON parts(message_id);
	CREATE INDEX IF NOT EXISTS idx_headers_part ON headers(part_id);
	`
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %v", err)
	}

	return db, nil
}

// CreateMessage inserts a message row and returns its ID.
func CreateMessage(db *sql.DB, sourceFile, mboxFrom string) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO messages (source_file, mbox_from)
		VALUES (?, ?)
	`, sourceFile, mboxFrom)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %v", err)
	}
	return res.LastInsertId()
}

// AddPart inserts a part row for a message. parentID is nil for the
// top-level entity.
func AddPart(db *sql.DB, messageID int64, parentID *int64, seq int, contentType, boundary, preamble, epilogue string) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO parts (message_id, parent_id, seq, content_type, boundary, preamble, epilogue)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, messageID, parentID, seq, contentType, boundary, preamble, epilogue)
	if err != nil {
		return 0, fmt.Errorf("failed to insert part: %v", err)
	}
	return res.LastInsertId()
}

// AddHeader inserts one header field belonging to a part, preserving order
// through seq.
func AddHeader(db *sql.DB, partID int64, seq int, name, value string) error {
	_, err := db.Exec(`
		INSERT INTO headers (part_id, seq, name, value)
		VALUES (?, ?, ?, ?)
	`, partID, seq, name, value)
	if err != nil {
		return fmt.Errorf("failed to insert header: %v", err)
	}
	return nil
}

// StoreBlob stores content in the local blobs table under the given
// content-addressed ID. Identical content is deduplicated; the reference
// count tracks how many parts point at the blob.
func StoreBlob(db *sql.DB, id, content string) error {
	_, err := db.Exec(`
		INSERT INTO blobs (id, storage_type, content, size, ref_count)
		VALUES (?, 'local', ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET ref_count = ref_count + 1
	`, id, content, len(content))
	if err != nil {
		return fmt.Errorf("failed to store blob: %v", err)
	}
	return nil
}

// StoreBlobS3 records a blob whose content lives in S3 rather than in the
// database.
func StoreBlobS3(db *sql.DB, id string, size int) error {
	_, err := db.Exec(`
		INSERT INTO blobs (id, storage_type, size, ref_count)
		VALUES (?, 's3', ?, 1)
		ON CONFLICT(id) DO UPDATE SET ref_count = ref_count + 1
	`, id, size)
	if err != nil {
		return fmt.Errorf("failed to store blob reference: %v", err)
	}
	return nil
}

// SetPartBody attaches a blob ID to a part's body.
func SetPartBody(db *sql.DB, partID int64, blobID string) error {
	_, err := db.Exec(`
		UPDATE parts SET body_blob = ? WHERE id = ?
	`, blobID, partID)
	if err != nil {
		return fmt.Errorf("failed to set part body: %v", err)
	}
	return nil
}

// GetBlob returns the storage type and local content of a blob. For S3 blobs
// the content is empty and the caller retrieves it from object storage.
func GetBlob(db *sql.DB, id string) (storageType, content string, err error) {
	var c sql.NullString
	err = db.QueryRow(`
		SELECT storage_type, content FROM blobs WHERE id = ?
	`, id).Scan(&storageType, &c)
	if err != nil {
		return "", "", err
	}
	return storageType, c.String, nil
}

// CountMessages returns the number of stored messages.
func CountMessages(db *sql.DB) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n)
	return n, err
}

// CountParts returns the number of parts stored for a message.
func CountParts(db *sql.DB, messageID int64) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM parts WHERE message_id = ?", messageID).Scan(&n)
	return n, err
}

// GetHeaders returns the header fields of a part in original order.
func GetHeaders(db *sql.DB, partID int64) ([][2]string, error) {
	rows, err := db.Query(`
		SELECT name, value FROM headers
		WHERE part_id = ?
		ORDER BY seq
	`, partID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields [][2]string
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		fields = append(fields, [2]string{name, value})
	}
	return fields, rows.Err()
}

// BlobRefCount returns the reference count of a blob, or 0 when the blob
// does not exist.
func BlobRefCount(db *sql.DB, id string) (int, error) {
	var n int
	err := db.QueryRow("SELECT ref_count FROM blobs WHERE id = ?", id).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}
