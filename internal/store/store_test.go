package store

import (
	"context"
	"path/filepath"
	"testing"

	"mimestream"
	"mimestream/internal/blobstorage"
	"mimestream/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.InitDB(filepath.Join(t.TempDir(), "messages.db"))
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	blobs, err := blobstorage.New(context.Background(), blobstorage.Config{Enabled: false})
	if err != nil {
		t.Fatalf("blobstorage.New failed: %v", err)
	}
	return New(d, blobs, 1024)
}

func TestSaveMessageFlat(t *testing.T) {
	s := newTestStore(t)

	msg, err := mimestream.ParseMessage(mimestream.NewStringSource(
		"Subject: hello\nTo: bob\n\nbody text\n"))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	msgID, err := s.SaveMessage(context.Background(), msg, "test.eml")
	if err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	n, err := db.CountParts(s.db, msgID)
	if err != nil {
		t.Fatalf("CountParts failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 part, got %d", n)
	}
}

func TestSaveMessageMultipart(t *testing.T) {
	s := newTestStore(t)

	raw := "Mime-Version: 1.0\n" +
		"Content-Type: multipart/mixed; boundary=X\n" +
		"\n" +
		"preamble\n" +
		"--X\n" +
		"Content-Type: text/plain\n" +
		"\n" +
		"first part\n" +
		"--X\n" +
		"Content-Type: text/html\n" +
		"\n" +
		"<p>second</p>\n" +
		"--X--\n" +
		"epilogue\n"

	msg, err := mimestream.ParseMessage(mimestream.NewStringSource(raw))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	msgID, err := s.SaveMessage(context.Background(), msg, "multi.eml")
	if err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	// Root entity plus two child parts
	n, err := db.CountParts(s.db, msgID)
	if err != nil {
		t.Fatalf("CountParts failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 parts, got %d", n)
	}
}

func TestBodyDeduplicatedAcrossMessages(t *testing.T) {
	s := newTestStore(t)

	raw := "Subject: a\n\nsame body\n"
	for i := 0; i < 2; i++ {
		msg, err := mimestream.ParseMessage(mimestream.NewStringSource(raw))
		if err != nil {
			t.Fatalf("ParseMessage failed: %v", err)
		}
		if _, err := s.SaveMessage(context.Background(), msg, "dup.eml"); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	id := contentID("same body\n")
	n, err := db.BlobRefCount(s.db, id)
	if err != nil {
		t.Fatalf("BlobRefCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected ref count 2, got %d", n)
	}
}

func TestLoadBodyRoundTrip(t *testing.T) {
	s := newTestStore(t)

	msg, err := mimestream.ParseMessage(mimestream.NewStringSource(
		"Subject: a\n\npayload\n"))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if _, err := s.SaveMessage(context.Background(), msg, ""); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	got, err := s.LoadBody(context.Background(), contentID("payload\n"))
	if err != nil {
		t.Fatalf("LoadBody failed: %v", err)
	}
	if got != "payload\n" {
		t.Errorf("LoadBody = %q, want %q", got, "payload\n")
	}
}
