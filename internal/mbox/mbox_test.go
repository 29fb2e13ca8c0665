package mbox

import (
	"strings"
	"testing"
)

func scanAll(t *testing.T, input string) []string {
	t.Helper()
	s := NewScanner(strings.NewReader(input))
	var msgs []string
	for s.Next() {
		msgs = append(msgs, string(s.Message()))
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return msgs
}

func TestScannerSplitsOnEnvelope(t *testing.T) {
	input := "From alice Mon Jan  1 00:00:00 2024\n" +
		"Subject: one\n" +
		"\n" +
		"first\n" +
		"From bob Mon Jan  1 00:01:00 2024\n" +
		"Subject: two\n" +
		"\n" +
		"second\n"

	msgs := scanAll(t, input)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if !strings.HasPrefix(msgs[0], "From alice") || !strings.Contains(msgs[0], "first\n") {
		t.Errorf("unexpected first message: %q", msgs[0])
	}
	if !strings.HasPrefix(msgs[1], "From bob") || !strings.Contains(msgs[1], "second\n") {
		t.Errorf("unexpected second message: %q", msgs[1])
	}
}

func TestScannerSingleMessageNoEnvelope(t *testing.T) {
	input := "Subject: plain\n\nbody\n"
	msgs := scanAll(t, input)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0] != input {
		t.Errorf("message = %q, want %q", msgs[0], input)
	}
}

func TestScannerIgnoresMidLineFrom(t *testing.T) {
	input := "From alice\n" +
		"Subject: quoting\n" +
		"\n" +
		"he wrote: From bob\n" +
		">From escaped\n"

	msgs := scanAll(t, input)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
}

func TestScannerEmptyInput(t *testing.T) {
	msgs := scanAll(t, "")
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}

func TestScannerNoTrailingNewline(t *testing.T) {
	input := "From alice\nSubject: a\n\nbody without newline"
	msgs := scanAll(t, input)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !strings.HasSuffix(msgs[0], "body without newline") {
		t.Errorf("truncated message: %q", msgs[0])
	}
}
