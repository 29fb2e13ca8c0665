package mimestream

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// recordingHandler captures the event sequence of a parse. Consecutive
// chunk events of the same kind are coalesced so traces can be compared
// across chunk sizes.
type recordingHandler struct {
	events []string
}

func (h *recordingHandler) add(s string) error {
	h.events = append(h.events, s)
	return nil
}

func (h *recordingHandler) addChunk(kind string, data []byte) error {
	prefix := kind + " "
	if n := len(h.events); n > 0 && strings.HasPrefix(h.events[n-1], prefix) {
		h.events[n-1] += string(data)
		return nil
	}
	return h.add(prefix + string(data))
}

func (h *recordingHandler) MboxFrom(line string) error { return h.add("mbox_from " + line) }
func (h *recordingHandler) HeaderField(raw, name, value string) error {
	return h.add(fmt.Sprintf("header_field %q %q %q", raw, name, value))
}
func (h *recordingHandler) BodyBegin() error            { return h.add("body_begin") }
func (h *recordingHandler) BodyChunk(data []byte) error { return h.addChunk("body_chunk", data) }
func (h *recordingHandler) BodyEnd() error              { return h.add("body_end") }
func (h *recordingHandler) MultipartBegin() error       { return h.add("multipart_begin") }
func (h *recordingHandler) PreambleChunk(data []byte) error {
	return h.addChunk("preamble_chunk", data)
}
func (h *recordingHandler) PartBegin() error { return h.add("part_begin") }
func (h *recordingHandler) PartEnd() error   { return h.add("part_end") }
func (h *recordingHandler) EpilogueChunk(data []byte) error {
	return h.addChunk("epilogue_chunk", data)
}
func (h *recordingHandler) MultipartEnd(delimiters []string, boundary string) error {
	return h.add(fmt.Sprintf("multipart_end %q %q", delimiters, boundary))
}

func parseEvents(t *testing.T, input string, opts ...Option) []string {
	t.Helper()
	h := &recordingHandler{}
	if err := Parse(NewStringSource(input), h, opts...); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return h.events
}

func TestParseSimpleMessage(t *testing.T) {
	events := parseEvents(t, "Subject: hi\n\nhello")
	want := []string{
		`header_field "Subject: hi" "Subject" "hi"`,
		"body_begin",
		"body_chunk hello",
		"body_end",
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %q, want %q", events, want)
	}
}

func TestParseMultipartMessage(t *testing.T) {
	input := "Mime-Version: 1.0\n" +
		"Content-Type: multipart/mixed; boundary=X\n" +
		"\n" +
		"--X\n\nA\n--X\n\nB\n--X--\ntrailing"

	msg, err := ParseMessage(NewStringSource(input))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if msg.Boundary != "X" {
		t.Errorf("boundary = %q, want X", msg.Boundary)
	}
	if want := []string{"--X\n", "--X\n"}; !reflect.DeepEqual(msg.Delimiters, want) {
		t.Errorf("delimiters = %q, want %q", msg.Delimiters, want)
	}
	if len(msg.Parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(msg.Parts))
	}
	if msg.Parts[0].Body != "A\n" || msg.Parts[1].Body != "B\n" {
		t.Errorf("part bodies = %q, %q", msg.Parts[0].Body, msg.Parts[1].Body)
	}
	if msg.Epilogue != "trailing" {
		t.Errorf("epilogue = %q", msg.Epilogue)
	}
	if msg.Body != "" {
		t.Errorf("multipart node should have no flat body, got %q", msg.Body)
	}
}

func TestParseChunkSizeInvariance(t *testing.T) {
	input := "From alice Mon Jan  1 00:00:00 2024\r\n" +
		"Mime-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed;\r\n\tboundary=\"frag\"\r\n" +
		"Subject: chunked\r\n" +
		"\r\n" +
		"preamble text\r\n" +
		"--frag\r\nContent-Type: text/plain\r\n\r\nfirst body\r\n" +
		"--frag\r\n\r\nsecond body\r\n" +
		"--frag--\r\n" +
		"epilogue text\r\n"

	want := parseEvents(t, input)
	for _, size := range []int{1, 2, 3, 5, 7, 64} {
		got := parseEvents(t, input, WithChunkSize(size))
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunk size %d changed the event sequence:\ngot  %q\nwant %q", size, got, want)
		}
	}
}

func TestParseBodyReconstruction(t *testing.T) {
	body := "line one\nline two\nno trailing terminator"
	input := "Subject: s\r\n\r\n" + body
	for _, size := range []int{0, 1, 4} {
		var opts []Option
		if size > 0 {
			opts = append(opts, WithChunkSize(size))
		}
		msg, err := ParseMessage(NewStringSource(input), opts...)
		if err != nil {
			t.Fatalf("ParseMessage failed: %v", err)
		}
		if msg.Body != body {
			t.Errorf("chunk size %d: body = %q, want %q", size, msg.Body, body)
		}
	}
}

func TestParseHeaderOnlyMessage(t *testing.T) {
	// No blank-line separator at all: everything is header, body empty.
	msg, err := ParseMessage(NewStringSource("Subject: lonely\nX-Flag: yes"))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if len(msg.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(msg.Fields))
	}
	if msg.Body != "" {
		t.Errorf("body = %q, want empty", msg.Body)
	}
}

func TestParseEmptyInput(t *testing.T) {
	msg, err := ParseMessage(NewStringSource(""))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if len(msg.Fields) != 0 || msg.Body != "" || len(msg.Parts) != 0 {
		t.Errorf("empty input should parse to an empty message: %+v", msg)
	}
}

func TestParseBoundaryNeedsMimeVersionAtDepthZero(t *testing.T) {
	// Without Mime-Version: 1.0 the declared boundary is ignored at the top
	// level and the body stays flat.
	input := "Content-Type: multipart/mixed; boundary=X\n\n--X\ndata\n--X--\n"
	msg, err := ParseMessage(NewStringSource(input))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if msg.IsMultipart() || len(msg.Parts) != 0 {
		t.Fatal("boundary should be ignored without Mime-Version at depth 0")
	}
	if msg.Body != "--X\ndata\n--X--\n" {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestParseNestedPartNeedsNoMimeVersion(t *testing.T) {
	// The identical header is honored at depth 1: nested parts are always
	// eligible to be multipart themselves.
	input := "Mime-Version: 1.0\n" +
		"Content-Type: multipart/mixed; boundary=outer\n" +
		"\n" +
		"--outer\n" +
		"Content-Type: multipart/alternative; boundary=inner\n" +
		"\n" +
		"--inner\n\nplain\n--inner\n\nfancy\n--inner--\n" +
		"--outer--\n"

	msg, err := ParseMessage(NewStringSource(input))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if len(msg.Parts) != 1 {
		t.Fatalf("got %d outer parts, want 1", len(msg.Parts))
	}
	nested := msg.Parts[0]
	if !nested.IsMultipart() || nested.Boundary != "inner" {
		t.Fatalf("nested part should be multipart on boundary inner: %+v", nested)
	}
	if len(nested.Parts) != 2 || nested.Parts[0].Body != "plain\n" || nested.Parts[1].Body != "fancy\n" {
		t.Errorf("nested parts = %+v", nested.Parts)
	}
}

func TestParseMboxEnvelope(t *testing.T) {
	input := "From alice@example.com Mon Jan  1 00:00:00 2024\n" +
		"Subject: hi\n\nbody"
	events := parseEvents(t, input)
	want := []string{
		"mbox_from From alice@example.com Mon Jan  1 00:00:00 2024",
		`header_field "Subject: hi" "Subject" "hi"`,
		"body_begin",
		"body_chunk body",
		"body_end",
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %q, want %q", events, want)
	}
}

func TestParseFoldedHeaderField(t *testing.T) {
	input := "Subject: a long\n\tfolded subject\nX-One: 1\n\nbody"
	msg, err := ParseMessage(NewStringSource(input))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if len(msg.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(msg.Fields))
	}
	f := msg.Fields[0]
	if f.Name != "Subject" {
		t.Errorf("name = %q", f.Name)
	}
	if f.Raw != "Subject: a long\n\tfolded subject" {
		t.Errorf("raw = %q", f.Raw)
	}
	if f.Value != "a long\n\tfolded subject" {
		t.Errorf("value = %q", f.Value)
	}
}

func TestParsePartBalance(t *testing.T) {
	input := "Mime-Version: 1.0\n" +
		"Content-Type: multipart/mixed; boundary=o\n" +
		"\n" +
		"--o\nContent-Type: multipart/mixed; boundary=i\n\n--i\n\nx\n--i--\n--o\n\ny\n--o--\n"
	events := parseEvents(t, input)
	depth := 0
	for _, e := range events {
		switch e {
		case "part_begin":
			depth++
		case "part_end":
			depth--
		}
		if depth < 0 {
			t.Fatalf("part_end before part_begin in %q", events)
		}
	}
	if depth != 0 {
		t.Errorf("unbalanced part events: %q", events)
	}
}

func TestParseHandlerErrorPropagates(t *testing.T) {
	sentinel := errors.New("stop right there")
	h := &failingHandler{err: sentinel}
	err := Parse(NewStringSource("Subject: x\n\nbody"), h)
	if err != sentinel {
		t.Errorf("handler error did not propagate unmodified: got %v", err)
	}
}

type failingHandler struct {
	NopHandler
	err error
}

func (h *failingHandler) BodyChunk([]byte) error { return h.err }

func TestParseNilHandler(t *testing.T) {
	if err := Parse(NewStringSource("x"), nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("nil handler: got %v, want ErrInvalidState", err)
	}
	if err := Parse(nil, NopHandler{}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("nil source: got %v, want ErrInvalidState", err)
	}
}

func TestParseCRLFSeparator(t *testing.T) {
	msg, err := ParseMessage(NewStringSource("Subject: s\r\n\r\nbody\r\n"))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if msg.Header("Subject") != "s" {
		t.Errorf("subject = %q", msg.Header("Subject"))
	}
	if msg.Body != "body\r\n" {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestParseLeadingBlankLine(t *testing.T) {
	// A terminator with nothing before it means an empty header.
	msg, err := ParseMessage(NewStringSource("\njust a body"))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if len(msg.Fields) != 0 {
		t.Errorf("fields = %+v, want none", msg.Fields)
	}
	if msg.Body != "just a body" {
		t.Errorf("body = %q", msg.Body)
	}
}
