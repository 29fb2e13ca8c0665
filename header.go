package mimestream

import (
	"bytes"
	"mime"
	"strings"
)

// HeaderField is one raw header field together with its derived name and
// value. Raw preserves folding (embedded terminators followed by
// whitespace); Value has leading and trailing whitespace stripped but keeps
// embedded folds. Name is empty for a malformed field with no colon.
type HeaderField struct {
	Raw   string
	Name  string
	Value string
}

// splitFields splits a header block into fields on "line terminator not
// followed by whitespace", so folded continuation lines stay with their
// field. Malformed lines become fields with an empty name rather than being
// dropped.
func splitFields(b []byte) []HeaderField {
	var fields []HeaderField
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			fields = append(fields, newHeaderField(cur))
			cur = nil
		}
	}
	for len(b) > 0 {
		var line []byte
		if i := bytes.IndexByte(b, '\n'); i >= 0 {
			line, b = b[:i+1], b[i+1:]
		} else {
			line, b = b, nil
		}
		if len(cur) > 0 && (line[0] == ' ' || line[0] == '\t') {
			cur = append(cur, line...)
			continue
		}
		flush()
		cur = append(cur, line...)
	}
	flush()
	return fields
}

func newHeaderField(raw []byte) HeaderField {
	text := strings.TrimRight(string(raw), "\r\n")
	f := HeaderField{Raw: text}
	if i := strings.IndexByte(text, ':'); i >= 0 {
		f.Name = strings.TrimSpace(text[:i])
		f.Value = strings.TrimSpace(text[i+1:])
	} else {
		f.Value = strings.TrimSpace(text)
	}
	return f
}

// boundaryParam extracts the boundary parameter from a Content-Type value,
// or "" when the value has none or cannot be parsed.
func boundaryParam(value string) string {
	_, params, err := mime.ParseMediaType(unfoldValue(value))
	if err != nil {
		return ""
	}
	return params["boundary"]
}

// unfoldValue flattens folded header continuations into single spaces.
func unfoldValue(v string) string {
	v = strings.ReplaceAll(v, "\r\n", " ")
	return strings.ReplaceAll(v, "\n", " ")
}
