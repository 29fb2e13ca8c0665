package mimestream

import (
	"bytes"
	"io"
	"strings"
)

var mboxFromPrefix = []byte("From ")

// parseEntity parses one message entity from r: a header block followed by
// either a flat body or a multipart body. At depth 0 r reads the whole
// stream; at depth > 0 r is the MultipartReader segment of the enclosing
// part, so nested headers and bodies consume exactly the bytes between
// delimiters.
func parseEntity(r Reader, h Handler, depth int) error {
	head, err := readHeaderBlock(r)
	if err != nil {
		return err
	}

	if bytes.HasPrefix(head, mboxFromPrefix) {
		line := head
		if i := bytes.IndexByte(head, '\n'); i >= 0 {
			line = head[:i+1]
			head = head[i+1:]
		} else {
			head = nil
		}
		if err := h.MboxFrom(strings.TrimRight(string(line), "\r\n")); err != nil {
			return err
		}
	}

	isMIME := false
	boundary := ""
	for _, f := range splitFields(head) {
		switch {
		case strings.EqualFold(f.Name, "Mime-Version"):
			if strings.Contains(f.Value, "1.0") {
				isMIME = true
			}
		case strings.EqualFold(f.Name, "Content-Type"):
			if b := boundaryParam(f.Value); b != "" {
				boundary = b
			}
		}
		if err := h.HeaderField(f.Raw, f.Name, f.Value); err != nil {
			return err
		}
	}

	// A boundary only counts when the message declared itself MIME, or when
	// we are already inside a multipart: nested parts need no Mime-Version
	// restatement. Anything else is boundary-looking text in a plain body.
	if boundary != "" && (isMIME || depth > 0) {
		return parseMultipartBody(r, h, boundary, depth)
	}
	return parseFlatBody(r, h)
}

// readHeaderBlock accumulates chunks until the blank-line separator between
// header and body, pushing everything after the separator back onto r. With
// no separator in sight the whole input is the header block and the body is
// empty.
func readHeaderBlock(r Reader) ([]byte, error) {
	var buf []byte
	for {
		chunk, err := r.Read()
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
		if end, body, ok := findHeaderEnd(buf); ok {
			r.Pushback(buf[body:])
			return buf[:end], nil
		}
	}
}

// findHeaderEnd locates the header/body separator: a line terminator
// immediately followed by another, or a terminator at the very start of the
// input (an empty header). headerEnd keeps the terminator of the last field
// line; bodyStart indexes the first body byte.
func findHeaderEnd(b []byte) (headerEnd, bodyStart int, ok bool) {
	if len(b) > 0 && b[0] == '\n' {
		return 0, 1, true
	}
	if len(b) > 1 && b[0] == '\r' && b[1] == '\n' {
		return 0, 2, true
	}
	for i := 0; i+1 < len(b); i++ {
		if b[i] != '\n' {
			continue
		}
		if b[i+1] == '\n' {
			return i + 1, i + 2, true
		}
		if b[i+1] == '\r' && i+2 < len(b) && b[i+2] == '\n' {
			return i + 1, i + 3, true
		}
	}
	return 0, 0, false
}

func parseFlatBody(r Reader, h Handler) error {
	if err := h.BodyBegin(); err != nil {
		return err
	}
	for {
		chunk, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			continue
		}
		if err := h.BodyChunk(chunk); err != nil {
			return err
		}
	}
	return h.BodyEnd()
}

func parseMultipartBody(r Reader, h Handler, boundary string, depth int) error {
	mr := NewMultipartReader(r, boundary)
	if err := h.MultipartBegin(); err != nil {
		return err
	}
	for mr.NextPart() {
		switch {
		case mr.InPreamble():
			if err := drainSegment(mr, h.PreambleChunk); err != nil {
				return err
			}
		case mr.InEpilogue():
			if err := drainSegment(mr, h.EpilogueChunk); err != nil {
				return err
			}
		default:
			if err := h.PartBegin(); err != nil {
				return err
			}
			if err := parseEntity(mr, h, depth+1); err != nil {
				return err
			}
			if err := h.PartEnd(); err != nil {
				return err
			}
		}
	}
	return h.MultipartEnd(mr.Delimiters(), boundary)
}

func drainSegment(mr *MultipartReader, emit func([]byte) error) error {
	for {
		chunk, err := mr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			continue
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
}
