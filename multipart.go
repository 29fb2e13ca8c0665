package mimestream

import (
	"bytes"
	"io"
)

type segment int

const (
	segNone segment = iota
	segPreamble
	segPart
	segEpilogue
	segDone
)

// MultipartReader exposes a segmented view of a reader as preamble, a
// sequence of parts and an epilogue, splitting on the delimiter lines of a
// boundary token. A delimiter line is "--" + boundary (a new part follows)
// or "--" + boundary + "--" (no more parts), terminated by \n, \r\n or end
// of data, and recognized only at the start of a line. Delimiters are
// detected correctly even when they straddle chunk boundaries.
//
// The reader assumes exclusive ownership of the underlying reader while in
// use. Bytes read past a confirmed delimiter are pushed back so the next
// segment starts cleanly.
type MultipartReader struct {
	r        Reader
	boundary string

	seg         segment
	buf         []byte   // rolling match buffer: read but not yet released
	pending     [][]byte // pushed-back segment data, replayed first
	atLineStart bool     // front of buf begins a line
	segEnd      bool     // open segment has hit its delimiter or end of data
	srcEOF      bool
	readErr     error

	endDelim bool // segment ended on a delimiter line
	endClose bool // that delimiter was the close delimiter

	lastDelim    string
	lastDelimSet bool
	delims       []string
}

// NewMultipartReader returns a MultipartReader over r for the given boundary
// token (without the leading "--").
func NewMultipartReader(r Reader, boundary string) *MultipartReader {
	return &MultipartReader{r: r, boundary: boundary}
}

// NextPart advances to the next segment. The first call opens the preamble
// (empty if the stream starts with a delimiter), later calls close the
// current segment and open the next part, then the epilogue once the close
// delimiter has been seen. It returns false once all segments are done, or
// when end of data arrives with no close delimiter ever found.
func (m *MultipartReader) NextPart() bool {
	switch m.seg {
	case segDone:
		return false
	case segNone:
		m.openSegment(segPreamble)
		return true
	case segEpilogue:
		m.drain()
		m.seg = segDone
		return false
	default: // preamble or part
		m.drain()
		switch {
		case m.endDelim && m.endClose:
			m.openSegment(segEpilogue)
			return true
		case m.endDelim:
			m.openSegment(segPart)
			return true
		default:
			// End of data with no close delimiter. Tolerated: whatever
			// was read stays with the segment it was read into.
			m.seg = segDone
			return false
		}
	}
}

func (m *MultipartReader) openSegment(s segment) {
	m.seg = s
	m.segEnd = false
	m.endDelim = false
	m.endClose = false
	m.atLineStart = true
}

// InPreamble reports whether the currently open segment is the preamble.
func (m *MultipartReader) InPreamble() bool { return m.seg == segPreamble }

// InEpilogue reports whether the currently open segment is the epilogue.
func (m *MultipartReader) InEpilogue() bool { return m.seg == segEpilogue }

// Delimiter returns the exact delimiter line text, terminator included, that
// ended the segment most recently closed. ok is false when the segment was
// ended by end of data instead of a delimiter.
func (m *MultipartReader) Delimiter() (text string, ok bool) {
	return m.lastDelim, m.lastDelimSet
}

// Delimiters returns the part-opening delimiter lines observed so far, in
// message order. Its length equals the number of parts opened; the close
// delimiter is reported by Delimiter but never appended here.
func (m *MultipartReader) Delimiters() []string { return m.delims }

// Read returns the next chunk of the currently open segment, stopping with
// io.EOF exactly at the segment's delimiter line (which is consumed but not
// returned) or at end of data. Calling Read with no open segment is API
// misuse and returns ErrInvalidState.
func (m *MultipartReader) Read() ([]byte, error) {
	if m.seg == segNone || m.seg == segDone {
		return nil, ErrInvalidState
	}
	for {
		if len(m.pending) > 0 {
			chunk := m.pending[0]
			m.pending = m.pending[1:]
			if len(chunk) == 0 {
				continue
			}
			return chunk, nil
		}
		if m.segEnd {
			return nil, io.EOF
		}
		if m.readErr != nil {
			return nil, m.readErr
		}
		if m.seg == segEpilogue {
			// Everything after the close delimiter is epilogue; no more
			// boundary scanning.
			chunk, err := m.r.Read()
			if err == io.EOF {
				m.srcEOF = true
				m.closeSegment(false, false)
				return nil, io.EOF
			}
			return chunk, err
		}

		data, delim, closing, rest, found := m.scanBuffer()
		if found {
			out := m.buf[:data]
			if rest < len(m.buf) {
				m.r.Pushback(m.buf[rest:])
			}
			m.buf = nil
			m.closeSegment(true, closing)
			m.lastDelim = delim
			m.lastDelimSet = true
			if !closing {
				m.delims = append(m.delims, delim)
			}
			if len(out) > 0 {
				return out, nil
			}
			return nil, io.EOF
		}
		if data > 0 {
			out := m.buf[:data]
			m.buf = m.buf[data:]
			m.atLineStart = out[len(out)-1] == '\n'
			return out, nil
		}
		if m.srcEOF {
			// Buffer flushed and no more data: the segment ends here.
			m.closeSegment(false, false)
			return nil, io.EOF
		}
		chunk, err := m.r.Read()
		if err == io.EOF {
			m.srcEOF = true
			continue
		}
		if err != nil {
			return nil, err
		}
		m.buf = append(m.buf, chunk...)
	}
}

func (m *MultipartReader) closeSegment(delim, closing bool) {
	m.segEnd = true
	m.endDelim = delim
	m.endClose = closing
	if !delim {
		m.lastDelimSet = false
		m.lastDelim = ""
	}
}

// Pushback returns unconsumed bytes to the currently open segment.
func (m *MultipartReader) Pushback(b []byte) {
	if len(b) == 0 {
		return
	}
	m.pending = append([][]byte{b}, m.pending...)
}

// drain discards the rest of the open segment, advancing past its delimiter.
func (m *MultipartReader) drain() {
	for {
		if _, err := m.Read(); err != nil {
			if err != io.EOF && err != ErrInvalidState && m.readErr == nil {
				m.readErr = err
			}
			return
		}
	}
}

// scanBuffer scans the rolling buffer for a delimiter line. When one is
// confirmed, found is true, data is the number of bytes ahead of it that are
// segment data, delim is the delimiter line text and rest indexes just past
// it. When no delimiter is confirmed, data is the number of bytes at the
// front of the buffer that can be safely released: the withheld tail could
// still become a delimiter once more bytes arrive.
func (m *MultipartReader) scanBuffer() (data int, delim string, closing bool, rest int, found bool) {
	marker := []byte("--" + m.boundary)
	for i := 0; i < len(m.buf); i++ {
		if i == 0 {
			if !m.atLineStart {
				continue
			}
		} else if m.buf[i-1] != '\n' {
			continue
		}
		d, c, end, ok, partial := matchDelimiter(m.buf[i:], marker, m.srcEOF)
		if ok {
			return i, d, c, i + end, true
		}
		if partial {
			// Unconfirmed candidate reaching the end of the buffer; hold
			// it back until more data arrives.
			return i, "", false, 0, false
		}
	}
	return len(m.buf), "", false, 0, false
}

// matchDelimiter matches b against a delimiter line for the given marker
// ("--" + boundary). ok means a full delimiter starts at b[0] and ends at
// end; partial means b is a proper prefix of a possible delimiter and the
// decision needs more data. At eof, an unterminated delimiter at the very
// end of the data counts as complete.
func matchDelimiter(b, marker []byte, eof bool) (delim string, closing bool, end int, ok, partial bool) {
	if len(b) < len(marker) {
		if bytes.HasPrefix(marker, b) {
			return "", false, 0, false, !eof
		}
		return "", false, 0, false, false
	}
	if !bytes.HasPrefix(b, marker) {
		return "", false, 0, false, false
	}
	i := len(marker)
	if i < len(b) && b[i] == '-' {
		if i+1 >= len(b) {
			// "--boundary-" at the end of the buffer.
			return "", false, 0, false, !eof
		}
		if b[i+1] != '-' {
			return "", false, 0, false, false
		}
		closing = true
		i += 2
	}
	if i >= len(b) {
		if eof {
			return string(b[:i]), closing, i, true, false
		}
		return "", false, 0, false, true
	}
	switch b[i] {
	case '\n':
		return string(b[:i+1]), closing, i + 1, true, false
	case '\r':
		if i+1 >= len(b) {
			return "", false, 0, false, !eof
		}
		if b[i+1] == '\n' {
			return string(b[:i+2]), closing, i + 2, true, false
		}
		return "", false, 0, false, false
	default:
		return "", false, 0, false, false
	}
}
