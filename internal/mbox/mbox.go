// Package mbox splits mbox files into individual messages. A new message
// starts at every line beginning with "From " (the mbox envelope line);
// content before the first envelope line is treated as a message of its own
// so that single non-mbox files pass through unchanged.
package mbox

import (
	"bufio"
	"bytes"
	"io"
)

const envelopePrefix = "From "

// Scanner iterates over the messages of an mbox stream.
type Scanner struct {
	r       *bufio.Reader
	msg     []byte
	carried []byte
	err     error
	done    bool
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

// Next advances to the next message. It returns false at end of input or on
// a read error; check Err afterwards.
func (s *Scanner) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	var buf bytes.Buffer
	buf.Write(s.carried)
	s.carried = nil
	sawAny := buf.Len() > 0

	for {
		line, err := s.r.ReadBytes('\n')
		if len(line) > 0 {
			if sawAny && bytes.HasPrefix(line, []byte(envelopePrefix)) {
				// Envelope line opens the next message.
				s.carried = line
				s.msg = buf.Bytes()
				return true
			}
			buf.Write(line)
			sawAny = true
		}
		if err == io.EOF {
			s.done = true
			if buf.Len() == 0 {
				return false
			}
			s.msg = buf.Bytes()
			return true
		}
		if err != nil {
			s.err = err
			return false
		}
	}
}

// Message returns the raw bytes of the current message, including its
// envelope line when present. Valid until the next call to Next.
func (s *Scanner) Message() []byte {
	return s.msg
}

// Err returns the first read error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}
