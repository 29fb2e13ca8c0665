// Package mimestream is a streaming parser for MIME-structured mail
// messages. It turns a stream of byte chunks (an mbox-style message with an
// optional leading "From " envelope line, RFC 5322 headers and a MIME body
// that may be a single part or a recursively nested multipart structure)
// into a fixed sequence of structural events delivered to a Handler, and can
// optionally assemble those events into an in-memory Message tree.
//
// The parser is chunk-agnostic: the events it emits are identical no matter
// how the input is fragmented, down to one-byte chunks. Malformed input
// never produces an error; missing separators, missing boundaries and
// truncated multiparts degrade to plain bodies, the way real mail software
// has to treat the mail that actually exists in the wild.
package mimestream

import (
	"errors"
	"fmt"
)

// ErrInvalidState is the only error kind the package raises on its own. It
// signals API misuse (reading from a finished segment, unbalanced tree
// events, a nil handler) and is never returned for message content, however
// malformed. Callers should not wrap ordinary parsing in recovery logic
// expecting it to fire on bad mail.
var ErrInvalidState = errors.New("mimestream: invalid state")

// Parse drives the message grammar over src, reporting every structural
// event to h. Errors returned by handler callbacks propagate unmodified and
// abort the whole parse; aside from those, only source I/O failures and API
// misuse produce an error.
func Parse(src ChunkSource, h Handler, opts ...Option) error {
	if src == nil {
		return fmt.Errorf("%w: nil source", ErrInvalidState)
	}
	if h == nil {
		return fmt.Errorf("%w: nil handler", ErrInvalidState)
	}
	return parseEntity(NewPushbackReader(src, opts...), h, 0)
}

// ParseMessage parses src into an in-memory message tree using a
// TreeBuilder and returns the root node.
func ParseMessage(src ChunkSource, opts ...Option) (*Message, error) {
	tb := NewTreeBuilder()
	if err := Parse(src, tb, opts...); err != nil {
		return nil, err
	}
	return tb.Root(), nil
}
