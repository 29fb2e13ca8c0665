package mimestream

import "io"

// Option configures a parse.
type Option func(*options)

type options struct {
	chunkSize int
}

// WithChunkSize overrides the natural chunking of the source so that reads
// never return more than n bytes at a time. Parsing semantics do not depend
// on chunk size; the override exists to exercise fragmentation-sensitive
// paths, down to n = 1.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// Reader is the read/pushback capability the parser works against.
// PushbackReader provides it over a raw chunk source; MultipartReader
// provides it over a single segment of a multipart body.
type Reader interface {
	// Read returns the next chunk, or io.EOF once the data is exhausted.
	// The returned slice is only valid until the next call on the reader.
	Read() ([]byte, error)
	// Pushback returns unconsumed bytes so that a later Read yields them
	// again, ahead of any new data. Empty input is a no-op.
	Pushback(b []byte)
}

// PushbackReader wraps a ChunkSource with the ability to push unconsumed
// bytes back onto the front of the stream. Bytes always come back out in
// original stream order, no matter how often pushback is used.
type PushbackReader struct {
	src       ChunkSource
	pending   [][]byte
	chunkSize int
	eof       bool
}

// NewPushbackReader returns a PushbackReader over src. The reader assumes
// exclusive ownership of the source.
func NewPushbackReader(src ChunkSource, opts ...Option) *PushbackReader {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &PushbackReader{src: src, chunkSize: o.chunkSize}
}

// Read returns pending pushback data first, in order, then pulls new chunks
// from the source. It returns io.EOF once the source is exhausted and no
// pushback remains.
func (r *PushbackReader) Read() ([]byte, error) {
	for {
		if len(r.pending) > 0 {
			chunk := r.pending[0]
			r.pending = r.pending[1:]
			if len(chunk) == 0 {
				continue
			}
			return r.clip(chunk), nil
		}
		if r.eof {
			return nil, io.EOF
		}
		chunk, err := r.src.Next()
		if err == io.EOF {
			r.eof = true
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			continue
		}
		return r.clip(chunk), nil
	}
}

// clip enforces the chunk-size override, requeueing the remainder.
func (r *PushbackReader) clip(chunk []byte) []byte {
	if r.chunkSize <= 0 || len(chunk) <= r.chunkSize {
		return chunk
	}
	r.pending = append([][]byte{chunk[r.chunkSize:]}, r.pending...)
	return chunk[:r.chunkSize]
}

// Pushback prepends b to the pending queue. A no-op if b is empty.
func (r *PushbackReader) Pushback(b []byte) {
	if len(b) == 0 {
		return
	}
	r.pending = append([][]byte{b}, r.pending...)
}
