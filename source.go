package mimestream

import "io"

// readSize is the buffer size used when chunking an io.Reader.
const readSize = 4096

// ChunkSource is a pull-based source of byte chunks: a file, a socket, an
// in-memory buffer. Next returns the next non-empty chunk, or io.EOF once
// the data is exhausted. Chunks returned by Next are owned by the caller.
type ChunkSource interface {
	Next() ([]byte, error)
}

type readerSource struct {
	r   io.Reader
	buf []byte
}

// NewReaderSource returns a ChunkSource that pulls chunks from r using the
// reader's natural read sizes.
func NewReaderSource(r io.Reader) ChunkSource {
	return &readerSource{r: r, buf: make([]byte, readSize)}
}

func (s *readerSource) Next() ([]byte, error) {
	for {
		n, err := s.r.Read(s.buf)
		if n > 0 {
			// The read buffer is reused, so hand out a copy.
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			return chunk, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

type bytesSource struct {
	data []byte
	done bool
}

// NewBytesSource returns a ChunkSource that yields b as a single chunk.
func NewBytesSource(b []byte) ChunkSource {
	return &bytesSource{data: b}
}

// NewStringSource returns a ChunkSource that yields s as a single chunk.
func NewStringSource(s string) ChunkSource {
	return NewBytesSource([]byte(s))
}

func (s *bytesSource) Next() ([]byte, error) {
	if s.done || len(s.data) == 0 {
		return nil, io.EOF
	}
	s.done = true
	return s.data, nil
}
