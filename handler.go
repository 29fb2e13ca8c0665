package mimestream

// Handler receives the structural events of a parse, in grammar order: for
// each entity, MboxFrom (at most once) and HeaderField per field, then
// either BodyBegin/BodyChunk.../BodyEnd, or MultipartBegin, PreambleChunk...,
// then per part PartBegin, the nested entity's events, PartEnd, then
// EpilogueChunk... and MultipartEnd. PartBegin/PartEnd pairs are balanced
// and properly nested.
//
// Chunk payloads are only valid for the duration of the call. Any error
// returned by a callback aborts the whole parse and propagates out of Parse
// unmodified.
type Handler interface {
	// MboxFrom reports an mbox "From " envelope line, without its
	// terminator.
	MboxFrom(line string) error
	// HeaderField reports one header field: the raw text, the
	// case-preserved name and the trimmed value.
	HeaderField(raw, name, value string) error
	BodyBegin() error
	BodyChunk(data []byte) error
	BodyEnd() error
	MultipartBegin() error
	PreambleChunk(data []byte) error
	PartBegin() error
	PartEnd() error
	EpilogueChunk(data []byte) error
	// MultipartEnd reports the part-opening delimiter lines in message
	// order and the boundary token the body was split on.
	MultipartEnd(delimiters []string, boundary string) error
}

// NopHandler implements Handler with no-ops for every event. Embed it to
// implement only the events a handler cares about.
type NopHandler struct{}

func (NopHandler) MboxFrom(string) error               { return nil }
func (NopHandler) HeaderField(_, _, _ string) error    { return nil }
func (NopHandler) BodyBegin() error                    { return nil }
func (NopHandler) BodyChunk([]byte) error              { return nil }
func (NopHandler) BodyEnd() error                      { return nil }
func (NopHandler) MultipartBegin() error               { return nil }
func (NopHandler) PreambleChunk([]byte) error          { return nil }
func (NopHandler) PartBegin() error                    { return nil }
func (NopHandler) PartEnd() error                      { return nil }
func (NopHandler) EpilogueChunk([]byte) error          { return nil }
func (NopHandler) MultipartEnd([]string, string) error { return nil }
