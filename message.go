package mimestream

import (
	"bytes"
	"fmt"
	"strings"
)

// Message is one node of a parsed message tree: the outermost message or a
// nested part. A node has either a flat Body or child Parts, never both.
type Message struct {
	// MboxFrom is the mbox envelope line, without terminator, or "".
	MboxFrom string
	// Fields are the raw header fields in message order.
	Fields []HeaderField
	// Body is the flat body; empty for multipart nodes.
	Body string
	// Parts are the child parts of a multipart node, in message order.
	Parts []*Message
	// Preamble and Epilogue are the text before the first delimiter and
	// after the close delimiter of a multipart body.
	Preamble string
	Epilogue string
	// Boundary is the boundary token the body was split on; Delimiters are
	// the part-opening delimiter lines, one per part.
	Boundary   string
	Delimiters []string
}

// Header returns the trimmed value of the first field with the given name,
// compared case-insensitively, or "".
func (m *Message) Header(name string) string {
	for _, f := range m.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// ContentType returns the raw Content-Type header value, or "".
func (m *Message) ContentType() string { return m.Header("Content-Type") }

// IsMultipart reports whether the node's body was parsed as multipart.
func (m *Message) IsMultipart() bool { return m.Boundary != "" }

// TreeBuilder is a Handler that assembles the parse into a Message tree.
// The zero value is not usable; create one with NewTreeBuilder.
type TreeBuilder struct {
	NopHandler
	stack []*treeFrame
}

type treeFrame struct {
	node     *Message
	body     bytes.Buffer
	preamble bytes.Buffer
	epilogue bytes.Buffer
}

// NewTreeBuilder returns a TreeBuilder with the root node already pushed.
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{stack: []*treeFrame{{node: &Message{}}}}
}

// Root returns the root of the assembled tree. Only meaningful after a
// completed parse.
func (b *TreeBuilder) Root() *Message { return b.stack[0].node }

func (b *TreeBuilder) top() *treeFrame { return b.stack[len(b.stack)-1] }

func (b *TreeBuilder) MboxFrom(line string) error {
	b.top().node.MboxFrom = line
	return nil
}

func (b *TreeBuilder) HeaderField(raw, name, value string) error {
	n := b.top().node
	n.Fields = append(n.Fields, HeaderField{Raw: raw, Name: name, Value: value})
	return nil
}

func (b *TreeBuilder) BodyChunk(data []byte) error {
	b.top().body.Write(data)
	return nil
}

func (b *TreeBuilder) BodyEnd() error {
	f := b.top()
	f.node.Body = f.body.String()
	return nil
}

func (b *TreeBuilder) PreambleChunk(data []byte) error {
	b.top().preamble.Write(data)
	return nil
}

func (b *TreeBuilder) EpilogueChunk(data []byte) error {
	b.top().epilogue.Write(data)
	return nil
}

func (b *TreeBuilder) PartBegin() error {
	b.stack = append(b.stack, &treeFrame{node: &Message{}})
	return nil
}

func (b *TreeBuilder) PartEnd() error {
	if len(b.stack) < 2 {
		return fmt.Errorf("%w: part end with no open part", ErrInvalidState)
	}
	f := b.top()
	b.stack = b.stack[:len(b.stack)-1]
	parent := b.top().node
	parent.Parts = append(parent.Parts, f.node)
	return nil
}

func (b *TreeBuilder) MultipartEnd(delimiters []string, boundary string) error {
	f := b.top()
	f.node.Preamble = f.preamble.String()
	f.node.Epilogue = f.epilogue.String()
	f.node.Boundary = boundary
	f.node.Delimiters = append([]string(nil), delimiters...)
	return nil
}
