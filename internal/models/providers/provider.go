// Package providers contains the model vendor adapters.
//
// Each adapter normalizes one vendor's API into the shared capability set:
// a single chat response, a finite stream of response fragments ending in
// a final fragment with the finish reason and usage totals, and a listing
// of the models it natively supports. Adapter selection happens in the
// resolver by configured identifier; nothing here knows about the model
// registry.
package providers

import (
	"context"

	"github.com/haasonsaas/lattice/pkg/api"
)

// Adapter identifiers, also the values accepted in a model registration's
// adapter_type field.
const (
	TypeOpenAI    = "openai"
	TypeAnthropic = "anthropic"
)

// Request is the resolved, defaulted inference request handed to an
// adapter. The resolver has already applied config defaults and expanded
// any named system prompt, so adapters never consult other services.
type Request struct {
	Model          string
	Messages       []api.ChatMessage
	SystemPrompt   string
	Temperature    float64
	MaxTokens      int
	TopP           float64
	StopSequences  []string
	Tools          []api.ToolDefinition
	ResponseFormat *api.ResponseFormat
}

// Provider is one vendor adapter.
//
// ChatStream returns a Stream whose channel the adapter's goroutine
// closes when the vendor stream ends. The final fragment before a clean
// close carries the finish reason and usage; a vendor failure mid-stream
// is reported by Stream.Err after the close. Cancelling ctx closes the
// upstream call promptly.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req *Request) (*api.ChatResponse, error)
	ChatStream(ctx context.Context, req *Request) (*Stream, error)
	SupportedModels() []api.ModelInfo
}

// Stream carries chat fragments from an adapter goroutine to its
// consumer. The producer ends it with exactly one Close; a truncated
// vendor stream closes with the cause so the consumer can distinguish a
// failure from a clean end.
type Stream struct {
	chunks chan *api.ChatChunk
	err    error
}

// NewStream creates an open fragment stream.
func NewStream() *Stream {
	return &Stream{chunks: make(chan *api.ChatChunk)}
}

// Chunks is the receive side. It is closed when the stream ends.
func (s *Stream) Chunks() <-chan *api.ChatChunk { return s.chunks }

// Send delivers one fragment. It reports false when ctx ended first, in
// which case the fragment was dropped.
func (s *Stream) Send(ctx context.Context, chunk *api.ChatChunk) bool {
	select {
	case s.chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close ends the stream. A non-nil err records that the vendor stream
// failed before its final fragment.
func (s *Stream) Close(err error) {
	s.err = err
	close(s.chunks)
}

// Err reports why the stream ended early, if it did. The value is
// meaningful once Chunks is closed.
func (s *Stream) Err() error { return s.err }
