package synth

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hung319/magicstudio2api/internal/models"
)

// BatchRunner is the fan-out entry point the stream blocks on. It is the
// stream's only suspension point.
type BatchRunner interface {
	Execute(ctx context.Context, prompt string, count int) models.BatchResult
}

// StreamState enumerates the fixed emit-and-advance sequence of a chat
// stream turn.
type StreamState int

const (
	StateOpening StreamState = iota
	StateGenerating
	StateContent
	StateFailed
	StateStopped
	StateDone
)

// ChatStream drives one streamed chat turn over an SSE writer. Every path,
// success or failure, ends with a stop chunk followed by the [DONE] marker
// so clients can always terminate cleanly.
type ChatStream struct {
	id      string
	model   string
	created int64
	w       *bufio.Writer
	state   StreamState
}

// NewChatStream prepares a stream in the opening state.
func NewChatStream(w *bufio.Writer, model string) *ChatStream {
	return &ChatStream{
		id:      "chatcmpl-" + uuid.NewString(),
		model:   model,
		created: time.Now().Unix(),
		w:       w,
		state:   StateOpening,
	}
}

// State returns the current position in the emit sequence.
func (s *ChatStream) State() StreamState {
	return s.state
}

// Run executes the full turn: opening delta, one upstream round trip,
// content or error, stop, [DONE]. Emission errors abort silently; the
// transport is already committed and the connection closes either way.
func (s *ChatStream) Run(ctx context.Context, runner BatchRunner, prompt string) {
	if err := s.Open(); err != nil {
		return
	}

	batch := runner.Execute(ctx, prompt, 1)

	var err error
	if len(batch) > 0 && batch[0].OK() {
		err = s.Content(MarkdownImage(batch[0].B64JSON))
	} else {
		err = s.Fail(failReason(batch))
	}
	if err != nil {
		return
	}

	if err := s.Stop(); err != nil {
		return
	}
	_ = s.Done()
}

// Open emits the empty assistant delta that signals the turn has begun. It
// is sent before any network call so the client connection stays alive.
func (s *ChatStream) Open() error {
	if err := s.advance(StateOpening, StateGenerating); err != nil {
		return err
	}
	empty := ""
	return s.writeFrame(s.chunk(streamDelta{Role: "assistant", Content: &empty}, nil))
}

// Content emits the Markdown-wrapped image as a content delta.
func (s *ChatStream) Content(markdownImage string) error {
	if err := s.advance(StateGenerating, StateContent); err != nil {
		return err
	}
	return s.writeFrame(s.chunk(streamDelta{Content: &markdownImage}, nil))
}

// Fail emits an in-band error event in place of a content chunk.
func (s *ChatStream) Fail(message string) error {
	if err := s.advance(StateGenerating, StateFailed); err != nil {
		return err
	}
	return s.writeFrame(errorEvent{Error: errorBody{Message: message, Type: "server_error"}})
}

// Stop emits the terminal chunk with a null delta and finish_reason "stop".
func (s *ChatStream) Stop() error {
	if s.state != StateContent && s.state != StateFailed {
		return fmt.Errorf("chat stream: stop emitted from state %d", s.state)
	}
	s.state = StateStopped
	reason := "stop"
	return s.writeFrame(s.chunk(streamDelta{}, &reason))
}

// Done emits the literal end-of-stream marker.
func (s *ChatStream) Done() error {
	if err := s.advance(StateStopped, StateDone); err != nil {
		return err
	}
	if _, err := s.w.WriteString("data: [DONE]\n\n"); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *ChatStream) advance(from, to StreamState) error {
	if s.state != from {
		return fmt.Errorf("chat stream: transition to %d from unexpected state %d", to, s.state)
	}
	s.state = to
	return nil
}

func (s *ChatStream) chunk(delta streamDelta, finishReason *string) streamChunk {
	return streamChunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []streamChoice{
			{Index: 0, Delta: delta, FinishReason: finishReason},
		},
	}
}

func (s *ChatStream) writeFrame(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := s.w.WriteString("data: "); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.WriteString("\n\n"); err != nil {
		return err
	}
	return s.w.Flush()
}

func failReason(batch models.BatchResult) string {
	if reason := batch.FirstReason(); reason != "" {
		return "upstream image generation failed: " + reason
	}
	return "upstream image generation failed"
}

type streamDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type streamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorEvent struct {
	Error errorBody `json:"error"`
}
