package services

import (
	"fmt"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

// Streamer enforces the per-turn event grammar in front of an
// EventSink: one or more status events, then tokens, with citations
// once generation has produced output, closed by exactly one done or
// error event. Out-of-order emissions fail with domain.ErrStreamOrder
// and are never forwarded; emissions after the terminal event fail
// with domain.ErrStreamClosed.
//
// A Streamer serves one turn and is used from one goroutine.
type Streamer struct {
	sink      driving.EventSink
	sentStage bool
	sentToken bool
	terminal  bool
}

// NewStreamer wraps sink for one turn.
func NewStreamer(sink driving.EventSink) *Streamer {
	return &Streamer{sink: sink}
}

// Status reports a pipeline stage transition. Stages only precede
// generation output; a status after the first token is out of order.
func (s *Streamer) Status(stage string) error {
	if s.terminal {
		return domain.ErrStreamClosed
	}
	if s.sentToken {
		return fmt.Errorf("%w: status %q after tokens", domain.ErrStreamOrder, stage)
	}
	s.sentStage = true
	return s.sink.Send(domain.StreamEvent{Type: domain.EventStatus, Stage: stage})
}

// Token forwards one generated fragment.
func (s *Streamer) Token(content string) error {
	if s.terminal {
		return domain.ErrStreamClosed
	}
	if !s.sentStage {
		return fmt.Errorf("%w: token before any status", domain.ErrStreamOrder)
	}
	s.sentToken = true
	return s.sink.Send(domain.StreamEvent{Type: domain.EventToken, Content: content})
}

// Citation forwards one resolved citation.
func (s *Streamer) Citation(c domain.Citation) error {
	if s.terminal {
		return domain.ErrStreamClosed
	}
	if !s.sentToken {
		return fmt.Errorf("%w: citation before any token", domain.ErrStreamOrder)
	}
	return s.sink.Send(domain.StreamEvent{Type: domain.EventCitation, Citation: &c})
}

// Done closes the stream successfully. Content carries the full answer
// so clients can recover from missed tokens.
func (s *Streamer) Done(messageID, content string, fromDocuments bool) error {
	if s.terminal {
		return domain.ErrStreamClosed
	}
	if !s.sentStage {
		return fmt.Errorf("%w: done before any status", domain.ErrStreamOrder)
	}
	s.terminal = true
	return s.sink.Send(domain.StreamEvent{
		Type:          domain.EventDone,
		MessageID:     messageID,
		Content:       content,
		FromDocuments: fromDocuments,
	})
}

// Fail closes the stream with an error event. Permitted at any point
// before the terminal event: failures can strike any stage.
func (s *Streamer) Fail(code, message string) error {
	if s.terminal {
		return domain.ErrStreamClosed
	}
	s.terminal = true
	return s.sink.Send(domain.StreamEvent{
		Type:    domain.EventError,
		Code:    code,
		Message: message,
	})
}

// Terminated reports whether a terminal event has been sent.
func (s *Streamer) Terminated() bool {
	return s.terminal
}
