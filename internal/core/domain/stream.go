package domain

import (
	"context"
	"sync"
)

// StreamState is the lifecycle state of a streamed answer.
type StreamState int

// Stream states. Completed, Failed and Cancelled are terminal.
const (
	StreamPending StreamState = iota
	StreamStreaming
	StreamCompleted
	StreamFailed
	StreamCancelled
)

// String returns the string representation.
func (s StreamState) String() string {
	switch s {
	case StreamPending:
		return "pending"
	case StreamStreaming:
		return "streaming"
	case StreamCompleted:
		return "completed"
	case StreamFailed:
		return "failed"
	case StreamCancelled:
		return "cancelled"
	default:
		return unknownDescription
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s StreamState) IsTerminal() bool {
	return s == StreamCompleted || s == StreamFailed || s == StreamCancelled
}

// TokenKind distinguishes generated text from messages produced by the streamer.
type TokenKind int

const (
	// TokenText is text produced by the generator.
	TokenText TokenKind = iota

	// TokenNotice is a fixed informational message, e.g. nothing relevant found.
	TokenNotice

	// TokenError is the final diagnostic emitted when generation fails.
	TokenError
)

// Token is a unit of streamed output.
type Token struct {
	Kind TokenKind
	Text string
}

// StreamSession is a snapshot of a stream's bookkeeping.
type StreamSession struct {
	ID            string
	State         StreamState
	TokensEmitted int
	Cancelled     bool
}

// Stream is the consumer side of a streamed answer.
// Tokens are delivered in order on an unbuffered channel that is closed
// when the stream reaches a terminal state.
type Stream struct {
	id     string
	tokens chan Token
	done   chan struct{}
	cancel context.CancelFunc

	mu        sync.Mutex
	state     StreamState
	emitted   int
	cancelled bool
	err       error
}

// StreamWriter is the producer side of a Stream. Exactly one goroutine
// may hold it.
type StreamWriter struct {
	s *Stream
}

// NewStream creates a pending stream. cancel is invoked when the consumer
// cancels and when the stream finishes.
func NewStream(id string, cancel context.CancelFunc) (*Stream, *StreamWriter) {
	if cancel == nil {
		cancel = func() {}
	}
	s := &Stream{
		id:     id,
		tokens: make(chan Token),
		done:   make(chan struct{}),
		cancel: cancel,
		state:  StreamPending,
	}
	return s, &StreamWriter{s: s}
}

// ID returns the session id.
func (s *Stream) ID() string {
	return s.id
}

// Tokens returns the channel tokens are delivered on.
func (s *Stream) Tokens() <-chan Token {
	return s.tokens
}

// Done is closed once the stream reaches a terminal state.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Cancel requests cancellation. Safe to call more than once and after completion.
func (s *Stream) Cancel() {
	s.mu.Lock()
	if !s.state.IsTerminal() {
		s.cancelled = true
	}
	s.mu.Unlock()
	s.cancel()
}

// State returns the current state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that failed the stream, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Session returns a snapshot of the stream's bookkeeping.
func (s *Stream) Session() StreamSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StreamSession{
		ID:            s.id,
		State:         s.state,
		TokensEmitted: s.emitted,
		Cancelled:     s.cancelled,
	}
}

// Wait blocks until the stream terminates and returns the final state.
// The caller must keep draining Tokens or the producer cannot finish.
func (s *Stream) Wait() StreamState {
	<-s.done
	return s.State()
}

// Collect drains the stream and returns all tokens received.
func (s *Stream) Collect() []Token {
	var out []Token
	for tok := range s.tokens {
		out = append(out, tok)
	}
	<-s.done
	return out
}

// Start moves the stream from Pending to Streaming.
func (w *StreamWriter) Start() {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.s.state == StreamPending {
		w.s.state = StreamStreaming
	}
}

// Send delivers tok to the consumer. It returns false without sending
// when ctx is done first.
func (w *StreamWriter) Send(ctx context.Context, tok Token) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	select {
	case w.s.tokens <- tok:
		w.s.mu.Lock()
		w.s.emitted++
		w.s.mu.Unlock()
		return true
	case <-ctx.Done():
		return false
	}
}

// Emitted returns the number of tokens delivered so far.
func (w *StreamWriter) Emitted() int {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.s.emitted
}

// Finish moves the stream to a terminal state, closes the token channel
// and releases the stream's context. Only the first call has an effect.
func (w *StreamWriter) Finish(state StreamState, err error) {
	w.s.mu.Lock()
	if w.s.state.IsTerminal() {
		w.s.mu.Unlock()
		return
	}
	w.s.state = state
	w.s.err = err
	if state == StreamCancelled {
		w.s.cancelled = true
	}
	w.s.mu.Unlock()

	close(w.s.tokens)
	w.s.cancel()
	close(w.s.done)
}
