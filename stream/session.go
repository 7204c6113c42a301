package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	clienterrors "github.com/jrsteele09/go-chat-client/internal/errors"
)

const (
	dataPrefix       = "data: "
	defaultChunkSize = 4 * 1024
)

// Session decodes one server-push connection into typed events. All state
// for the connection — the partial-line buffer, the first-message flag, the
// completion state — is owned here and touched only by the read loop, so
// two sessions never interleave into the same buffer.
type Session struct {
	id       string
	body     io.ReadCloser
	cancel   context.CancelFunc
	handlers Handlers
	log      zerolog.Logger

	buf       string // unterminated trailing text from the previous chunk
	first     bool   // next content frame is the session's first
	completed bool
	aborted   atomic.Bool
	chunkSize int
	done      chan struct{}

	// last-seen correlation IDs, reported when a frame is unreadable
	taskID         string
	messageID      string
	conversationID string
}

// SessionOption defines a function type to modify the Session instance.
type SessionOption func(*Session)

// WithLogger sets the logger used for decode diagnostics.
func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// WithChunkSize sets the read size of the decode loop.
func WithChunkSize(size int) SessionOption {
	return func(s *Session) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// NewSession wraps a live response body. cancel aborts the underlying
// transport and may be nil when the caller manages the transport itself.
func NewSession(body io.ReadCloser, cancel context.CancelFunc, handlers Handlers, options ...SessionOption) *Session {
	session := &Session{
		id:        uuid.New().String(),
		body:      body,
		cancel:    cancel,
		handlers:  handlers,
		log:       zerolog.Nop(),
		first:     true,
		chunkSize: defaultChunkSize,
		done:      make(chan struct{}),
	}
	for _, opt := range options {
		opt(session)
	}
	if session.cancel == nil {
		session.cancel = func() {}
	}
	return session
}

// Run drives the decode loop until completion, error, or abort. It blocks;
// callers needing the session concurrently start it on its own goroutine.
// Dispatch order within the session is strictly line-arrival order.
func (s *Session) Run() {
	defer close(s.done)
	defer s.body.Close()

	chunk := make([]byte, s.chunkSize)
	for {
		n, err := s.body.Read(chunk)
		if n > 0 {
			s.feed(chunk[:n])
			if s.completed {
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				s.complete(nil)
			} else {
				s.complete(clienterrors.Wrapf(err, "stream transport failed"))
			}
			return
		}
	}
}

// Abort stops the underlying transport. No further events are dispatched
// and the completion callback is suppressed: a consumer that cancels must
// not see its own cancel reported back as an error.
func (s *Session) Abort() {
	s.aborted.Store(true)
	s.cancel()
}

// Done is closed when the decode loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// feed appends one delivered chunk and processes every complete line.
// Chunk boundaries are arbitrary: only text terminated by a newline is
// parsed; the trailing fragment waits for more bytes.
func (s *Session) feed(chunk []byte) {
	if s.completed || s.aborted.Load() {
		return
	}
	text := s.buf + string(chunk)
	lines := strings.Split(text, "\n")
	s.buf = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		s.processLine(line)
		if s.completed || s.aborted.Load() {
			// Error frame: remaining lines of this chunk are dropped.
			return
		}
	}
}

func (s *Session) processLine(line string) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		// Keep-alive and comment lines carry no frame.
		return
	}
	raw := []byte(strings.TrimPrefix(line, dataPrefix))

	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		// A truncated frame inside an otherwise healthy stream is not
		// fatal: surface an empty fragment under the IDs still known and
		// keep decoding.
		s.log.Warn().Err(err).Str("session", s.id).Msg("dropping malformed stream frame")
		s.dispatchMessage(Message{
			TaskID:         s.taskID,
			MessageID:      s.messageID,
			ConversationID: s.conversationID,
		})
		return
	}

	if f.Event == "" || (f.Status != nil && *f.Status == http.StatusBadRequest) {
		s.errorFrame(f.errCode(), f.Message)
		return
	}

	s.remember(f)
	s.dispatch(raw, f)
}

func (s *Session) dispatch(raw []byte, f frame) {
	switch f.Event {
	case EventMessage, EventAgentMessage:
		s.dispatchMessage(Message{
			TaskID:         f.TaskID,
			MessageID:      f.MessageID,
			ConversationID: f.ConversationID,
			Answer:         f.Answer,
			Agent:          f.Event == EventAgentMessage,
		})
	case EventMessageEnd:
		var m MessageEnd
		if s.decode(raw, f.Event, &m) && s.handlers.OnMessageEnd != nil {
			s.handlers.OnMessageEnd(m)
		}
	case EventMessageReplace:
		var m MessageReplace
		if s.decode(raw, f.Event, &m) && s.handlers.OnMessageReplace != nil {
			s.handlers.OnMessageReplace(m)
		}
	case EventMessageFile:
		var file File
		if s.decode(raw, f.Event, &file) && s.handlers.OnFile != nil {
			s.handlers.OnFile(file)
		}
	case EventAgentThought:
		var th Thought
		if s.decode(raw, f.Event, &th) && s.handlers.OnThought != nil {
			s.handlers.OnThought(th)
		}
	case EventAgentLog:
		var l AgentLog
		if s.decode(raw, f.Event, &l) && s.handlers.OnAgentLog != nil {
			s.handlers.OnAgentLog(l)
		}
	case EventWorkflowStarted:
		s.dispatchGraph(raw, f.Event, s.handlers.OnWorkflowStarted)
	case EventWorkflowFinished:
		s.dispatchGraph(raw, f.Event, s.handlers.OnWorkflowFinished)
	case EventNodeStarted:
		s.dispatchGraph(raw, f.Event, s.handlers.OnNodeStarted)
	case EventNodeFinished:
		s.dispatchGraph(raw, f.Event, s.handlers.OnNodeFinished)
	case EventParallelBranchStarted:
		s.dispatchGraph(raw, f.Event, s.handlers.OnParallelBranchStarted)
	case EventParallelBranchFinished:
		s.dispatchGraph(raw, f.Event, s.handlers.OnParallelBranchFinished)
	case EventIterationStarted:
		s.dispatchGraph(raw, f.Event, s.handlers.OnIterationStarted)
	case EventIterationNext:
		s.dispatchGraph(raw, f.Event, s.handlers.OnIterationNext)
	case EventIterationCompleted:
		s.dispatchGraph(raw, f.Event, s.handlers.OnIterationCompleted)
	case EventTextChunk:
		s.dispatchText(raw, f.Event, s.handlers.OnTextChunk)
	case EventTextReplace:
		s.dispatchText(raw, f.Event, s.handlers.OnTextReplace)
	case EventTTSMessage:
		s.dispatchTTS(raw, f.Event, s.handlers.OnTTSMessage)
	case EventTTSMessageEnd:
		s.dispatchTTS(raw, f.Event, s.handlers.OnTTSMessageEnd)
	case EventPing:
		if s.handlers.OnPing != nil {
			s.handlers.OnPing()
		}
	case EventError:
		s.errorFrame(f.errCode(), f.Message)
	default:
		// Unknown event kinds are dropped, never fatal.
		s.log.Debug().Str("session", s.id).Str("event", string(f.Event)).Msg("ignoring unknown stream event")
	}
}

func (s *Session) dispatchMessage(m Message) {
	m.First = s.first
	s.first = false
	if s.handlers.OnMessage != nil {
		s.handlers.OnMessage(m)
	}
}

func (s *Session) dispatchGraph(raw []byte, event EventType, handler func(GraphEvent)) {
	var e GraphEvent
	if s.decode(raw, event, &e) && handler != nil {
		handler(e)
	}
}

func (s *Session) dispatchText(raw []byte, event EventType, handler func(TextChunk)) {
	var c TextChunk
	if s.decode(raw, event, &c) && handler != nil {
		handler(c)
	}
}

func (s *Session) dispatchTTS(raw []byte, event EventType, handler func(TTSMessage)) {
	var m TTSMessage
	if s.decode(raw, event, &m) && handler != nil {
		handler(m)
	}
}

func (s *Session) decode(raw []byte, event EventType, out any) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn().Err(err).Str("session", s.id).Str("event", string(event)).Msg("dropping undecodable stream frame")
		return false
	}
	return true
}

func (s *Session) remember(f frame) {
	if f.TaskID != "" {
		s.taskID = f.TaskID
	}
	if f.MessageID != "" {
		s.messageID = f.MessageID
	}
	if f.ConversationID != "" {
		s.conversationID = f.ConversationID
	}
}

// errorFrame routes a frame to the error path and ends the session. The
// completion callback carries the frame's message so the consumer sees the
// failure exactly once.
func (s *Session) errorFrame(code int, message string) {
	if s.handlers.OnError != nil {
		s.handlers.OnError(code, message)
	}
	s.complete(clienterrors.Wrapf(clienterrors.ErrStreamRejected, "%s (code=%d)", message, code))
	s.cancel()
}

func (s *Session) complete(err error) {
	if s.completed || s.aborted.Load() {
		return
	}
	s.completed = true
	if s.handlers.OnCompleted != nil {
		s.handlers.OnCompleted(err)
	}
}
