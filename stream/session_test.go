package stream_test

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	clienterrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/jrsteele09/go-chat-client/stream"
)

// chunkedReader delivers the body in fixed-size chunks so tests can place
// frame boundaries anywhere relative to delivery boundaries.
type chunkedReader struct {
	data []byte
	size int
	pos  int
}

func (cr *chunkedReader) Read(p []byte) (int, error) {
	if cr.pos >= len(cr.data) {
		return 0, io.EOF
	}
	n := cr.size
	if n > len(cr.data)-cr.pos {
		n = len(cr.data) - cr.pos
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, cr.data[cr.pos:cr.pos+n])
	cr.pos += n
	return n, nil
}

// recorder turns every callback into one trace line so whole sessions can
// be compared with require.Equal.
type recorder struct {
	trace          []string
	completions    int
	completeErrs   []error
	errorCallbacks []string
}

func (r *recorder) handlers() stream.Handlers {
	return stream.Handlers{
		OnMessage: func(m stream.Message) {
			r.trace = append(r.trace, fmt.Sprintf("message answer=%q first=%t agent=%t ids=%s/%s/%s",
				m.Answer, m.First, m.Agent, m.TaskID, m.MessageID, m.ConversationID))
		},
		OnMessageEnd: func(m stream.MessageEnd) {
			r.trace = append(r.trace, "message_end "+m.MessageID)
		},
		OnMessageReplace: func(m stream.MessageReplace) {
			r.trace = append(r.trace, "message_replace "+m.Answer)
		},
		OnFile: func(f stream.File) {
			r.trace = append(r.trace, "file "+f.URL)
		},
		OnThought: func(th stream.Thought) {
			r.trace = append(r.trace, fmt.Sprintf("thought pos=%d %s", th.Position, th.Thought))
		},
		OnAgentLog: func(l stream.AgentLog) {
			r.trace = append(r.trace, "agent_log "+l.Label)
		},
		OnWorkflowStarted:        func(e stream.GraphEvent) { r.trace = append(r.trace, "workflow_started "+e.WorkflowRunID) },
		OnWorkflowFinished:       func(e stream.GraphEvent) { r.trace = append(r.trace, "workflow_finished "+e.WorkflowRunID) },
		OnNodeStarted:            func(e stream.GraphEvent) { r.trace = append(r.trace, "node_started "+string(e.Data)) },
		OnNodeFinished:           func(e stream.GraphEvent) { r.trace = append(r.trace, "node_finished "+string(e.Data)) },
		OnParallelBranchStarted:  func(e stream.GraphEvent) { r.trace = append(r.trace, "branch_started") },
		OnParallelBranchFinished: func(e stream.GraphEvent) { r.trace = append(r.trace, "branch_finished") },
		OnIterationStarted:       func(e stream.GraphEvent) { r.trace = append(r.trace, "iteration_started") },
		OnIterationNext:          func(e stream.GraphEvent) { r.trace = append(r.trace, "iteration_next") },
		OnIterationCompleted:     func(e stream.GraphEvent) { r.trace = append(r.trace, "iteration_completed") },
		OnTextChunk:              func(c stream.TextChunk) { r.trace = append(r.trace, "text_chunk "+c.Data.Text) },
		OnTextReplace:            func(c stream.TextChunk) { r.trace = append(r.trace, "text_replace "+c.Data.Text) },
		OnTTSMessage:             func(m stream.TTSMessage) { r.trace = append(r.trace, "tts "+m.Audio) },
		OnTTSMessageEnd:          func(m stream.TTSMessage) { r.trace = append(r.trace, "tts_end") },
		OnPing:                   func() { r.trace = append(r.trace, "ping") },
		OnError: func(code int, message string) {
			r.errorCallbacks = append(r.errorCallbacks, fmt.Sprintf("%d %s", code, message))
		},
		OnCompleted: func(err error) {
			r.completions++
			r.completeErrs = append(r.completeErrs, err)
		},
	}
}

func runSession(t *testing.T, body string, chunkSize int) *recorder {
	t.Helper()
	rec := &recorder{}
	session := stream.NewSession(
		io.NopCloser(&chunkedReader{data: []byte(body), size: chunkSize}),
		nil,
		rec.handlers(),
	)
	session.Run()
	return rec
}

const healthyBody = `data: {"event": "workflow_started", "task_id": "t1", "workflow_run_id": "w1"}
data: {"event": "node_started", "task_id": "t1", "data": {"id": "n1"}}
data: {"event": "parallel_branch_started", "task_id": "t1"}
data: {"event": "message", "task_id": "t1", "message_id": "m1", "conversation_id": "c1", "answer": "Hel"}
data: {"event": "message", "task_id": "t1", "message_id": "m1", "conversation_id": "c1", "answer": "lo"}
: keep-alive comment
data: {"event": "agent_thought", "task_id": "t1", "message_id": "m1", "position": 1, "thought": "considering", "tool": "search"}
data: {"event": "agent_log", "task_id": "t1", "label": "tool call"}
data: {"event": "message_file", "task_id": "t1", "message_id": "m1", "url": "/files/a.png"}
data: {"event": "text_chunk", "task_id": "t1", "data": {"text": "raw"}}
data: {"event": "text_replace", "task_id": "t1", "data": {"text": "raw2"}}
data: {"event": "tts_message", "task_id": "t1", "message_id": "m1", "audio": "YXVkaW8="}
data: {"event": "tts_message_end", "task_id": "t1", "message_id": "m1"}
data: {"event": "iteration_started", "task_id": "t1"}
data: {"event": "iteration_next", "task_id": "t1"}
data: {"event": "iteration_completed", "task_id": "t1"}
data: {"event": "ping"}
data: {"event": "message_replace", "task_id": "t1", "message_id": "m1", "answer": "Hello!"}
data: {"event": "parallel_branch_finished", "task_id": "t1"}
data: {"event": "node_finished", "task_id": "t1", "data": {"id": "n1"}}
data: {"event": "message_end", "task_id": "t1", "message_id": "m1"}
data: {"event": "workflow_finished", "task_id": "t1", "workflow_run_id": "w1"}
`

func TestSession_DispatchesTypedEvents(t *testing.T) {
	rec := runSession(t, healthyBody, len(healthyBody))

	require.Equal(t, 1, rec.completions)
	require.NoError(t, rec.completeErrs[0])
	require.Empty(t, rec.errorCallbacks)

	require.Equal(t, []string{
		"workflow_started w1",
		`node_started {"id": "n1"}`,
		"branch_started",
		`message answer="Hel" first=true agent=false ids=t1/m1/c1`,
		`message answer="lo" first=false agent=false ids=t1/m1/c1`,
		"thought pos=1 considering",
		"agent_log tool call",
		"file /files/a.png",
		"text_chunk raw",
		"text_replace raw2",
		"tts YXVkaW8=",
		"tts_end",
		"iteration_started",
		"iteration_next",
		"iteration_completed",
		"ping",
		"message_replace Hello!",
		"branch_finished",
		`node_finished {"id": "n1"}`,
		"message_end m1",
		"workflow_finished w1",
	}, rec.trace)
}

// Splitting the same bytes at every possible chunk boundary must produce
// the identical event sequence: partial lines wait in the session buffer
// until their terminating newline arrives.
func TestSession_ReassemblyIsChunkingInvariant(t *testing.T) {
	reference := runSession(t, healthyBody, len(healthyBody))

	for size := 1; size <= len(healthyBody); size++ {
		rec := runSession(t, healthyBody, size)
		require.Equalf(t, reference.trace, rec.trace, "chunk size %d diverged", size)
		require.Equal(t, 1, rec.completions)
		require.NoError(t, rec.completeErrs[0])
	}
}

func TestSession_ErrorFrameShortCircuits(t *testing.T) {
	body := `data: {"event": "message", "task_id": "t1", "message_id": "m1", "answer": "hi"}
data: {"status": 400, "code": 400, "message": "boom"}
data: {"event": "message", "task_id": "t1", "message_id": "m1", "answer": "never delivered"}
data: {"event": "message_end", "task_id": "t1", "message_id": "m1"}
`
	rec := runSession(t, body, len(body))

	require.Equal(t, []string{"400 boom"}, rec.errorCallbacks)
	require.Equal(t, 1, rec.completions)
	require.ErrorIs(t, rec.completeErrs[0], clienterrors.ErrStreamRejected)
	require.Equal(t, []string{
		`message answer="hi" first=true agent=false ids=t1/m1/`,
	}, rec.trace, "frames after the error frame must not be dispatched")
}

func TestSession_ExplicitErrorEvent(t *testing.T) {
	body := `data: {"event": "error", "code": 50001, "message": "model overloaded"}` + "\n"
	rec := runSession(t, body, len(body))

	require.Equal(t, []string{"50001 model overloaded"}, rec.errorCallbacks)
	require.Equal(t, 1, rec.completions)
	require.ErrorIs(t, rec.completeErrs[0], clienterrors.ErrStreamRejected)
}

func TestSession_UnknownEventsAreDropped(t *testing.T) {
	body := `data: {"event": "shiny_new_event", "task_id": "t1"}
data: {"event": "message", "task_id": "t1", "answer": "still works"}
`
	rec := runSession(t, body, len(body))

	require.Equal(t, []string{`message answer="still works" first=true agent=false ids=t1//`}, rec.trace)
	require.Equal(t, 1, rec.completions)
	require.NoError(t, rec.completeErrs[0])
}

func TestSession_MalformedFrameIsAbsorbed(t *testing.T) {
	body := `data: {"event": "message", "task_id": "t1", "message_id": "m1", "conversation_id": "c1", "answer": "one"}
data: {"event": "message", "task_id":
data: {"event": "message", "task_id": "t1", "message_id": "m1", "conversation_id": "c1", "answer": "two"}
`
	rec := runSession(t, body, len(body))

	require.Equal(t, []string{
		`message answer="one" first=true agent=false ids=t1/m1/c1`,
		// The unreadable frame surfaces as an empty fragment carrying the
		// correlation IDs seen so far.
		`message answer="" first=false agent=false ids=t1/m1/c1`,
		`message answer="two" first=false agent=false ids=t1/m1/c1`,
	}, rec.trace)
	require.Equal(t, 1, rec.completions)
	require.NoError(t, rec.completeErrs[0])
}

func TestSession_TransportErrorCompletesWithError(t *testing.T) {
	pr, pw := io.Pipe()
	rec := &recorder{}
	var mu sync.Mutex
	handlers := rec.handlers()
	wrapped := handlers
	wrapped.OnCompleted = func(err error) {
		mu.Lock()
		defer mu.Unlock()
		handlers.OnCompleted(err)
	}

	session := stream.NewSession(pr, nil, wrapped)
	go session.Run()

	_, err := pw.Write([]byte("data: {\"event\": \"message\", \"answer\": \"hi\"}\n"))
	require.NoError(t, err)
	pw.CloseWithError(fmt.Errorf("connection reset"))

	<-session.Done()
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, rec.completions)
	require.Error(t, rec.completeErrs[0])
	require.Contains(t, rec.completeErrs[0].Error(), "connection reset")
}

func TestSession_AbortSuppressesCompletion(t *testing.T) {
	pr, pw := io.Pipe()
	rec := &recorder{}
	var mu sync.Mutex
	handlers := rec.handlers()
	wrapped := handlers
	wrapped.OnMessage = func(m stream.Message) {
		mu.Lock()
		defer mu.Unlock()
		handlers.OnMessage(m)
	}
	wrapped.OnCompleted = func(err error) {
		mu.Lock()
		defer mu.Unlock()
		handlers.OnCompleted(err)
	}

	session := stream.NewSession(pr, func() { pw.CloseWithError(fmt.Errorf("aborted by consumer")) }, wrapped)
	go session.Run()

	_, err := pw.Write([]byte("data: {\"event\": \"message\", \"answer\": \"hi\"}\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(rec.trace) == 1
	}, time.Second, 5*time.Millisecond)

	session.Abort()
	<-session.Done()

	mu.Lock()
	defer mu.Unlock()
	require.Zero(t, rec.completions, "an intentional abort must not surface as completion or error")
}
