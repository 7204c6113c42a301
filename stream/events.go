package stream

import "encoding/json"

// EventType discriminates the frames delivered over the server-push stream.
type EventType string

const (
	EventMessage                EventType = "message"
	EventAgentMessage           EventType = "agent_message"
	EventAgentThought           EventType = "agent_thought"
	EventAgentLog               EventType = "agent_log"
	EventMessageFile            EventType = "message_file"
	EventMessageEnd             EventType = "message_end"
	EventMessageReplace         EventType = "message_replace"
	EventWorkflowStarted        EventType = "workflow_started"
	EventWorkflowFinished       EventType = "workflow_finished"
	EventNodeStarted            EventType = "node_started"
	EventNodeFinished           EventType = "node_finished"
	EventParallelBranchStarted  EventType = "parallel_branch_started"
	EventParallelBranchFinished EventType = "parallel_branch_finished"
	EventIterationStarted       EventType = "iteration_started"
	EventIterationNext          EventType = "iteration_next"
	EventIterationCompleted     EventType = "iteration_completed"
	EventTextChunk              EventType = "text_chunk"
	EventTextReplace            EventType = "text_replace"
	EventTTSMessage             EventType = "tts_message"
	EventTTSMessageEnd          EventType = "tts_message_end"
	EventPing                   EventType = "ping"
	EventError                  EventType = "error"
)

// frame is the envelope shape shared by every data: line. Event-specific
// payloads are re-decoded from the raw line into their typed structs.
type frame struct {
	Event          EventType `json:"event"`
	Status         *int      `json:"status,omitempty"`
	Code           int       `json:"code,omitempty"`
	Message        string    `json:"message,omitempty"`
	TaskID         string    `json:"task_id,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Answer         string    `json:"answer,omitempty"`
}

func (f frame) errCode() int {
	if f.Code != 0 {
		return f.Code
	}
	if f.Status != nil {
		return *f.Status
	}
	return 0
}

// Message is an incremental answer fragment. First marks the session's
// first content-bearing frame, so a consumer knows whether to replace a
// placeholder or append.
type Message struct {
	TaskID         string `json:"task_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Answer         string `json:"answer,omitempty"`
	Agent          bool   `json:"-"`
	First          bool   `json:"-"`
}

// MessageEnd marks the end of one assistant message and carries its
// closing metadata (citations, usage, ...) raw for the consumer.
type MessageEnd struct {
	TaskID         string          `json:"task_id,omitempty"`
	MessageID      string          `json:"message_id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// MessageReplace substitutes the full message text accumulated so far.
type MessageReplace struct {
	TaskID         string `json:"task_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Answer         string `json:"answer,omitempty"`
}

// File is an artifact (image, document) attached to the message mid-stream.
type File struct {
	ID        string `json:"id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Type      string `json:"type,omitempty"`
	BelongsTo string `json:"belongs_to,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Thought is one structured reasoning step of an agent run.
type Thought struct {
	ID             string `json:"id,omitempty"`
	TaskID         string `json:"task_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Position       int    `json:"position,omitempty"`
	Thought        string `json:"thought,omitempty"`
	Observation    string `json:"observation,omitempty"`
	Tool           string `json:"tool,omitempty"`
	ToolInput      string `json:"tool_input,omitempty"`
}

// AgentLog is a diagnostic entry emitted alongside an agent run.
type AgentLog struct {
	ID       string          `json:"id,omitempty"`
	TaskID   string          `json:"task_id,omitempty"`
	Label    string          `json:"label,omitempty"`
	ParentID string          `json:"parent_id,omitempty"`
	Status   string          `json:"status,omitempty"`
	Error    string          `json:"error,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// GraphEvent is the shared payload of workflow, node, parallel-branch, and
// iteration lifecycle frames: correlation IDs plus an event-specific data
// object left raw for the consumer.
type GraphEvent struct {
	TaskID         string          `json:"task_id,omitempty"`
	WorkflowRunID  string          `json:"workflow_run_id,omitempty"`
	MessageID      string          `json:"message_id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// TextChunk is a fragment of a workflow's direct text output.
type TextChunk struct {
	TaskID string `json:"task_id,omitempty"`
	Data   struct {
		Text string `json:"text,omitempty"`
	} `json:"data"`
}

// TTSMessage is a base64 audio fragment, or the terminal marker when it
// arrives as tts_message_end with no audio.
type TTSMessage struct {
	TaskID    string `json:"task_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Audio     string `json:"audio,omitempty"`
}
