package stream

// Handlers receives decoded events for one session. Nil callbacks are
// skipped. Frames whose event name matches no known kind are dropped, so
// servers can add kinds without breaking older clients.
//
// OnError reports an error frame or a frame without an event discriminator.
// OnCompleted fires exactly once when the session ends: nil on natural
// completion, the transport or frame error otherwise. It does not fire for
// a consumer-initiated Abort.
type Handlers struct {
	OnMessage        func(m Message)
	OnMessageEnd     func(m MessageEnd)
	OnMessageReplace func(m MessageReplace)
	OnFile           func(f File)
	OnThought        func(th Thought)
	OnAgentLog       func(l AgentLog)

	OnWorkflowStarted        func(e GraphEvent)
	OnWorkflowFinished       func(e GraphEvent)
	OnNodeStarted            func(e GraphEvent)
	OnNodeFinished           func(e GraphEvent)
	OnParallelBranchStarted  func(e GraphEvent)
	OnParallelBranchFinished func(e GraphEvent)
	OnIterationStarted       func(e GraphEvent)
	OnIterationNext          func(e GraphEvent)
	OnIterationCompleted     func(e GraphEvent)

	OnTextChunk   func(c TextChunk)
	OnTextReplace func(c TextChunk)

	OnTTSMessage    func(m TTSMessage)
	OnTTSMessageEnd func(m TTSMessage)

	OnPing      func()
	OnError     func(code int, message string)
	OnCompleted func(err error)
}
