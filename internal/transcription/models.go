package transcription

// Stream event statuses, emitted in the order the pipeline advances
const (
	StatusProcessing   = "processing"
	StatusSegmented    = "segmented"
	StatusTranscribing = "transcribing"
	StatusPartial      = "partial"
	StatusError        = "error"
	StatusComplete     = "complete"
)

// StreamEvent is one progress/result notification sent over the streaming
// channel. Absent fields mean "unchanged from the previous event".
type StreamEvent struct {
	Status         string `json:"status,omitempty"`
	Message        string `json:"message,omitempty"`
	CurrentSegment int    `json:"currentSegment,omitempty"`
	TotalSegments  int    `json:"totalSegments,omitempty"`
	Text           string `json:"text,omitempty"`
	FullText       string `json:"fullText,omitempty"`
	Transcription  string `json:"transcription,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Terminal reports whether the event closes the stream. Segment-scoped
// errors carry an ordinal and are not terminal; the job continues.
func (e StreamEvent) Terminal() bool {
	if e.Status == StatusComplete {
		return true
	}
	return e.Status == StatusError && e.CurrentSegment == 0
}

// JobState identifies where a streaming job is in its lifecycle
type JobState int

const (
	StateIdle JobState = iota
	StateSegmenting
	StateTranscribing
	StateDone
	StateFailed
)

// String returns the state name for logging
func (s JobState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSegmenting:
		return "segmenting"
	case StateTranscribing:
		return "transcribing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
