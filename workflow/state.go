package workflow

import "fmt"

// State is the active step of the workflow. Exactly one is active at a time.
type State int

const (
	Idle State = iota
	ProcessingFile
	AwaitingTitleApproval
	AwaitingLengthSelection
	AwaitingReferenceURL
	GeneratingArticle
	Completed
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ProcessingFile:
		return "processing_file"
	case AwaitingTitleApproval:
		return "awaiting_title_approval"
	case AwaitingLengthSelection:
		return "awaiting_length_selection"
	case AwaitingReferenceURL:
		return "awaiting_reference_url"
	case GeneratingArticle:
		return "generating_article"
	case Completed:
		return "completed"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets snapshots serialize states by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for c := Idle; c <= Error; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown workflow state %q", b)
}

// Busy reports whether a model call is in flight in this state.
func (s State) Busy() bool {
	return s == ProcessingFile || s == GeneratingArticle
}
