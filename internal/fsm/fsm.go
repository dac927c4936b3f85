package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateUploading  State = "uploading"
	StateReady      State = "ready"
	StateError      State = "error"
)

const (
	EventStart       Event = "start"
	EventStop        Event = "stop"
	EventUpload      Event = "upload"
	EventTranscribed Event = "transcribed"
	EventFail        Event = "fail"
)

// Transition returns the next answer state. A start from Ready or Error
// begins a fresh attempt.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle, StateReady, StateError:
		switch event {
		case EventStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateProcessing, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventUpload:
			return StateUploading, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateUploading:
		switch event {
		case EventTranscribed:
			return StateReady, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Busy reports whether the state has work in flight.
func Busy(state State) bool {
	switch state {
	case StateRecording, StateProcessing, StateUploading:
		return true
	default:
		return false
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
