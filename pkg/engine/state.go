package engine

import "fmt"

// runState tracks one execution run through its lifecycle. The only legal
// transitions are:
//
//	Pending -> Streaming
//	Streaming <-> AwaitingReattach
//	Streaming -> Complete | Failed | Cancelled
//	AwaitingReattach -> Failed | Cancelled
//
// Complete, Failed and Cancelled are terminal.
type runState int32

const (
	// runStateInvalid indicates an invalid run state.
	runStateInvalid runState = iota

	runStatePending          // Created, stream not yet opened.
	runStateStreaming        // Stream open, responses flowing.
	runStateAwaitingReattach // Stream lost, reattach in progress.
	runStateComplete         // All responses delivered and acknowledged.
	runStateFailed           // Terminal error recorded.
	runStateCancelled        // Caller-initiated cancellation observed.
)

var runStateStrings = map[runState]string{
	runStateInvalid: "invalid",

	runStatePending:          "pending",
	runStateStreaming:        "streaming",
	runStateAwaitingReattach: "awaiting_reattach",
	runStateComplete:         "complete",
	runStateFailed:           "failed",
	runStateCancelled:        "cancelled",
}

// String returns the string representation of the runState.
func (s runState) String() string {
	if str, ok := runStateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("runState(%d)", s)
}

// Terminal reports whether the state admits no further transitions.
func (s runState) Terminal() bool {
	switch s {
	case runStateComplete, runStateFailed, runStateCancelled:
		return true
	default:
		return false
	}
}
