package model

import "fmt"

type LifecycleState string

const (
	StateIdle         LifecycleState = "idle"
	StateFileSelected LifecycleState = "file_selected"
	StateSubmitting   LifecycleState = "submitting"
	StatePolling      LifecycleState = "polling"
	StateCompleted    LifecycleState = "completed"
	StateFailed       LifecycleState = "failed"
)

var allowedLifecycle = map[LifecycleState]map[LifecycleState]bool{
	StateIdle: {
		StateFileSelected: true,
		StateFailed:       true, // start pressed before any file
	},
	StateFileSelected: {
		StateFileSelected: true,
		StateSubmitting:   true,
		StateFailed:       true, // start refused: file unreadable or empty
	},
	StateSubmitting: {
		StatePolling:      true,
		StateFailed:       true,
		StateFileSelected: true,
	},
	StatePolling: {
		StatePolling:      true,
		StateCompleted:    true,
		StateFailed:       true,
		StateFileSelected: true,
	},
	StateCompleted: {
		StateFileSelected: true,
		StateSubmitting:   true,
	},
	StateFailed: {
		StateFailed:       true,
		StateFileSelected: true,
		StateSubmitting:   true,
	},
}

func CanTransition(from, to LifecycleState) bool {
	next, ok := allowedLifecycle[from]
	if !ok {
		return false
	}
	return next[to]
}

// Transition validates from -> to and returns the new state.
func Transition(from, to LifecycleState) (LifecycleState, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("invalid lifecycle transition: %q -> %q", from, to)
	}
	return to, nil
}

func (s LifecycleState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Busy reports whether the submit control is disabled in this state.
func (s LifecycleState) Busy() bool {
	return s == StateSubmitting || s == StatePolling
}
