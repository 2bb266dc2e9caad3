package model

import (
	"errors"
	"fmt"
)

type State string

const (
	StatePending      State = "pending"
	StateActive       State = "active"
	StateFailed       State = "failed"
	StateSynthesizing State = "synthesizing"
)

var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State][]State{
	StatePending:      {StateActive, StateFailed},
	StateActive:       {StateSynthesizing},
	StateSynthesizing: {StateActive, StateFailed},
}

func (s State) Valid() bool {
	switch s {
	case StatePending, StateActive, StateFailed, StateSynthesizing:
		return true
	}
	return false
}

func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
