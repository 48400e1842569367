package orders

import (
	"errors"
	"fmt"
)

// State is the submission state of an order under edit.
type State string

const (
	StateDraft         State = "DRAFT"
	StateSaving        State = "SAVING"
	StateFiscalPending State = "FISCAL_PENDING"
	StateConfirming    State = "CONFIRMING"
	StateConfirmed     State = "CONFIRMED"
	StateFailed        State = "FAILED"
)

var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State][]State{
	StateDraft:         {StateSaving},
	StateSaving:        {StateFiscalPending, StateFailed},
	StateFiscalPending: {StateConfirming, StateDraft, StateFailed},
	StateConfirming:    {StateConfirmed, StateFailed},
	StateFailed:        {StateDraft},
}

// CanTransition reports whether the workflow allows moving from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InProgress reports whether a submission is running.
func (s State) InProgress() bool {
	switch s {
	case StateSaving, StateFiscalPending, StateConfirming:
		return true
	}
	return false
}

// Editable reports whether draft edits are accepted.
func (s State) Editable() bool {
	return s == StateDraft || s == ""
}

// Workflow walks one submission through its states and records the path taken.
type Workflow struct {
	state   State
	history []State
	onEnter func(State)
}

// NewWorkflow starts a workflow in from. onEnter may be nil.
func NewWorkflow(from State, onEnter func(State)) *Workflow {
	if from == "" {
		from = StateDraft
	}
	return &Workflow{state: from, history: []State{from}, onEnter: onEnter}
}

// Advance moves to next or returns ErrInvalidTransition.
func (w *Workflow) Advance(next State) error {
	if !w.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.state, next)
	}
	w.state = next
	w.history = append(w.history, next)
	if w.onEnter != nil {
		w.onEnter(next)
	}
	return nil
}

// Fail moves an in-progress submission to FAILED and back to DRAFT.
func (w *Workflow) Fail() error {
	if err := w.Advance(StateFailed); err != nil {
		return err
	}
	return w.Advance(StateDraft)
}

func (w *Workflow) State() State { return w.state }

func (w *Workflow) History() []State {
	out := make([]State, len(w.history))
	copy(out, w.history)
	return out
}
