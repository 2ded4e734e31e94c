package salary

import (
	"fmt"
	"time"
)

// Event is a lifecycle trigger.
type Event string

const (
	EventCalculate Event = "calculate"
	EventFinalize  Event = "finalize"
	EventMarkPaid  Event = "markPaid"
)

var transitions = map[Status]map[Event]Status{
	StatusDraft: {
		EventCalculate: StatusCalculated,
	},
	StatusCalculated: {
		EventCalculate: StatusCalculated,
		EventFinalize:  StatusFinalized,
		EventMarkPaid:  StatusPaid,
	},
	StatusFinalized: {
		EventMarkPaid: StatusPaid,
	},
}

// Next returns the status reached from s on event, or ErrInvalidTransition.
func Next(s Status, event Event) (Status, error) {
	if to, ok := transitions[s][event]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: cannot %s a salary in status %q", ErrInvalidTransition, event, s)
}

// Apply advances the salary on event and stamps the transition timestamps.
// On error the salary is left untouched.
func (s *Salary) Apply(event Event, at time.Time) error {
	to, err := Next(s.Status, event)
	if err != nil {
		return err
	}
	s.Status = to
	switch event {
	case EventFinalize:
		s.FinalizedAt = &at
	case EventMarkPaid:
		s.PaidAt = &at
	}
	return nil
}

// EnsureMutable guards field edits, bonus and deduction appends.
func (s Salary) EnsureMutable() error {
	if !s.Status.Mutable() {
		return fmt.Errorf("%w: status %q", ErrImmutableRecord, s.Status)
	}
	return nil
}
