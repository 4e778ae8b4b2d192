package vfile

import (
	"errors"
	"fmt"

	"github.com/doquedb/sydcore/internal/buffer"
)

// OpenMode is the mode a caller opens a logical file with; it drives
// the State transition on top of buffer.FixMode.
type OpenMode int

const (
	OpenReadOnly OpenMode = iota
	OpenUpdate
	OpenBatch
)

// State is the per-file open/closed state machine:
//
//	Unknown --open(ReadOnly)--> ReadOnly
//	Unknown --open(Update)----> Write|Discardable
//	Unknown --open(Batch)-----> Write
//	ReadOnly|Write|Write|Discardable --close--> Unknown
//	Unknown --start_verification(Correct)--> Write|Discardable
//	Unknown --start_verification(!Correct)--> ReadOnly
type State int

const (
	StateUnknown State = iota
	StateOpen
)

// ErrWrongState is returned when an operation is attempted in a state
// the open-state machine doesn't allow it in.
var ErrWrongState = errors.New("vfile: operation not valid in current open state")

// stateMachine tracks one logical file's current FixMode and whether it
// is open at all. It holds no I/O; it is pure bookkeeping that File
// consults on open, close, StartVerification and ChangeFixMode.
type stateMachine struct {
	state State
	mode  buffer.FixMode
}

func (sm *stateMachine) open(om OpenMode) error {
	if sm.state != StateUnknown {
		return fmt.Errorf("%w: open called while already open", ErrWrongState)
	}
	switch om {
	case OpenReadOnly:
		sm.mode = buffer.ReadOnly
	case OpenUpdate:
		sm.mode = buffer.Write | buffer.Discardable
	case OpenBatch:
		sm.mode = buffer.Write
	default:
		return fmt.Errorf("vfile: unknown open mode %d", om)
	}
	sm.state = StateOpen
	return nil
}

func (sm *stateMachine) startVerification(correct bool) error {
	if sm.state != StateUnknown {
		return fmt.Errorf("%w: start_verification called while open", ErrWrongState)
	}
	if correct {
		sm.mode = buffer.Write | buffer.Discardable
	} else {
		sm.mode = buffer.ReadOnly
	}
	sm.state = StateOpen
	return nil
}

func (sm *stateMachine) close() error {
	if sm.state != StateOpen {
		return fmt.Errorf("%w: close called while not open", ErrWrongState)
	}
	sm.state = StateUnknown
	sm.mode = 0
	return nil
}

// changeFixMode transitions between read-only and updatable views on
// the same open file without a full close/open round trip.
func (sm *stateMachine) changeFixMode(newMode buffer.FixMode) error {
	if sm.state != StateOpen {
		return fmt.Errorf("%w: change_fix_mode called while not open", ErrWrongState)
	}
	sm.mode = newMode
	return nil
}
