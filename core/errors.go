package core

import (
	"errors"
	"fmt"
)

// StartErrorKind classifies why a proxy run could not be started.
type StartErrorKind string

const (
	NoActiveRules   StartErrorKind = "NoActiveRules"
	PortUnavailable StartErrorKind = "PortUnavailable"
	AlreadyRunning  StartErrorKind = "AlreadyRunning"
)

var (
	ErrNoActiveRules   = errors.New("no active block rules")
	ErrPortUnavailable = errors.New("port unavailable")
	ErrAlreadyRunning  = errors.New("proxy already running")
)

func (k StartErrorKind) sentinel() error {
	switch k {
	case NoActiveRules:
		return ErrNoActiveRules
	case PortUnavailable:
		return ErrPortUnavailable
	case AlreadyRunning:
		return ErrAlreadyRunning
	}
	return nil
}

// StartError is returned synchronously by Controller.Start. No goroutine has been
// spawned and no port is held when it is returned.
type StartError struct {
	Kind StartErrorKind
	Op   string
	Port int
	Err  error
}

func (e *StartError) Error() string {
	msg := string(e.Kind)
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Kind == PortUnavailable {
		msg = fmt.Sprintf("port %d unavailable", e.Port)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Is matches both the kind sentinels and other StartErrors of the same kind.
func (e *StartError) Is(target error) bool {
	if t, ok := target.(*StartError); ok {
		return e.Kind == t.Kind
	}
	return target == e.Kind.sentinel()
}

// RuntimeFault is the terminal error of a run whose serving goroutine died.
type RuntimeFault struct {
	RunID string
	Err   error
}

func (e *RuntimeFault) Error() string {
	return fmt.Sprintf("proxy run %s faulted: %v", e.RunID, e.Err)
}

func (e *RuntimeFault) Unwrap() error {
	return e.Err
}

// StartErrorKindOf returns the kind of a StartError anywhere in err's chain.
func StartErrorKindOf(err error) (StartErrorKind, bool) {
	var se *StartError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}
