package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/lumen/engine/containers"
)

var (
	ErrOutOfMemory         = errors.New("out of memory")
	ErrOverflow            = errors.New("overflow")
	ErrInvalidOperation    = errors.New("invalid operation")
	ErrIncompatibleContext = errors.New("incompatible context")
	ErrContextCreation     = errors.New("context creation failed")
	ErrUnknown             = errors.New("unknown")
)

type ErrorCode uint8

const (
	ErrorUnknown ErrorCode = iota
	ErrorOutOfMemory
	ErrorOverflow
	ErrorInvalidOperation
	ErrorIncompatibleContext
	ErrorContextCreation
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorOutOfMemory:
		return "out of memory"
	case ErrorOverflow:
		return "overflow"
	case ErrorInvalidOperation:
		return "invalid operation"
	case ErrorIncompatibleContext:
		return "incompatible context"
	case ErrorContextCreation:
		return "context creation"
	default:
		return "unknown"
	}
}

// CodeOf classifies err by the sentinel it wraps.
func CodeOf(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrOutOfMemory):
		return ErrorOutOfMemory
	case errors.Is(err, ErrOverflow):
		return ErrorOverflow
	case errors.Is(err, ErrInvalidOperation):
		return ErrorInvalidOperation
	case errors.Is(err, ErrIncompatibleContext):
		return ErrorIncompatibleContext
	case errors.Is(err, ErrContextCreation):
		return ErrorContextCreation
	default:
		return ErrorUnknown
	}
}

/** @brief A single recorded engine error. */
type ErrorRecord struct {
	Code        ErrorCode
	Description string
}

func (r ErrorRecord) String() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Description)
}

const DefaultMaxErrors = 32

// ErrorQueue accumulates errors until polled. Once full, the oldest record
// is evicted. Safe for use from any goroutine.
type ErrorQueue struct {
	mutex sync.Mutex
	queue *containers.RingQueue[ErrorRecord]
}

func NewErrorQueue(max int) *ErrorQueue {
	if max <= 0 {
		max = DefaultMaxErrors
	}
	return &ErrorQueue{
		queue: containers.NewRingQueue[ErrorRecord](max),
	}
}

func (eq *ErrorQueue) Push(code ErrorCode, description string) {
	eq.mutex.Lock()
	dropped := eq.queue.Overwrite(ErrorRecord{Code: code, Description: description})
	eq.mutex.Unlock()

	if dropped {
		LogDebug("error queue full, oldest error evicted")
	}
}

// PushError records err under the code of the sentinel it wraps.
func (eq *ErrorQueue) PushError(err error) {
	if err == nil {
		return
	}
	eq.Push(CodeOf(err), err.Error())
}

// Poll removes and returns the oldest error.
func (eq *ErrorQueue) Poll() (ErrorRecord, bool) {
	eq.mutex.Lock()
	defer eq.mutex.Unlock()

	r, err := eq.queue.Dequeue()
	return r, err == nil
}

func (eq *ErrorQueue) Peek() (ErrorRecord, bool) {
	eq.mutex.Lock()
	defer eq.mutex.Unlock()

	r, err := eq.queue.Peek()
	return r, err == nil
}

func (eq *ErrorQueue) Len() int {
	eq.mutex.Lock()
	defer eq.mutex.Unlock()
	return eq.queue.Len()
}

func (eq *ErrorQueue) Clear() {
	eq.mutex.Lock()
	eq.queue.Reset()
	eq.mutex.Unlock()
}
