package tasks

import (
	"errors"
	"fmt"
)

// ErrWorkerFault matches every *WorkerFault via errors.Is.
var ErrWorkerFault = errors.New("blocking task faulted")

// WorkerFault records a unit of work that panicked or called runtime.Goexit instead
// of returning. Error() is deliberately generic; Detail() carries the panic value for logs.
type WorkerFault struct {
	Value  any
	Stack  []byte
	Goexit bool
}

func (f *WorkerFault) Error() string { return ErrWorkerFault.Error() }

func (f *WorkerFault) Is(target error) bool { return target == ErrWorkerFault }

// Detail describes what stopped the work.
func (f *WorkerFault) Detail() string {
	if f.Goexit {
		return "runtime.Goexit"
	}
	return fmt.Sprintf("%v", f.Value)
}

// IsWorkerFault reports whether err carries a worker fault.
func IsWorkerFault(err error) bool {
	return errors.Is(err, ErrWorkerFault)
}
