package attendance

import (
	"errors"
	"fmt"
)

// ErrInvalidActivity is returned for activities that can never be recorded,
// such as a login without an employee id.
var ErrInvalidActivity = errors.New("invalid attendance activity")

// PersistenceError wraps a database failure during a ledger operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("attendance %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
