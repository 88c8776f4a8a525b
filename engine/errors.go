package engine

import "errors"

// Error kinds per the engine's error-handling design. All are propagated,
// never recovered inside the core; wrap with fmt.Errorf("...: %w", ...) for
// context and test with errors.Is.
var (
	ErrInvalidArg     = errors.New("engine: invalid argument")
	ErrBadLoadAddress = errors.New("engine: load address below $8000")
	ErrIoError        = errors.New("engine: io error")
	ErrAlreadyOpen    = errors.New("engine: another engine is already open")
	ErrInvalidState   = errors.New("engine: invalid state")
	ErrInternalError  = errors.New("engine: internal error")
)
