package nsf

import "errors"

// Errors returned by Decode/ReadHeader. Wrapped with fmt.Errorf("...: %w", ...)
// for context; test with errors.Is.
var (
	// ErrBadMagic is returned when the first five header bytes are not
	// "NESM\x1a".
	ErrBadMagic = errors.New("nsf: bad magic")

	// ErrShortHeader is returned when fewer than 128 bytes were available.
	ErrShortHeader = errors.New("nsf: short header")
)
