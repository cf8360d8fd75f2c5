package dtw

import "errors"

// ErrInvalidModel marks malformed or semantically wrong input: an
// unparseable deadline, a deadline in the past, or workflow input that
// fails the definition's input spec. API handlers map it to 400.
var ErrInvalidModel = errors.New("invalid model")

// ErrConfig marks an unusable scheduler configuration, e.g. an unknown
// scheduler mode. It aborts the current tick, never the process.
var ErrConfig = errors.New("invalid scheduler configuration")
