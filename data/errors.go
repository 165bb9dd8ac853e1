package data

import "errors"

// ErrInvalidEncoding reports that a decode operation received bits outside
// its defined domain. Codecs return it instead of panicking.
var ErrInvalidEncoding = errors.New("ninep: invalid encoding")
