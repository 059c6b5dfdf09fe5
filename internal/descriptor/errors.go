package descriptor

import "errors"

// ErrMalformedDescriptor is returned when a descriptor's declared length is
// too small for any handler registered for its type.
var ErrMalformedDescriptor = errors.New("descriptor: malformed descriptor")
