package rule

import "errors"

// Sentinel error kinds. Parse errors from internal/ruleparser wrap one of
// these with source position information via ParseError.
var (
	ErrMalformedTarget    = errors.New("malformed target")
	ErrMalformedInterface = errors.New("malformed interface type")
	ErrMalformedID        = errors.New("malformed device id")
	ErrBadEscape          = errors.New("bad string escape")
	ErrDuplicateAttribute = errors.New("duplicate attribute")
	ErrUnknownCondition   = errors.New("unknown condition")
	ErrUnexpectedToken    = errors.New("unexpected token")
)
