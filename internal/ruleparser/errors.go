package ruleparser

import "github.com/usbguard/usbguard/internal/rule"

var (
	errMalformedTarget    = rule.ErrMalformedTarget
	errMalformedInterface = rule.ErrMalformedInterface
	errMalformedID        = rule.ErrMalformedID
	errBadEscape          = rule.ErrBadEscape
	errDuplicateAttribute = rule.ErrDuplicateAttribute
	errUnknownCondition   = rule.ErrUnknownCondition
	errUnexpectedToken    = rule.ErrUnexpectedToken
)
