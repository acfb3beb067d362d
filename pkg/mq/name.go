package mq

import "strings"

const (
	nameSeparator = '/'
	maxNameLength = 255
)

// ValidateName reports whether name is a well-formed queue name: a single
// leading '/', at least one more character, no further '/', and at most 255
// characters in total. The returned error is a *ValidationError.
func ValidateName(name string) error {
	if len(name) == 0 || name[0] != nameSeparator {
		return &ValidationError{Reason: "Queue name must start with '/'"}
	}
	if len(name) == 1 {
		return &ValidationError{Reason: "Queue name must be a slash followed by one or more characters"}
	}
	if len(name) > maxNameLength {
		return &ValidationError{Reason: "Queue name must not exceed 255 characters"}
	}
	if strings.IndexByte(name[1:], nameSeparator) >= 0 {
		return &ValidationError{Reason: "Queue name can not contain more than one slash"}
	}
	return nil
}
