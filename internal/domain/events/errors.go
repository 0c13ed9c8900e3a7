package events

import "fmt"

// ValidationError reports a rejected event field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// CapacityError carries the registration count that blocked a capacity change.
type CapacityError struct {
	Capacity      int
	Registrations int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("capacity cannot be less than current registrations (%d)", e.Registrations)
}

func (e CapacityError) Is(target error) bool {
	return target == ErrCapacityBelowRegistrations
}
