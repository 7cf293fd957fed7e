package dispatcher

import "fmt"

// InvalidArgumentError is §7's InvalidArgument kind: a missing or
// type-mismatched parameter caught during arg projection.
type InvalidArgumentError struct {
	Parameter string
	Reason    string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Parameter, e.Reason)
}

// UnknownOpError is returned when a tool descriptor names an OpKind
// dispatcher has no handler for; config validation should have already
// caught this, so it indicates a registry/dispatcher version skew.
type UnknownOpError struct {
	Op string
}

func (e *UnknownOpError) Error() string {
	return fmt.Sprintf("dispatcher: no handler for op %q", e.Op)
}
