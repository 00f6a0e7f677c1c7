package policy

import "fmt"

// NormalizeError reports a policy field whose value cannot be repaired by clamping.
type NormalizeError struct {
	Field string
	Value string
}

func (e *NormalizeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("hostkit: invalid retry policy: %s=%q", e.Field, e.Value)
}
