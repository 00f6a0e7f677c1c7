package dbinit

import "fmt"

// Stage names the step of an initialization that failed.
type Stage string

const (
	StageScope   Stage = "scope"
	StageOpen    Stage = "open"
	StageMigrate Stage = "migrate"
	StageSeed    Stage = "seed"
)

// StageError reports which step failed for which context.
type StageError struct {
	Stage   Stage
	Context string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Context, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
