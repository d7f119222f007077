package pipeline

import "fmt"

// MissingArtifactError reports that a stage's input file does not exist.
// Upstream names the stage that produces it.
type MissingArtifactError struct {
	Stage    string
	Path     string
	Upstream string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("%s: input %s not found; run stage %q first", e.Stage, e.Path, e.Upstream)
}

// StageError is returned when a stage halts the run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
