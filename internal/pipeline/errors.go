package pipeline

import "fmt"

// SceneReadError covers malformed or incomplete scene input, including a
// missing environment file reference.
type SceneReadError struct {
	Err error
}

func (e *SceneReadError) Error() string { return fmt.Sprintf("scene read: %v", e.Err) }
func (e *SceneReadError) Unwrap() error { return e.Err }

// ValidationError is raised when a numeric input array contains NaN or Inf
// values. Array names which array failed.
type ValidationError struct {
	Array string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: contains NaN or Inf", e.Array)
}

// EngineError wraps a compute backend failure, including wrong-length
// output.
type EngineError struct {
	Engine string
	Err    error
}

func (e *EngineError) Error() string { return fmt.Sprintf("engine %s: %v", e.Engine, e.Err) }
func (e *EngineError) Unwrap() error { return e.Err }
