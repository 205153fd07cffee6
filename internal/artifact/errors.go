package artifact

import "fmt"

// MissingError reports an absent required upstream artifact, naming the
// stage that should have produced it. Never retried.
type MissingError struct {
	What  string
	Path  string
	Stage string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing %s at %s; run %s first", e.What, e.Path, e.Stage)
}

// ConflictError reports a refusal to overwrite an existing output without
// the force flag. Raised before any generation call.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("refusing to overwrite %s without --force", e.Path)
}
