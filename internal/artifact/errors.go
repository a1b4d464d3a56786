package artifact

import "errors"

// Sentinel errors for artifact operations, checked with errors.Is().
var (
	// ErrNotFound is returned when the requested artifact or version
	// does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrMissingModel is returned when a rerun target has no pinned
	// model (legacy or partial records).
	ErrMissingModel = errors.New("version has no pinned model")

	// ErrInvalidName is returned when an artifact name is empty or
	// exceeds the length limit.
	ErrInvalidName = errors.New("invalid artifact name")
)

// maxNameLength bounds artifact names.
const maxNameLength = 255

// ValidateName checks that an artifact name is usable. Duplicate names
// across artifacts are legal; only empty or oversized names are not.
func ValidateName(name string) error {
	if name == "" || len(name) > maxNameLength {
		return ErrInvalidName
	}
	return nil
}
