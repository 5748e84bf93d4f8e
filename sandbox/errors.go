package sandbox

import "errors"

// Category errors. Every error returned by Resolve matches ErrInvalidPath;
// containment failures additionally match ErrPathViolation.
var (
	// ErrInvalidPath is matched by every rejected path.
	ErrInvalidPath = errors.New("invalid path")

	// ErrPathViolation is matched when a path resolves outside the sandbox.
	ErrPathViolation = errors.New("path violation")
)

// Specific rejections. Match them with errors.Is.
var (
	// ErrEmptyPath is returned when the path is empty or only whitespace.
	ErrEmptyPath error = &PathError{msg: "path is empty"}

	// ErrEscapesRoot is returned when a relative path leaves the root.
	ErrEscapesRoot error = &PathError{msg: "path escapes root directory", violation: true}

	// ErrAbsoluteDisabled is returned for an absolute path outside the root
	// when no allowed roots are configured.
	ErrAbsoluteDisabled error = &PathError{msg: "absolute paths are disabled (set MCP_ALLOWED_ROOTS)", violation: true}

	// ErrOutsideAllowed is returned for an absolute path that is in neither
	// the root nor any allowed root.
	ErrOutsideAllowed error = &PathError{msg: "path is outside allowed roots", violation: true}

	// ErrSymlinkLoop is returned when resolving a path follows too many
	// dangling symbolic links.
	ErrSymlinkLoop error = &PathError{msg: "too many levels of symbolic links"}
)

// PathError is the concrete type behind the rejection sentinels.
type PathError struct {
	msg       string
	violation bool
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return e.msg
}

// Is reports whether target is one of the category errors this rejection
// belongs to.
func (e *PathError) Is(target error) bool {
	if target == ErrInvalidPath {
		return true
	}
	return e.violation && target == ErrPathViolation
}
