// Package sandbox confines user-supplied paths to a project root.
//
// Every path that reaches the filesystem in tooldebug passes through a
// [Root]. Relative paths are joined onto the root and must stay inside it
// after symlink resolution. Absolute paths are accepted only when they land
// inside the root or inside one of the roots listed in the allowed-roots
// environment variable (MCP_ALLOWED_ROOTS by default).
//
// # Overview
//
//	root, err := sandbox.NewRoot("/work/project")
//	if err != nil {
//	    return err
//	}
//	p, err := root.Resolve("tests/test_calc.py")
//	if errors.Is(err, sandbox.ErrPathViolation) {
//	    // the caller asked for something outside the sandbox
//	}
//
// # Allowed Roots
//
// The allowed-roots variable holds a list of directories separated by the
// OS path-list separator or by ';'. Entries may be wrapped in double quotes
// and may start with '~'. The variable is re-read on every [Root.Resolve]
// call so a long-running server picks up changes without a restart.
//
// # Canonical Form
//
// Paths are made absolute, lexically cleaned and then symlink-resolved. When
// the path does not exist yet, the nearest existing ancestor is resolved and
// the missing tail re-appended. Containment is decided on canonical forms by
// path components, so /work/project2 is never inside /work/project.
package sandbox
