// Package window reads a numbered slice of a source file around a focus line.
//
// [Open] resolves the requested path through a [sandbox.Root], decodes the
// file as UTF-8 (invalid bytes become U+FFFD), splits it into lines and
// returns the lines within a clamped radius of the focus. For Python files
// the enclosing def or class is attached as [Window.Scope].
//
// [Window.Render] produces the "<line>: <text>" form sent to analyzers.
package window
