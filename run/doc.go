// Package run executes pytest against a sandboxed target and reports the
// tail of its output.
//
// A [Runner] resolves the target through a [sandbox.Root], launches
// "<python> -m pytest -q --maxfail=1 <target>" with plugin autoloading
// disabled, and returns a [Result]. Runs that finish, pass or fail, report
// OK=true with the exit code. Sandbox rejections, missing targets, launch
// failures and timeouts report OK=false with an error message. A timed-out
// run still carries the output captured before it was killed.
//
// # Working Directory
//
// Targets inside the root run from the root. Targets admitted through an
// allowed root run from the target directory, or from the file's parent
// when the target is a file.
//
// # Bounds
//
// MaxOutputLines is clamped to [1, 2000] and TimeoutSeconds to [5, 300].
package run
