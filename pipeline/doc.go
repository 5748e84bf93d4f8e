// Package pipeline runs the debug flow: test, locate the first failure,
// read the code around it and ask an analyzer for an explanation.
//
// # Overview
//
// [Pipeline.Debug] walks the stages below and stops at the first one that cannot
// continue:
//
//  1. run_tests: the TestRunner could not produce a run. OK=false.
//  2. done: every test passed. Nothing else is attempted.
//  3. extract_failures: the output held no file:line location.
//  4. open_context: the location could not be read.
//  5. done: the window was rendered and the analyzer answered (or failed;
//     analyzer failures are carried verbatim in the result).
//
// Reaching a later stage with OK=true means the pipeline itself worked, even
// when the tests failed and no location could be found. The typed
// [Outcome] says which terminal point was reached; [Result] marshals to a
// flat JSON object for tool callers.
//
// Only the first failure record is analyzed.
//
// # Metrics
//
// Each call increments tooldebug_pipeline_runs_total{stage,ok} and
// observes tooldebug_pipeline_duration_seconds{stage} on the registerer
// passed to [NewMetrics].
package pipeline
