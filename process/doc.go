// Package process runs subprocesses with process-group termination: on
// cancellation the whole group gets SIGTERM, then SIGKILL once the grace
// period has passed.
//
// Run executes a one-shot command and captures its output. Start launches a
// long-lived Worker that exchanges newline-delimited frames over stdin and
// stdout, which the persistent process pool reuses across tasks.
package process
