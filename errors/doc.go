// Package errors provides the structured error type shared by every taskflow
// package. Each failure carries a machine-readable code so callers can tell a
// malformed graph from a failing task or a misconfigured backend, and errors
// that crossed a process or network boundary keep their code and message.
package errors
