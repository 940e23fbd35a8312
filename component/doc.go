// Package component defines lifecycle-managed services for taskflow
// processes. The cluster worker and its Redis connection are components; the
// Registry starts them in registration order and stops them in reverse.
package component
