// Package logger provides structured logging for taskflow using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers carrying job and node identifiers.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stderr"
//
// # Usage
//
//	log := logger.Get("engine")
//	log.Info("workflow finished", logger.Fields("job_id", id))
package logger
