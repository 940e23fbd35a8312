// Package config loads taskflow service configuration.
//
// LoadConfig reads a YAML file (explicit or found in the standard
// locations), then a .env file, then TASKFLOW_* environment variables, and
// unmarshals the merged result with viper:
//
//	var cfg config.ServiceConfig
//	if err := config.LoadConfig("taskflow", &cfg, config.WithConfigFile(path)); err != nil {
//	    return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// Environment variables map onto nested keys, so TASKFLOW_REDIS_ADDR sets
// redis.addr and TASKFLOW_WORKER_CONCURRENCY sets worker.concurrency.
package config
