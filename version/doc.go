// Package version reports the taskflow build. Version, Commit and BuildTime
// are set at link time, falling back to the module build info:
//
//	go build -ldflags "-X github.com/kbukum/taskflow/version.Version=0.3.0" ./cmd/taskflow
package version
