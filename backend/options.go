package backend

import (
	"fmt"
	"runtime"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/taskflow/errors"
)

// ThreadOptions configures the thread pool.
type ThreadOptions struct {
	// NumWorkers bounds concurrent invocations. Defaults to the CPU count.
	NumWorkers int `mapstructure:"num_workers"`
}

func (o *ThreadOptions) applyDefaults() {
	if o.NumWorkers <= 0 {
		o.NumWorkers = runtime.NumCPU()
	}
}

// decodeOptions decodes scheduler options into out. Unknown keys are
// rejected. Range checks are left to the options type.
func decodeOptions(scheduler string, options map[string]any, out any) error {
	if len(options) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Internal(fmt.Errorf("create decoder: %w", err))
	}
	if err := decoder.Decode(options); err != nil {
		return errors.Configuration("invalid scheduler options for %s: %v", displayName(scheduler), err)
	}
	return nil
}

func displayName(scheduler string) string {
	if scheduler == "" {
		return "sequential"
	}
	return scheduler
}
