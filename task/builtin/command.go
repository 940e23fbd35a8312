package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/taskflow/process"
	"github.com/kbukum/taskflow/task"
)

// commandTask runs "binary" with "args". The node inputs are written to
// stdin as a JSON object. A JSON object on stdout becomes the outputs;
// any other stdout is returned as {"stdout": text}.
type commandTask struct {
	cfg     task.Config
	adapter *process.Adapter
	cmd     process.Command
}

func newCommand(cfg task.Config) (task.Task, error) {
	binary := cfg.StringParam("binary", "")
	if binary == "" {
		return nil, fmt.Errorf("command task %s: parameter \"binary\" is required", cfg.NodeID)
	}
	var args []string
	if raw, ok := cfg.Parameters["args"].([]any); ok {
		for _, a := range raw {
			args = append(args, fmt.Sprint(a))
		}
	}

	pcfg := process.Config{}
	if s := cfg.StringParam("timeout", ""); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("command task %s: invalid timeout: %w", cfg.NodeID, err)
		}
		pcfg.Timeout = d
	}

	return &commandTask{
		cfg:     cfg,
		adapter: process.NewAdapter(pcfg),
		cmd:     process.Command{Binary: binary, Args: args, Dir: cfg.StringParam("dir", "")},
	}, nil
}

func (t *commandTask) Execute(ctx context.Context) (task.Outputs, error) {
	stdin, err := json.Marshal(t.cfg.Inputs)
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}
	cmd := t.cmd
	cmd.Stdin = bytes.NewReader(stdin)

	res, err := t.adapter.Run(ctx, cmd)
	if err != nil {
		if res != nil && len(res.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(res.Stderr)))
		}
		return nil, err
	}

	trimmed := bytes.TrimSpace(res.Stdout)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		var out task.Outputs
		if err := json.Unmarshal(trimmed, &out); err == nil {
			return out, nil
		}
	}
	return task.Outputs{"stdout": string(trimmed), "exit_code": res.ExitCode}, nil
}
