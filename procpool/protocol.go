// Package procpool runs node invocations in worker subprocesses. Requests
// and responses are single-line JSON frames over the worker's stdin and
// stdout; the worker logs to stderr only.
package procpool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kbukum/taskflow/dag"
	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/task"
)

// maxFrameSize bounds a single request or response frame.
const maxFrameSize = 64 << 20

type request struct {
	Record   json.RawMessage `json:"record"`
	Upstream []task.Outputs  `json:"upstream"`
}

type response struct {
	Outputs task.Outputs    `json:"outputs,omitempty"`
	Error   *errors.Payload `json:"error,omitempty"`
}

func encodeRequest(record []byte, upstream []task.Outputs) ([]byte, error) {
	if upstream == nil {
		upstream = []task.Outputs{}
	}
	data, err := json.Marshal(request{Record: record, Upstream: upstream})
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("encode request: %w", err))
	}
	return data, nil
}

func decodeResponse(frame []byte) (task.Outputs, error) {
	var resp response
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, errors.Internal(fmt.Errorf("decode worker response: %w", err))
	}
	if resp.Error != nil {
		return nil, errors.FromPayload(resp.Error)
	}
	if resp.Outputs == nil {
		resp.Outputs = task.Outputs{}
	}
	return resp.Outputs, nil
}

// Serve answers request frames from r on w until r is exhausted, or after
// the first frame when once is set.
func Serve(ctx context.Context, r io.Reader, w io.Writer, runner dag.Runner, once bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxFrameSize)
	bw := bufio.NewWriter(w)

	for scanner.Scan() {
		var req request
		var resp response
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp.Error = errors.ToPayload(errors.Internal(fmt.Errorf("decode request: %w", err)))
		} else if out, err := runner.Run(ctx, req.Record, req.Upstream...); err != nil {
			resp.Error = errors.ToPayload(err)
		} else {
			resp.Outputs = out
		}

		data, err := json.Marshal(resp)
		if err != nil {
			data, _ = json.Marshal(response{Error: errors.ToPayload(errors.Internal(err))})
		}
		if _, err := bw.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		if once {
			return nil
		}
	}
	return scanner.Err()
}
