package cluster

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/task"
)

// DefaultQueuePrefix prefixes every key used by clients and workers.
const DefaultQueuePrefix = "taskflow"

const defaultQueue = "default"

// taskMessage is a queued node invocation.
type taskMessage struct {
	Key    string          `json:"key"`
	NodeID string          `json:"node_id"`
	Record json.RawMessage `json:"record"`
	// Deps are the result keys of the sources, in source order.
	Deps   []string `json:"deps"`
	Client string   `json:"client"`
}

// resultRecord is a stored node result.
type resultRecord struct {
	Key     string          `json:"key"`
	NodeID  string          `json:"node_id"`
	Outputs task.Outputs    `json:"outputs,omitempty"`
	Error   *errors.Payload `json:"error,omitempty"`
	Worker  string          `json:"worker,omitempty"`
}

// Tags returns the sorted resource tags of a requirement. Quantities are
// not accounted: a tag is required as soon as it is listed.
func Tags(resources map[string]float64) []string {
	tags := make([]string, 0, len(resources))
	for tag := range resources {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// QueueKey returns the queue holding tasks that require exactly tags.
func QueueKey(prefix string, tags []string) string {
	if len(tags) == 0 {
		return prefix + ":queue:" + defaultQueue
	}
	return prefix + ":queue:" + strings.Join(tags, ",")
}

// workerQueues returns every queue a worker advertising tags may serve:
// one per subset of its tags, the larger subsets first so that scarce
// workers prefer the tasks only they can run.
func workerQueues(prefix string, tags []string) []string {
	n := len(tags)
	subsets := make([][]string, 0, 1<<n)
	for mask := 0; mask < 1<<n; mask++ {
		var subset []string
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, tags[i])
			}
		}
		subsets = append(subsets, subset)
	}
	sort.SliceStable(subsets, func(i, j int) bool { return len(subsets[i]) > len(subsets[j]) })

	queues := make([]string, len(subsets))
	for i, s := range subsets {
		queues[i] = QueueKey(prefix, s)
	}
	return queues
}

func doneKey(prefix, clientID string) string {
	return prefix + ":done:" + clientID
}

func resultPrefix(prefix string) string {
	return prefix + ":result"
}
