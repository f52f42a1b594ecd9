package registry

import (
	"fmt"

	"github.com/kanengo/jobbalance/selector"
)

// WeightKey is the metadata key a worker advertises its weight under.
const WeightKey = "weight"

type ServiceInstance struct {
	//ID unique instance ID
	ID string `json:"id"`

	Name string `json:"name"`

	Version string `json:"version"`

	Metadata map[string]string `json:"metadata"`

	Endpoints []string `json:"endpoints"`
}

func (i *ServiceInstance) String() string {
	return fmt.Sprintf("%s.%s", i.Name, i.ID)
}

// Task converts the instance into a dispatch candidate. A missing weight
// means DefaultWeight.
func (i *ServiceInstance) Task() (selector.Task, error) {
	w, err := selector.ParseWeight(i.Metadata[WeightKey])
	if err != nil {
		return selector.Task{}, err
	}
	return selector.NewTask(i.ID, w)
}

// Tasks converts a discovery snapshot into a task registry, keeping the
// instance order and skipping duplicates. Instances with a bad weight are
// returned in skipped so the caller can log them.
func Tasks(ins []*ServiceInstance) (tasks []selector.Task, skipped map[string]error) {
	seen := make(map[string]struct{}, len(ins))
	tasks = make([]selector.Task, 0, len(ins))
	for _, in := range ins {
		if in == nil {
			continue
		}
		if _, ok := seen[in.ID]; ok {
			continue
		}
		t, err := in.Task()
		if err != nil {
			if skipped == nil {
				skipped = make(map[string]error)
			}
			skipped[in.ID] = err
			continue
		}
		seen[in.ID] = struct{}{}
		tasks = append(tasks, t)
	}
	return tasks, skipped
}
