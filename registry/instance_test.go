package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kanengo/jobbalance/selector"
)

func TestTasks(t *testing.T) {
	ins := []*ServiceInstance{
		{ID: "w1", Name: "worker", Metadata: map[string]string{WeightKey: "3"}},
		{ID: "w2", Name: "worker"},
		nil,
		{ID: "w1", Name: "worker", Metadata: map[string]string{WeightKey: "9"}},
		{ID: "w3", Name: "worker", Metadata: map[string]string{WeightKey: "-1"}},
		{ID: "", Name: "worker"},
	}

	tasks, skipped := Tasks(ins)
	assert.Equal(t, []selector.Task{{ID: "w1", Weight: 3}, {ID: "w2", Weight: 1}}, tasks)
	assert.Len(t, skipped, 2)
	assert.ErrorIs(t, skipped["w3"], selector.ErrInvalidWeight)
	assert.ErrorIs(t, skipped[""], selector.ErrInvalidTask)
	assert.Equal(t, "worker.w1", ins[0].String())
}
