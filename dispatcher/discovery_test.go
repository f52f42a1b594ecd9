package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanengo/jobbalance/registry"
	"github.com/kanengo/jobbalance/selector"
	"github.com/kanengo/jobbalance/selector/selectortest"
)

type fakeWatcher struct {
	ch      chan []*registry.ServiceInstance
	ctx     context.Context
	stopped chan struct{}
}

func (w *fakeWatcher) Next() ([]*registry.ServiceInstance, error) {
	select {
	case <-w.ctx.Done():
		return nil, w.ctx.Err()
	case ins := <-w.ch:
		return ins, nil
	}
}

func (w *fakeWatcher) Stop() error {
	close(w.stopped)
	return nil
}

type fakeDiscovery struct {
	w *fakeWatcher
}

func (f *fakeDiscovery) ListService(ctx context.Context, serviceName string) ([]*registry.ServiceInstance, error) {
	return nil, nil
}

func (f *fakeDiscovery) Watch(ctx context.Context, serviceName string) (registry.Watcher, error) {
	f.w.ctx = ctx
	return f.w, nil
}

func instance(id, weight string) *registry.ServiceInstance {
	ins := &registry.ServiceInstance{ID: id, Name: "worker"}
	if weight != "" {
		ins.Metadata = map[string]string{registry.WeightKey: weight}
	}
	return ins
}

func TestWatchDiscovery(t *testing.T) {
	w := &fakeWatcher{
		ch:      make(chan []*registry.ServiceInstance, 1),
		stopped: make(chan struct{}),
	}
	w.ch <- []*registry.ServiceInstance{instance("a", "3"), instance("b", ""), instance("bad", "x")}

	d := newDispatcher(t, selector.WeightsPolling)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.WatchDiscovery(ctx, &fakeDiscovery{w: w}, "worker"))
	assert.Equal(t, []selector.Task{{ID: "a", Weight: 3}, {ID: "b", Weight: 1}}, d.Tasks())

	// an empty snapshot keeps what we had
	w.ch <- nil
	w.ch <- []*registry.ServiceInstance{instance("c", "2")}
	assert.Eventually(t, func() bool {
		tasks := d.Tasks()
		return len(tasks) == 1 && tasks[0].ID == "c"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"c"}, selectortest.IDs(d.Tasks()))

	cancel()
	select {
	case <-w.stopped:
	case <-time.After(time.Second):
		t.Fatal("watcher was not stopped")
	}
}

func TestUpdateKeepsTasksOnEmptySnapshot(t *testing.T) {
	d := newDispatcher(t, selector.Polling)
	require.NoError(t, d.Apply(selectortest.Tasks("a", 1)))
	d.update("worker", []*registry.ServiceInstance{instance("x", "-1")})
	assert.Equal(t, []string{"a"}, selectortest.IDs(d.Tasks()))
}
