package dispatcher

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanengo/jobbalance/balance"
	"github.com/kanengo/jobbalance/middleware/ratelimit"
	"github.com/kanengo/jobbalance/middleware/ratelimit/tokenbucket"
	"github.com/kanengo/jobbalance/middleware/recovery"
	"github.com/kanengo/jobbalance/selector"
	"github.com/kanengo/jobbalance/selector/selectortest"
)

func newDispatcher(t *testing.T, a selector.Algorithm, opts ...Option) *Dispatcher {
	t.Helper()
	sel := balance.MustNew(a, selector.WithSource(selectortest.FixedSource{}))
	return New(sel, opts...)
}

func echo(ctx context.Context, task selector.Task, job *Job) (any, error) {
	return task.ID, nil
}

func TestDispatchPolling(t *testing.T) {
	d := newDispatcher(t, selector.Polling)
	require.NoError(t, d.Apply(selectortest.Tasks("a", 1, "b", 1, "c", 1)))

	var got []any
	for i := 0; i < 6; i++ {
		reply, err := d.Dispatch(context.Background(), NewJob(i), echo)
		require.NoError(t, err)
		got = append(got, reply)
	}
	assert.Equal(t, []any{"a", "b", "c", "a", "b", "c"}, got)
	assert.Empty(t, d.Tracker().Snapshot())
}

func TestDispatchEmptyRegistry(t *testing.T) {
	for _, a := range selector.Algorithms() {
		t.Run(a.String(), func(t *testing.T) {
			d := newDispatcher(t, a)
			_, err := d.Dispatch(context.Background(), NewJob(nil), echo)
			assert.ErrorIs(t, err, selector.ErrNoAvailable)
		})
	}
}

func TestDispatchPinnedJob(t *testing.T) {
	d := newDispatcher(t, selector.Specify)
	require.NoError(t, d.Apply(selectortest.Tasks("a", 1, "b", 1)))

	reply, err := d.Dispatch(context.Background(), NewJob(nil).Pin("b"), echo)
	require.NoError(t, err)
	assert.Equal(t, "b", reply)

	_, err = d.Dispatch(context.Background(), NewJob(nil).Pin("z"), echo)
	assert.ErrorIs(t, err, selector.ErrUnknownTarget)
	assert.True(t, selector.IsNoSelection(err))
}

func TestPickTracksConnections(t *testing.T) {
	d := newDispatcher(t, selector.MinimumConnection)
	require.NoError(t, d.Apply(selectortest.Tasks("a", 1, "b", 1)))
	ctx := context.Background()

	t1, done1, err := d.Pick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", t1.ID)

	// a is busy now, so b has the fewest connections
	t2, done2, err := d.Pick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", t2.ID)
	assert.Equal(t, selector.Connections{"a": 1, "b": 1}, d.Tracker().Snapshot())

	done1(ctx, DoneInfo{})
	done1(ctx, DoneInfo{})
	assert.Equal(t, int64(0), d.Tracker().Count("a"))
	assert.Equal(t, int64(1), d.Tracker().Count("b"))

	t3, done3, err := d.Pick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", t3.ID)

	done2(ctx, DoneInfo{})
	done3(ctx, DoneInfo{Err: errors.New("failed")})
	assert.Empty(t, d.Tracker().Snapshot())
}

func TestPickN(t *testing.T) {
	d := newDispatcher(t, selector.WeightsPolling)
	require.NoError(t, d.Apply(selectortest.Tasks("a", 3, "b", 1)))

	tasks, dones, err := d.PickN(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a", "a", "b"}, selectortest.IDs(tasks))
	assert.Len(t, dones, 4)
	for _, done := range dones {
		done(context.Background(), DoneInfo{})
	}
	assert.Empty(t, d.Tracker().Snapshot())
}

func TestRegistryEdits(t *testing.T) {
	d := newDispatcher(t, selector.Polling)
	require.NoError(t, d.Add(selector.Task{ID: "a", Weight: 1}))
	require.NoError(t, d.Add(selector.Task{ID: "b", Weight: 1}))
	require.NoError(t, d.Add(selector.Task{ID: "a", Weight: 5}))
	assert.Equal(t, []selector.Task{{ID: "a", Weight: 5}, {ID: "b", Weight: 1}}, d.Tasks())

	assert.Error(t, d.Add(selector.Task{ID: "c", Weight: -1}))
	assert.Error(t, d.Add(selector.Task{Weight: 1}))

	_, _, err := d.Pick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Tracker().Count("a"))

	assert.True(t, d.Remove("a"))
	assert.False(t, d.Remove("a"))
	assert.Equal(t, int64(0), d.Tracker().Count("a"))
	assert.Equal(t, []string{"b"}, selectortest.IDs(d.Tasks()))

	d.Wipe()
	assert.Empty(t, d.Tasks())
	_, _, err = d.Pick(context.Background())
	assert.ErrorIs(t, err, selector.ErrNoAvailable)
}

func TestApplyCopiesInput(t *testing.T) {
	d := newDispatcher(t, selector.Polling)
	tasks := selectortest.Tasks("a", 1)
	require.NoError(t, d.Apply(tasks))
	tasks[0].ID = "mutated"
	assert.Equal(t, "a", d.Tasks()[0].ID)
}

func TestDispatchMiddleware(t *testing.T) {
	d := newDispatcher(t, selector.Polling, WithMiddleware(
		recovery.Recovery(),
		ratelimit.RateLimit(tokenbucket.New(0, 1)),
	))
	require.NoError(t, d.Apply(selectortest.Tasks("a", 1)))

	_, err := d.Dispatch(context.Background(), NewJob(nil), func(ctx context.Context, task selector.Task, job *Job) (any, error) {
		panic("boom")
	})
	assert.ErrorIs(t, err, recovery.ErrUnknownPanic)
	assert.Empty(t, d.Tracker().Snapshot())

	_, err = d.Dispatch(context.Background(), NewJob(nil), echo)
	assert.ErrorIs(t, err, ratelimit.ErrTriggerLimit)
}

func TestDispatchConcurrent(t *testing.T) {
	d := newDispatcher(t, selector.WeightsPolling)
	require.NoError(t, d.Apply(selectortest.Tasks("a", 2, "b", 1)))

	const n = 300
	var (
		mu     sync.Mutex
		counts = map[any]int{}
		wg     sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := d.Dispatch(context.Background(), NewJob(nil), echo)
			if err != nil {
				return
			}
			mu.Lock()
			counts[reply]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, map[any]int{"a": 200, "b": 100}, counts)
	assert.Empty(t, d.Tracker().Snapshot())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics("jobbalance", reg)
	require.NoError(t, err)

	d := newDispatcher(t, selector.Polling, WithMetrics(m))
	require.NoError(t, d.Apply(selectortest.Tasks("a", 1)))
	ctx := context.Background()

	_, done, err := d.Pick(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.selections.WithLabelValues("polling", "a")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inflight.WithLabelValues("a")))
	done(ctx, DoneInfo{})
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inflight.WithLabelValues("a")))

	d.Wipe()
	_, _, err = d.Pick(ctx)
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.noSelection.WithLabelValues("polling", "NO_CANDIDATES")))

	_, err = NewMetrics("jobbalance", reg)
	assert.Error(t, err)
}

func TestApplyRejectsInvalidTasks(t *testing.T) {
	d := newDispatcher(t, selector.Weights)
	require.NoError(t, d.Apply(selectortest.Tasks("a", 1)))

	assert.ErrorIs(t, d.Apply([]selector.Task{{ID: "x", Weight: -3}, {ID: "y", Weight: 1}}), selector.ErrInvalidWeight)
	assert.ErrorIs(t, d.Apply([]selector.Task{{ID: "x", Weight: math.MaxInt64}, {ID: "y", Weight: 1}}), selector.ErrInvalidWeight)
	assert.ErrorIs(t, d.Apply([]selector.Task{{Weight: 1}}), selector.ErrInvalidTask)
	assert.Equal(t, []string{"a"}, selectortest.IDs(d.Tasks()))

	d.Wipe()
	require.NoError(t, d.Add(selector.Task{ID: "big", Weight: math.MaxInt64}))
	assert.ErrorIs(t, d.Add(selector.Task{ID: "more", Weight: 1}), selector.ErrInvalidWeight)
	assert.Equal(t, []string{"big"}, selectortest.IDs(d.Tasks()))
}

func TestPickNNegativeCount(t *testing.T) {
	d := newDispatcher(t, selector.Polling)
	require.NoError(t, d.Apply(selectortest.Tasks("a", 1)))

	tasks, dones, err := d.PickN(context.Background(), -1)
	assert.ErrorIs(t, err, selector.ErrInvalidCount)
	assert.Empty(t, tasks)
	assert.Empty(t, dones)
	assert.Empty(t, d.Tracker().Snapshot())
}

func TestApplyKeepsRotation(t *testing.T) {
	d := newDispatcher(t, selector.Polling)
	tasks := selectortest.Tasks("a", 1, "b", 1, "c", 1)
	require.NoError(t, d.Apply(tasks))

	first, _, err := d.PickN(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, selectortest.IDs(first))

	// a discovery refresh with the same tasks continues the rotation
	require.NoError(t, d.Apply(tasks))
	next, _, err := d.Pick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c", next.ID)

	d.Selector().State().Reset()
	next, _, err = d.Pick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", next.ID)
}
