// Package dispatcher is the caller side of the balancer: it owns the current
// task registry and connection counts, asks a selector for a task on every
// job and keeps the counts up to date while the job runs.
package dispatcher

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kanengo/jobbalance/errors"
	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/middleware"
	"github.com/kanengo/jobbalance/selector"
)

type options struct {
	middleware []middleware.Middleware
	tracker    *selector.ConnTracker
	metrics    *Metrics
}

type Option func(*options)

// WithMiddleware wraps Dispatch; the first middleware is the outermost.
func WithMiddleware(ms ...middleware.Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, ms...)
	}
}

// WithTracker shares a connection tracker, e.g. with a transport that also
// routes work to the same tasks.
func WithTracker(t *selector.ConnTracker) Option {
	return func(o *options) {
		o.tracker = t
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

type Dispatcher struct {
	selector *selector.Selector
	tracker  *selector.ConnTracker
	metrics  *Metrics
	handler  middleware.Handler

	// tasks holds an immutable []selector.Task; edits swap the whole slice.
	tasks atomic.Value
	mu    sync.Mutex
}

func New(sel *selector.Selector, opts ...Option) *Dispatcher {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracker == nil {
		o.tracker = selector.NewConnTracker()
	}
	d := &Dispatcher{
		selector: sel,
		tracker:  o.tracker,
		metrics:  o.metrics,
	}
	d.tasks.Store([]selector.Task{})

	d.handler = d.dispatch
	if len(o.middleware) > 0 {
		d.handler = middleware.Chain(o.middleware...)(d.handler)
	}
	return d
}

func (d *Dispatcher) Selector() *selector.Selector {
	return d.selector
}

func (d *Dispatcher) Tracker() *selector.ConnTracker {
	return d.tracker
}

// Tasks returns the current registry. The slice must not be modified.
func (d *Dispatcher) Tasks() []selector.Task {
	return d.tasks.Load().([]selector.Task)
}

// Apply replaces the registry. Connection counts of tasks that disappeared
// are dropped. The rotation and weight counters are kept, so a discovery
// refresh with the same tasks continues where it left off; call
// Selector().State().Reset() to start over. Nothing is replaced when a task
// is invalid.
func (d *Dispatcher) Apply(tasks []selector.Task) error {
	for _, t := range tasks {
		if _, err := selector.NewTask(t.ID, t.Weight); err != nil {
			return err
		}
	}
	if _, err := selector.CheckWeights(tasks); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store(append([]selector.Task(nil), tasks...))
	return nil
}

// Add appends task, or updates the weight in place when the id is known so
// the rotation order is kept.
func (d *Dispatcher) Add(task selector.Task) error {
	if _, err := selector.NewTask(task.ID, task.Weight); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.Tasks()
	next := make([]selector.Task, 0, len(cur)+1)
	replaced := false
	for _, t := range cur {
		if t.ID == task.ID {
			t = task
			replaced = true
		}
		next = append(next, t)
	}
	if !replaced {
		next = append(next, task)
	}
	if _, err := selector.CheckWeights(next); err != nil {
		return err
	}
	d.store(next)
	return nil
}

// Remove drops the task with id and reports whether it was present.
func (d *Dispatcher) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.Tasks()
	next := make([]selector.Task, 0, len(cur))
	for _, t := range cur {
		if t.ID != id {
			next = append(next, t)
		}
	}
	if len(next) == len(cur) {
		return false
	}
	d.store(next)
	return true
}

// Wipe empties the registry; dispatches report no selection until tasks are
// added again.
func (d *Dispatcher) Wipe() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store([]selector.Task{})
}

func (d *Dispatcher) store(next []selector.Task) {
	keep := make(map[string]struct{}, len(next))
	for _, t := range next {
		keep[t.ID] = struct{}{}
	}
	for _, t := range d.Tasks() {
		if _, ok := keep[t.ID]; !ok {
			d.tracker.Forget(t.ID)
			d.metrics.forget(t.ID)
		}
	}
	d.tasks.Store(next)
}

// Pick chooses a task and counts one unit of work against it. The returned
// DoneFunc releases that unit and is safe to call more than once.
func (d *Dispatcher) Pick(ctx context.Context, opts ...selector.SelectOption) (selector.Task, DoneFunc, error) {
	alg := d.selector.Algorithm().String()
	task, err := d.selector.Select(ctx, d.Tasks(), d.tracker.Snapshot(), opts...)
	if err != nil {
		reason := errors.Reason(err)
		d.metrics.missed(alg, reason)
		if selector.IsNoSelection(err) {
			log.Warn("[dispatch] no selection", zap.String("algorithm", alg), zap.String("reason", reason), zap.Int("tasks", len(d.Tasks())))
		} else {
			log.Error("[dispatch] select failed", zap.String("algorithm", alg), zap.Error(err))
		}
		return selector.Task{}, nil, err
	}

	d.metrics.selected(alg, task.ID, d.tracker.Inc(task.ID))
	log.Debug("[dispatch] selected", zap.String("algorithm", alg), zap.String("task", task.ID))

	var once sync.Once
	done := func(ctx context.Context, di DoneInfo) {
		once.Do(func() {
			d.metrics.finished(task.ID, d.tracker.Done(task.ID))
			if di.Err != nil {
				log.Debug("[dispatch] task reported failure", zap.String("task", task.ID), zap.Error(di.Err))
			}
		})
	}
	return task, done, nil
}

// PickN selects count tasks in a row, each counted as assigned. All returned
// DoneFuncs must be called.
func (d *Dispatcher) PickN(ctx context.Context, count int, opts ...selector.SelectOption) ([]selector.Task, []DoneFunc, error) {
	if count < 0 {
		return nil, nil, selector.ErrInvalidCount.WithMetadata(map[string]string{"count": strconv.Itoa(count)})
	}
	tasks := make([]selector.Task, 0, count)
	dones := make([]DoneFunc, 0, count)
	for i := 0; i < count; i++ {
		t, done, err := d.Pick(ctx, opts...)
		if err != nil {
			return tasks, dones, err
		}
		tasks = append(tasks, t)
		dones = append(dones, done)
	}
	return tasks, dones, nil
}

type request struct {
	job *Job
	run Runner
}

func (r *request) String() string {
	if r.job.Target != "" {
		return "job " + r.job.ID + " -> " + r.job.Target
	}
	return "job " + r.job.ID
}

// Dispatch routes job to a task through the middleware chain and runs it.
func (d *Dispatcher) Dispatch(ctx context.Context, job *Job, run Runner) (any, error) {
	return d.handler(ctx, &request{job: job, run: run})
}

func (d *Dispatcher) dispatch(ctx context.Context, req any) (reply any, err error) {
	r := req.(*request)
	var opts []selector.SelectOption
	if r.job.Target != "" {
		opts = append(opts, selector.WithTarget(r.job.Target))
	}
	task, done, err := d.Pick(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		done(ctx, DoneInfo{Err: err})
	}()
	return r.run(ctx, task, r.job)
}
