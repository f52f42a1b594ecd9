package grpc

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/balancer"
	"google.golang.org/grpc/balancer/base"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kanengo/jobbalance/balance"
	"github.com/kanengo/jobbalance/errors"
	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/registry"
	"github.com/kanengo/jobbalance/selector"
)

var (
	_ balancer.Builder   = (*balancerBuilder)(nil)
	_ base.PickerBuilder = (*balancerPickerBuilder)(nil)
	_ balancer.Picker    = (*balancerPicker)(nil)
)

const balancerPrefix = "jobbalance_"

func init() {
	for _, alg := range selector.Algorithms() {
		balancer.Register(&balancerBuilder{algorithm: alg})
	}
}

// BalancerName is the name to use in a loadBalancingConfig to route calls
// with alg.
func BalancerName(alg selector.Algorithm) string {
	return balancerPrefix + strings.ToLower(alg.String())
}

// balancerBuilder gives every ClientConn its own selector so rotation state
// and connection counts are not shared between connections.
type balancerBuilder struct {
	algorithm selector.Algorithm
}

func (b *balancerBuilder) Build(cc balancer.ClientConn, opts balancer.BuildOptions) balancer.Balancer {
	pb := &balancerPickerBuilder{
		selector: balance.MustNew(b.algorithm),
		tracker:  selector.NewConnTracker(),
	}
	return base.NewBalancerBuilder(b.Name(), pb, base.Config{HealthCheck: true}).Build(cc, opts)
}

func (b *balancerBuilder) Name() string {
	return BalancerName(b.algorithm)
}

type balancerPickerBuilder struct {
	selector *selector.Selector
	tracker  *selector.ConnTracker
}

func (b *balancerPickerBuilder) Build(info base.PickerBuildInfo) balancer.Picker {
	if len(info.ReadySCs) == 0 {
		return base.NewErrPicker(balancer.ErrNoSubConnAvailable)
	}
	tasks := make([]selector.Task, 0, len(info.ReadySCs))
	conns := make(map[string]balancer.SubConn, len(info.ReadySCs))
	for conn, sci := range info.ReadySCs {
		addr := sci.Address.Addr
		if _, ok := conns[addr]; ok {
			continue
		}
		w, err := addressWeight(sci)
		if err != nil {
			log.Error("[balancer] skip subconn with bad weight", zap.String("addr", addr), zap.Error(err))
			continue
		}
		tasks = append(tasks, selector.Task{ID: addr, Weight: w})
		conns[addr] = conn
	}
	// ReadySCs is a map; the round-robin family needs a stable order.
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	return &balancerPicker{
		selector: b.selector,
		tracker:  b.tracker,
		tasks:    tasks,
		conns:    conns,
	}
}

func addressWeight(sci base.SubConnInfo) (int64, error) {
	if sci.Address.BalancerAttributes == nil {
		return selector.DefaultWeight, nil
	}
	switch v := sci.Address.BalancerAttributes.Value(registry.WeightKey).(type) {
	case nil:
		return selector.DefaultWeight, nil
	case string:
		return selector.ParseWeight(v)
	case int64:
		return nonNegative(v)
	case int:
		return nonNegative(int64(v))
	default:
		return 0, selector.ErrInvalidWeight
	}
}

func nonNegative(w int64) (int64, error) {
	if w < 0 {
		return 0, selector.ErrInvalidWeight
	}
	return w, nil
}

type balancerPicker struct {
	selector *selector.Selector
	tracker  *selector.ConnTracker
	tasks    []selector.Task
	conns    map[string]balancer.SubConn
}

func (p *balancerPicker) Pick(info balancer.PickInfo) (balancer.PickResult, error) {
	task, err := p.selector.Select(info.Ctx, p.tasks, p.tracker.Snapshot())
	switch {
	case err == nil:
	case errors.IsNotFound(err):
		// unknown target; grpc rewrites NotFound from a picker to Internal
		return balancer.PickResult{}, status.Error(codes.Unavailable, err.Error())
	case selector.IsNoSelection(err):
		return balancer.PickResult{}, balancer.ErrNoSubConnAvailable
	default:
		return balancer.PickResult{}, err
	}

	p.tracker.Inc(task.ID)
	return balancer.PickResult{
		SubConn: p.conns[task.ID],
		Done: func(di balancer.DoneInfo) {
			p.tracker.Done(task.ID)
		},
	}, nil
}
