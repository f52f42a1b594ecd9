package dispatcher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/registry"
)

// WatchDiscovery keeps the registry in sync with service in disc until ctx is
// done. The initial snapshot is applied before it returns.
func (d *Dispatcher) WatchDiscovery(ctx context.Context, disc registry.Discovery, service string) error {
	w, err := disc.Watch(ctx, service)
	if err != nil {
		return err
	}
	ins, err := w.Next()
	if err != nil {
		_ = w.Stop()
		return err
	}
	d.update(service, ins)

	go d.watch(ctx, w, service)
	return nil
}

func (d *Dispatcher) watch(ctx context.Context, w registry.Watcher, service string) {
	defer func() {
		if err := w.Stop(); err != nil {
			log.Error("[dispatch] failed to stop watcher", zap.Error(err))
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ins, err := w.Next()
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			log.Error("[dispatch] failed to watch discovery", zap.String("service", service), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		d.update(service, ins)
	}
}

func (d *Dispatcher) update(service string, ins []*registry.ServiceInstance) {
	tasks, skipped := registry.Tasks(ins)
	for id, err := range skipped {
		log.Error("[dispatch] skip instance", zap.String("service", service), zap.String("instance", id), zap.Error(err))
	}
	if len(tasks) == 0 {
		log.Warn("[dispatch] no instance found, keeping previous tasks", zap.String("service", service), zap.Int("tasks", len(d.Tasks())))
		return
	}
	if err := d.Apply(tasks); err != nil {
		log.Error("[dispatch] rejected discovery snapshot", zap.String("service", service), zap.Error(err))
		return
	}
	log.Info("[dispatch] tasks updated", zap.String("service", service), zap.Stringers("tasks", tasks))
}
