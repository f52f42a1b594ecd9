package etcd

import (
	"context"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/registry"
)

var (
	_ registry.Watcher = (*watcher)(nil)
)

type watcher struct {
	key         string
	ctx         context.Context
	cancel      context.CancelFunc
	client      *clientv3.Client
	watchChan   clientv3.WatchChan
	watcher     clientv3.Watcher
	serviceName string
	first       bool

	r      *Registry
	ticker *time.Ticker
}

func newWatcher(ctx context.Context, key string, serviceName string, client *clientv3.Client, r *Registry) (*watcher, error) {
	w := &watcher{
		key:         key,
		client:      client,
		watcher:     clientv3.NewWatcher(client),
		serviceName: serviceName,
		first:       true,
		r:           r,
		ticker:      time.NewTicker(time.Minute),
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.watchChan = w.watcher.Watch(w.ctx, key, clientv3.WithPrefix(), clientv3.WithRev(0), clientv3.WithKeysOnly())
	err := w.watcher.RequestProgress(w.ctx)
	if err != nil {
		w.ticker.Stop()
		w.cancel()
		return nil, err
	}

	return w, nil
}

func (w *watcher) Next() ([]*registry.ServiceInstance, error) {
	if w.first {
		w.first = false
		return w.getInstance()
	}
	select {
	case <-w.ctx.Done():
		return nil, w.ctx.Err()
	case watchResp, ok := <-w.watchChan:
		if !ok || watchResp.Err() != nil {
			log.Error("[discovery] watch failed", zap.Bool("ok", ok), zap.Error(watchResp.Err()))
			time.Sleep(time.Second)
			err := w.reWatch()
			if err != nil {
				return nil, err
			}
		}
		var puts, deletes int
		for _, ev := range watchResp.Events {
			if ev.Type == mvccpb.DELETE {
				deletes++
			} else {
				puts++
			}
		}
		log.Debug("[discovery] service changed", zap.String("service", w.serviceName), zap.Int("puts", puts), zap.Int("deletes", deletes))
		return w.getInstance()
	case <-w.ticker.C:
		return w.getInstance()
	}
}

func (w *watcher) getInstance() ([]*registry.ServiceInstance, error) {
	ctx, cancel := context.WithTimeout(w.ctx, w.r.opts.timeout)
	defer cancel()
	return w.r.ListService(ctx, w.serviceName)
}

func (w *watcher) reWatch() error {
	_ = w.watcher.Close()
	w.watcher = clientv3.NewWatcher(w.client)
	w.watchChan = w.watcher.Watch(w.ctx, w.key, clientv3.WithPrefix(), clientv3.WithRev(0), clientv3.WithKeysOnly())
	return w.watcher.RequestProgress(w.ctx)
}

func (w *watcher) Stop() error {
	w.ticker.Stop()
	w.cancel()
	return w.watcher.Close()
}
