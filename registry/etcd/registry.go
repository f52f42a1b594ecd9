package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/registry"
)

var (
	_ registry.Registrar = (*Registry)(nil)
	_ registry.Discovery = (*Registry)(nil)
)

type options struct {
	ctx       context.Context
	namespace string
	ttl       time.Duration
	maxRetry  int
	timeout   time.Duration
}

type Option func(*options)

// Context with registry context.
func Context(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// Namespace with registry namespace.
func Namespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// RegisterTTL with register ttl.
func RegisterTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

func MaxRetry(num int) Option {
	return func(o *options) { o.maxRetry = num }
}

// Timeout bounds every single etcd request made while listing.
func Timeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

type Registry struct {
	opts   *options
	client *clientv3.Client
	lease  clientv3.Lease
}

func New(client *clientv3.Client, opt ...Option) *Registry {
	opts := &options{
		ctx:       context.Background(),
		namespace: "/jobbalance",
		ttl:       time.Second * 15,
		maxRetry:  5,
		timeout:   time.Second * 3,
	}

	for _, o := range opt {
		o(opts)
	}

	r := &Registry{
		opts:   opts,
		client: client,
	}

	return r
}

func (r *Registry) serviceKey(serviceName string) string {
	return fmt.Sprintf("%s/%s/", r.opts.namespace, serviceName)
}

func (r *Registry) instanceKey(ins *registry.ServiceInstance) string {
	return r.serviceKey(ins.Name) + ins.ID
}

func (r *Registry) ListService(ctx context.Context, serviceName string) ([]*registry.ServiceInstance, error) {
	resp, err := r.client.Get(ctx, r.serviceKey(serviceName), clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, err
	}
	return decodeInstances(serviceName, resp.Kvs), nil
}

func (r *Registry) Watch(ctx context.Context, serviceName string) (registry.Watcher, error) {
	return newWatcher(ctx, r.serviceKey(serviceName), serviceName, r.client, r)
}

func (r *Registry) Register(ctx context.Context, ins *registry.ServiceInstance) error {
	key := r.instanceKey(ins)
	b, err := json.Marshal(ins)
	if err != nil {
		return err
	}
	if r.lease != nil {
		_ = r.lease.Close()
	}
	value := string(b)
	r.lease = clientv3.NewLease(r.client)
	leaseID, err := r.registerWithKV(ctx, key, value)
	if err != nil {
		return err
	}

	go r.heartbeat(r.opts.ctx, leaseID, key, value)

	return nil
}

func (r *Registry) DeRegister(ctx context.Context, ins *registry.ServiceInstance) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer func() {
		cancel()
		if r.lease != nil {
			_ = r.lease.Close()
		}
	}()
	_, err := r.client.Delete(timeoutCtx, r.instanceKey(ins))
	return err
}

func (r *Registry) registerWithKV(ctx context.Context, key, val string) (clientv3.LeaseID, error) {
	grant, err := r.lease.Grant(ctx, int64(r.opts.ttl.Seconds()))
	if err != nil {
		return 0, err
	}

	_, err = r.client.Put(ctx, key, val, clientv3.WithLease(grant.ID))
	if err != nil {
		return 0, err
	}

	return grant.ID, nil
}

func (r *Registry) heartbeat(ctx context.Context, leaseID clientv3.LeaseID, key, val string) {
	curLeaseID := leaseID
	kac, err := r.client.KeepAlive(ctx, leaseID)
	if err != nil {
		curLeaseID = 0
	}

	for {
		if curLeaseID == 0 {
			for retryCnt := 0; retryCnt < r.opts.maxRetry; retryCnt++ {
				if ctx.Err() != nil { //ctx done
					return
				}

				timeoutCtx, cancel := context.WithTimeout(ctx, time.Second*3)
				id, err := r.registerWithKV(timeoutCtx, key, val)
				cancel()
				if err != nil {
					log.Warn("[registry] re-register failed", zap.String("key", key), zap.Int("retry", retryCnt), zap.Error(err))
					time.Sleep(time.Second * 3)
					continue
				}
				curLeaseID = id
				kac, err = r.client.KeepAlive(ctx, curLeaseID)
				if err == nil {
					break
				}
				curLeaseID = 0
				time.Sleep(time.Second * 3)
			}
			if curLeaseID == 0 {
				log.Error("[registry] giving up on lease", zap.String("key", key))
				return
			}
		}
		select {
		case _, ok := <-kac:
			if !ok {
				if ctx.Err() != nil { //ctx has done
					return
				}
				curLeaseID = 0
				continue
			}
		case <-ctx.Done():
			return
		}
	}
}

func decodeInstances(serviceName string, kvs []*mvccpb.KeyValue) []*registry.ServiceInstance {
	items := make([]*registry.ServiceInstance, 0, len(kvs))
	for _, kv := range kvs {
		var ins registry.ServiceInstance
		if err := json.Unmarshal(kv.Value, &ins); err != nil {
			log.Warn("[registry] skip undecodable instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		if ins.Name != serviceName {
			continue
		}
		items = append(items, &ins)
	}
	return items
}
