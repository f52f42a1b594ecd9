package registry

import (
	"context"
)

// Registrar is used by workers to announce themselves as dispatch targets.
type Registrar interface {
	Register(ctx context.Context, ins *ServiceInstance) error

	DeRegister(ctx context.Context, ins *ServiceInstance) error
}

// Discovery is used by the dispatching side to learn the current task set.
type Discovery interface {
	ListService(ctx context.Context, serviceName string) ([]*ServiceInstance, error)

	Watch(ctx context.Context, serviceName string) (Watcher, error)
}

type Watcher interface {
	// Next blocks until the instance set may have changed and returns the
	// full current set.
	Next() ([]*ServiceInstance, error)

	Stop() error
}
