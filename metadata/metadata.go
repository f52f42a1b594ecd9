package metadata

import (
	"context"
	"strings"
)

// TargetKey carries the task id a job should stick to when the balancer
// runs the specify algorithm.
const TargetKey = "x-jobbalance-target"

type Metadata map[string]string

func New(mds ...map[string]string) Metadata {
	md := Metadata{}
	for _, m := range mds {
		for k, v := range m {
			md.Set(k, v)
		}
	}

	return md
}

func (m Metadata) Get(key string) string {
	return m[strings.ToLower(key)]
}

func (m Metadata) Set(key string, value string) {
	if key == "" || value == "" {
		return
	}
	m[strings.ToLower(key)] = value
}

func (m Metadata) Clone() Metadata {
	md := make(Metadata, len(m))
	for k, v := range m {
		md[k] = v
	}

	return md
}

type clientMetadataKey struct {
}

func NewClientContext(ctx context.Context, md Metadata) context.Context {
	return context.WithValue(ctx, clientMetadataKey{}, md)
}

func FromClientContext(ctx context.Context) (Metadata, bool) {
	md, ok := ctx.Value(clientMetadataKey{}).(Metadata)
	return md, ok
}

// WithTarget returns a client context pinning dispatch to the task id.
// Existing client metadata is copied, never mutated.
func WithTarget(ctx context.Context, id string) context.Context {
	md, ok := FromClientContext(ctx)
	if ok {
		md = md.Clone()
	} else {
		md = New()
	}
	md.Set(TargetKey, id)
	return NewClientContext(ctx, md)
}

// Target reads the sticky target from the client context, if any.
func Target(ctx context.Context) string {
	if md, ok := FromClientContext(ctx); ok {
		return md.Get(TargetKey)
	}
	return ""
}
