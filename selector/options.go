package selector

import (
	"context"
	"math/rand"
)

type Filter[T any] func(context.Context, []T) []T

type SelectOptions struct {
	TaskFilters []Filter[Task]
	Target      string
}

type SelectOption func(options *SelectOptions)

// WithFilter narrows the candidate set before the balancer runs.
func WithFilter(filters ...Filter[Task]) SelectOption {
	return func(o *SelectOptions) {
		o.TaskFilters = append(o.TaskFilters, filters...)
	}
}

// WithTarget pins the selection to one task id for the specify algorithm.
func WithTarget(id string) SelectOption {
	return func(o *SelectOptions) {
		o.Target = id
	}
}

type options struct {
	state *State
	src   Source
}

type Option func(*options)

// WithSource injects the random source, mostly for deterministic tests.
func WithSource(src Source) Option {
	return func(o *options) { o.src = src }
}

// WithState reuses an existing State. It must belong to this selector only.
func WithState(st *State) Option {
	return func(o *options) { o.state = st }
}

// WithSeed makes the random source reproducible.
func WithSeed(seed int64) Option {
	return func(o *options) { o.src = rand.New(rand.NewSource(seed)) }
}
