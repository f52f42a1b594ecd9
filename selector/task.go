package selector

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kanengo/jobbalance/errors"
)

// DefaultWeight is applied when a task is built from configuration that did
// not set a weight. An explicit zero is kept as zero.
const DefaultWeight int64 = 1

var (
	ErrInvalidWeight = errors.BadRequest("INVALID_WEIGHT", "task weight must be a non-negative integer")
	ErrInvalidTask   = errors.BadRequest("INVALID_TASK", "task id must not be empty")
)

// Task is one dispatch candidate.
type Task struct {
	ID     string
	Weight int64
}

func NewTask(id string, weight int64) (Task, error) {
	if id == "" {
		return Task{}, ErrInvalidTask
	}
	if weight < 0 {
		return Task{}, ErrInvalidWeight.WithMetadata(map[string]string{
			"task":   id,
			"weight": strconv.FormatInt(weight, 10),
		})
	}
	return Task{ID: id, Weight: weight}, nil
}

// NewTaskDefault builds a task from an optional weight.
func NewTaskDefault(id string, weight *int64) (Task, error) {
	if weight == nil {
		return NewTask(id, DefaultWeight)
	}
	return NewTask(id, *weight)
}

// ParseWeight parses the textual weight found in discovery metadata. An empty
// string means unset.
func ParseWeight(s string) (int64, error) {
	if s == "" {
		return DefaultWeight, nil
	}
	w, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidWeight.WithCause(fmt.Errorf("parse weight %q: %w", s, err))
	}
	if w < 0 {
		return 0, ErrInvalidWeight.WithMetadata(map[string]string{"weight": s})
	}
	return w, nil
}

func (t Task) String() string {
	return fmt.Sprintf("%s(w=%d)", t.ID, t.Weight)
}

// WeightTotal sums the weights of tasks.
func WeightTotal(tasks []Task) int64 {
	var total int64
	for _, t := range tasks {
		total += t.Weight
	}
	return total
}

// CheckWeights validates the weights of tasks and returns their sum. A
// negative weight or a sum past math.MaxInt64 is ErrInvalidWeight.
func CheckWeights(tasks []Task) (int64, error) {
	var total int64
	for _, t := range tasks {
		if t.Weight < 0 {
			return 0, ErrInvalidWeight.WithMetadata(map[string]string{
				"task":   t.ID,
				"weight": strconv.FormatInt(t.Weight, 10),
			})
		}
		if t.Weight > math.MaxInt64-total {
			return 0, ErrInvalidWeight.WithMetadata(map[string]string{
				"task":  t.ID,
				"error": "weight total overflows int64",
			})
		}
		total += t.Weight
	}
	return total, nil
}

// EffectiveWeights returns the weights the weighted algorithms should use.
// When every weight is zero each task counts as one, so the weighted family
// degrades to an unweighted one instead of dividing by zero.
func EffectiveWeights(in *Input) (weight func(i int) int64, total int64) {
	if in.WeightTotal > 0 {
		return func(i int) int64 { return in.Tasks[i].Weight }, in.WeightTotal
	}
	return func(int) int64 { return 1 }, int64(len(in.Tasks))
}
