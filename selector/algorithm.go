package selector

import (
	"github.com/kanengo/jobbalance/errors"
)

// Algorithm names a selection strategy. The set is closed; see Algorithms.
type Algorithm string

const (
	Polling                  Algorithm = "polling"
	Weights                  Algorithm = "weights"
	Random                   Algorithm = "random"
	Specify                  Algorithm = "specify"
	MinimumConnection        Algorithm = "minimumConnection"
	WeightsPolling           Algorithm = "weightsPolling"
	WeightsRandom            Algorithm = "weightsRandom"
	WeightsMinimumConnection Algorithm = "weightsMinimumConnection"
)

var ErrUnknownAlgorithm = errors.BadRequest("CONFIGURATION", "unknown balancing algorithm")

func Algorithms() []Algorithm {
	return []Algorithm{
		Polling,
		Weights,
		Random,
		Specify,
		MinimumConnection,
		WeightsPolling,
		WeightsRandom,
		WeightsMinimumConnection,
	}
}

func (a Algorithm) String() string {
	return string(a)
}

func (a Algorithm) Valid() bool {
	for _, v := range Algorithms() {
		if v == a {
			return true
		}
	}
	return false
}

// Stateful reports whether the algorithm advances counters in State.
func (a Algorithm) Stateful() bool {
	switch a {
	case Polling, WeightsPolling, WeightsMinimumConnection:
		return true
	}
	return false
}

func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(name)
	if !a.Valid() {
		return "", ErrUnknownAlgorithm.WithMetadata(map[string]string{"algorithm": name})
	}
	return a, nil
}
