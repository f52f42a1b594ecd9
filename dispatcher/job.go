package dispatcher

import (
	"context"

	"github.com/google/uuid"

	"github.com/kanengo/jobbalance/selector"
)

// Job is one unit of work to route to a task.
type Job struct {
	ID string
	// Target pins the job to a task id when the specify algorithm is used.
	Target  string
	Payload any
}

func NewJob(payload any) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Payload: payload,
	}
}

// Pin returns a copy of the job that sticks to task id.
func (j *Job) Pin(id string) *Job {
	cp := *j
	cp.Target = id
	return &cp
}

// Runner performs the job on the chosen task.
type Runner func(ctx context.Context, task selector.Task, job *Job) (any, error)

type DoneInfo struct {
	Err error
}

// DoneFunc must be called once the work assigned to a task has finished.
type DoneFunc func(ctx context.Context, di DoneInfo)
