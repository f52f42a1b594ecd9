package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/kanengo/jobbalance/dispatcher"
	"github.com/kanengo/jobbalance/errors"
	"github.com/kanengo/jobbalance/selector"
)

func pickCmd() *cli.Command {
	return &cli.Command{
		Name:  "pick",
		Usage: "Dispatch jobs against the configured tasks and print where each one went",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "count",
				Usage: "Number of jobs to dispatch",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "target",
				Usage: "Task id to pin every job to (specify algorithm)",
			},
			&cli.BoolFlag{
				Name:  "hold",
				Usage: "Keep every job running until all are dispatched, so connection counts build up",
			},
			&cli.StringFlag{
				Name:  "algorithm",
				Usage: "Override balancer.algorithm from the config",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v := cmd.String("algorithm"); v != "" {
				if _, err := selector.ParseAlgorithm(v); err != nil {
					return err
				}
				cfg.Balancer.Algorithm = v
			}

			d, cleanup, err := newDispatcher(ctx, cfg, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer cleanup()

			return runPick(ctx, cmd, d, int(cmd.Int("count")), cmd.String("target"), cmd.Bool("hold"))
		},
	}
}

func runPick(ctx context.Context, cmd *cli.Command, d *dispatcher.Dispatcher, count int, target string, hold bool) error {
	out := cmd.Root().Writer
	var (
		missed int
		held   []dispatcher.DoneFunc
	)
	defer func() {
		for _, done := range held {
			done(ctx, dispatcher.DoneInfo{})
		}
	}()

	for i := 0; i < count; i++ {
		job := dispatcher.NewJob(i)
		if target != "" {
			job = job.Pin(target)
		}

		var taskID string
		var err error
		if hold {
			var opts []selector.SelectOption
			if job.Target != "" {
				opts = append(opts, selector.WithTarget(job.Target))
			}
			var task selector.Task
			var done dispatcher.DoneFunc
			task, done, err = d.Pick(ctx, opts...)
			if err == nil {
				held = append(held, done)
				taskID = task.ID
			}
		} else {
			_, err = d.Dispatch(ctx, job, func(ctx context.Context, task selector.Task, job *dispatcher.Job) (any, error) {
				taskID = task.ID
				return nil, nil
			})
		}

		if err != nil {
			if !selector.IsNoSelection(err) {
				return err
			}
			missed++
			fmt.Fprintf(out, "%d\t-\t%s\t%s\n", i, job.ID, errors.Reason(err))
			continue
		}
		fmt.Fprintf(out, "%d\t%s\t%s\n", i, taskID, job.ID)
	}

	if count > 0 && missed == count {
		return selector.ErrNoAvailable
	}
	return nil
}
