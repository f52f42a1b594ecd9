package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/kanengo/jobbalance/log"
	"github.com/kanengo/jobbalance/registry"
	"github.com/kanengo/jobbalance/selector"
)

func registerCmd() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Announce a task in etcd until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "Task id",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "weight",
				Usage: "Task weight",
				Value: selector.DefaultWeight,
			},
			&cli.StringSliceFlag{
				Name:  "endpoint",
				Usage: "Endpoint URL the task serves on, e.g. grpc://10.0.0.1:9000",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Registry.Enabled() {
				return fmt.Errorf("registry.endpoints is required")
			}
			task, err := selector.NewTask(cmd.String("id"), int64(cmd.Int("weight")))
			if err != nil {
				return err
			}

			r, cleanup, err := newEtcdRegistry(cfg.Registry)
			if err != nil {
				return err
			}
			defer cleanup()

			ins := &registry.ServiceInstance{
				ID:        task.ID,
				Name:      cfg.Registry.Service,
				Version:   version,
				Metadata:  map[string]string{registry.WeightKey: strconv.FormatInt(task.Weight, 10)},
				Endpoints: cmd.StringSlice("endpoint"),
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := r.Register(ctx, ins); err != nil {
				return fmt.Errorf("register %s: %w", ins, err)
			}
			log.Info("task registered", zap.Stringer("instance", ins), zap.Int64("weight", task.Weight))

			<-ctx.Done()

			if err := r.DeRegister(context.Background(), ins); err != nil {
				return fmt.Errorf("deregister %s: %w", ins, err)
			}
			log.Info("task deregistered", zap.Stringer("instance", ins))
			return nil
		},
	}
}
