package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kanengo/jobbalance/selector"
)

func algorithmsCmd() *cli.Command {
	return &cli.Command{
		Name:  "algorithms",
		Usage: "List the supported balancing algorithms",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			for _, a := range selector.Algorithms() {
				fmt.Fprintln(cmd.Root().Writer, a)
			}
			return nil
		},
	}
}
