package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kanengo/jobbalance/log"
)

func main() {
	if err := App().Run(context.Background(), os.Args); err != nil {
		log.Error("application failed", zap.Error(err))
		_ = log.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = log.Sync()
}
