// Command launchpad compiles and deploys Solidity contracts.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/protobase/launchpad/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.NewRootCommand(cli.Deps{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
