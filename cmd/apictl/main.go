// Command apictl calls envelope-style JSON APIs from the terminal.
//
//	apictl login --token eyJ...
//	apictl get /users -q page=2
//	apictl get /orders/7 --every 5s
//	apictl post /orders -d '{"sku":"A1"}' --loading
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, a := newRootCmd()
	err := a.execute(ctx, root)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
