// Package main provides wisplogin, an unattended batch login for Wispbyte
// console accounts. It is meant to run from a scheduler: every configured
// account is logged in once, and a masked report is printed and sent to
// Telegram.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"
)

func main() {
	// Interrupts cancel in-flight logins; cleanup and the report still run
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
