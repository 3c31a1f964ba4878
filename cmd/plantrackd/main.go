package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"plantrack/internal/app"
	"plantrack/internal/notify"
	"plantrack/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, notify.LogSink{Log: logx.NewConsole("INFO")})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}
	_, _ = sd.SdNotify(false, sd.SdNotifyReady)

	<-ctx.Done()
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	_ = a.Stop(context.Background())
}
