package main

import (
	"TextDesk/internal/bootstrap"
	"TextDesk/internal/config"
	"TextDesk/internal/http-server/api"
	"TextDesk/internal/lib/sl"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := bootstrap.Logger(conf, *logPath)

	lg.Info("starting textdesk", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, conf, lg)
	if err != nil {
		lg.Error("service init", sl.Err(err))
		return
	}
	defer app.Close()

	go app.Hub.Run()

	server, err := api.New(conf, lg, app.Core, api.Options{
		Files: app.Files,
		Hub:   app.Hub,
	})
	if err != nil {
		lg.Error("server init", sl.Err(err))
		return
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("server shutdown", sl.Err(err))
		}
	}()

	// *** blocking start with http server ***
	if err = server.Serve(); err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	lg.Info("service stopped")
}
