package main

import (
	"context"
	"flag"
	"log/slog"

	"suapreport/internal/app"
	"suapreport/internal/components/telemetry"
	"suapreport/internal/config"
	"suapreport/internal/transport/wsserver"
	libtelemetry "suapreport/lib/telemetry"
	"suapreport/lib/util/serviceutil"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "", "Path to the config file, config.json5 is searched for when empty.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if err := cfg.Validate(); err != nil {
		serviceutil.Fatal("validate config", err)
	}

	tel := telemetry.SlogAPI{}
	a, err := app.New(ctx, cfg, tel)
	if err != nil {
		serviceutil.Fatal("init app", err)
	}
	defer a.Close()

	r := a.Router(ctx)
	libtelemetry.InstrumentQueue(ctx, "router", r.Queued)

	ws := wsserver.New(r, func() string { return a.Session.State().String() }, tel)

	slog.InfoContext(ctx, "serving", "port", cfg.Server.Port, "path", cfg.Server.Path)
	err = serviceutil.StartHttpServer(ctx, cfg.Server.Port, ws.Handler(cfg.Server.Path))
	if err != nil {
		serviceutil.Fatal("serve", err)
	}

	// let the running job report before the browser goes away
	r.Wait()
}

func InitTelemetry(ctx context.Context, verbose bool) {
	libtelemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	otel, err := libtelemetry.SetupFromEnv(ctx, "suap-server")
	if err != nil {
		// exporting is optional, logs are enough to run
		slog.WarnContext(ctx, "telemetry export disabled", "err", err)
	}
	go func() {
		<-ctx.Done()
		otel.Shutdown(context.Background())
	}()
	libtelemetry.InstrumentPerfStats(ctx)
}
