package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eventsim.app/dispatcher/common/id"
	"eventsim.app/dispatcher/common/logger"
	"eventsim.app/dispatcher/core/config"
	"eventsim.app/dispatcher/internal/dispatch"
	"eventsim.app/dispatcher/internal/eventsource"
	"eventsim.app/dispatcher/internal/http/dto"
	"eventsim.app/dispatcher/internal/model"
	"eventsim.app/dispatcher/internal/schedule"
	"eventsim.app/dispatcher/internal/service"
)

type options struct {
	org        string
	file       string
	routingKey string
	dryRun     bool
}

// line is one JSON line on stdout. Logs go to stderr so stdout stays parseable.
type line struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

const eventTask = "task"

// replay dispatches one event file from the command line and prints each
// frame as a JSON line on stdout.
func main() {
	var opts options
	flag.StringVar(&opts.org, "org", "", "organization directory under EVENTS_DIR")
	flag.StringVar(&opts.file, "file", "", "event file name")
	flag.StringVar(&opts.routingKey, "routing-key", os.Getenv("ROUTING_KEY"), "integration routing key")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "print the planned sends without dispatching")
	flag.Parse()

	if opts.org == "" || opts.file == "" || opts.routingKey == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -org <org> -file <file> -routing-key <key> [-dry-run]")
		os.Exit(2)
	}

	cfg, err := config.Load(config.ServiceTypeReplay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := id.Init(2); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize id generator: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, cfg, opts, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit status: 1 on a load failure or any failed send.
func run(ctx context.Context, cfg config.Config, opts options, stdout, stderr io.Writer) int {
	log := logger.New(cfg, stderr)
	slog.SetDefault(log)

	sender := service.NewEventSenderService(
		eventsource.NewFileSource(cfg.Events.Dir, log),
		schedule.NewPlanner(schedule.Endpoints{
			IncidentURL: cfg.Dispatch.IncidentEventsURL,
			ChangeURL:   cfg.Dispatch.ChangeEventsURL,
		}),
		dispatch.New(nil, dispatch.Config{
			HTTPTimeout: cfg.Dispatch.HTTPTimeout,
			RatePerSec:  cfg.Dispatch.RatePerSec,
		}, log),
		log,
	)

	params := service.SendParams{Organization: opts.org, Filename: opts.file, RoutingKey: opts.routingKey}
	enc := json.NewEncoder(stdout)

	if opts.dryRun {
		plan, err := sender.Plan(ctx, params)
		if err != nil {
			_ = enc.Encode(line{string(model.FrameError), model.ErrorFrameData{Message: err.Error()}})
			return 1
		}
		_ = enc.Encode(line{string(model.FrameSchedule), plan.ScheduleSummary})
		for _, task := range dto.NewPlannedTasks(plan.Tasks) {
			_ = enc.Encode(line{eventTask, task})
		}
		return 0
	}

	session := sender.Stream(ctx, params)
	log.InfoContext(ctx, "replay started", "run_id", session.RunID)

	failed := false
	for frame := range session.Frames {
		switch frame.Type {
		case model.FrameError:
			failed = true
		case model.FrameResult:
			if res, ok := frame.Data.(model.SendResult); ok && res.Failed() {
				failed = true
			}
		}
		_ = enc.Encode(line{string(frame.Type), frame.Data})
	}

	if failed {
		return 1
	}
	return 0
}
