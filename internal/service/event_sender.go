package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventsim.app/dispatcher/common/id"
	"eventsim.app/dispatcher/common/logger"
	"eventsim.app/dispatcher/internal/dispatch"
	"eventsim.app/dispatcher/internal/eventsource"
	"eventsim.app/dispatcher/internal/model"
	"eventsim.app/dispatcher/internal/schedule"
)

var (
	ErrMissingParams   = errors.New("organization, filename, and routing_key are required")
	ErrEventsNotFound  = errors.New("event file not found")
	ErrInvalidEvents   = errors.New("invalid events")
	ErrInvalidLocation = errors.New("invalid organization or filename")
)

// EventSource supplies the raw records of one event file.
type EventSource interface {
	Load(ctx context.Context, organization, filename string) ([]model.RawEvent, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, tasks []model.SendTask) <-chan model.SendResult
}

type SendParams struct {
	Organization string
	Filename     string
	RoutingKey   string
}

type SendOutcome struct {
	RunID           int64
	ScheduleSummary []model.ScheduleSummaryEntry
	Results         []model.SendResult
}

type PlanOutcome struct {
	RunID           int64
	ScheduleSummary []model.ScheduleSummaryEntry
	Tasks           []model.SendTask
}

// StreamSession is a live send run. Frames yields schedule, then one result
// per task as it settles, then end; or a single error frame. It is closed
// after the last frame and must be drained by the caller.
type StreamSession struct {
	RunID  int64
	Frames <-chan model.Frame
}

type EventSenderService interface {
	Send(ctx context.Context, params SendParams) (*SendOutcome, error)
	Stream(ctx context.Context, params SendParams) *StreamSession
	Plan(ctx context.Context, params SendParams) (*PlanOutcome, error)
}

type eventSenderService struct {
	source     EventSource
	planner    *schedule.Planner
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewEventSenderService(source EventSource, planner *schedule.Planner, dispatcher Dispatcher, logger *slog.Logger) EventSenderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventSenderService{
		source:     source,
		planner:    planner,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

type preparedRun struct {
	summary []model.ScheduleSummaryEntry
	tasks   []model.SendTask
}

// Send dispatches every task and waits for all of them to settle.
func (s *eventSenderService) Send(ctx context.Context, params SendParams) (*SendOutcome, error) {
	runID := id.New()
	ctx = withRunFields(ctx, runID, params)

	run, err := s.prepare(ctx, params)
	if err != nil {
		return nil, err
	}

	results := dispatch.Collect(s.dispatcher.Dispatch(ctx, run.tasks))

	s.logger.InfoContext(ctx, "send run completed",
		"task_count", len(run.tasks),
		"failed", countFailed(results),
		"elapsed", time.Since(id.StartedAt(runID)))
	return &SendOutcome{
		RunID:           runID,
		ScheduleSummary: run.summary,
		Results:         results,
	}, nil
}

func (s *eventSenderService) Stream(ctx context.Context, params SendParams) *StreamSession {
	runID := id.New()
	ctx = withRunFields(ctx, runID, params)
	frames := make(chan model.Frame, 16)

	go func() {
		defer close(frames)

		run, err := s.prepare(ctx, params)
		if err != nil {
			s.logger.WarnContext(ctx, "stream run aborted before dispatch", "error", err)
			frames <- model.ErrorFrame(err)
			return
		}

		frames <- model.ScheduleFrame(run.summary)

		failed := 0
		for res := range s.dispatcher.Dispatch(ctx, run.tasks) {
			if res.Failed() {
				failed++
			}
			frames <- model.ResultFrame(res)
		}

		frames <- model.EndFrame()
		s.logger.InfoContext(ctx, "stream run completed",
			"task_count", len(run.tasks),
			"failed", failed,
			"elapsed", time.Since(id.StartedAt(runID)))
	}()

	return &StreamSession{RunID: runID, Frames: frames}
}

// Plan resolves the schedule without sending anything.
func (s *eventSenderService) Plan(ctx context.Context, params SendParams) (*PlanOutcome, error) {
	runID := id.New()
	ctx = withRunFields(ctx, runID, params)

	run, err := s.prepare(ctx, params)
	if err != nil {
		return nil, err
	}
	return &PlanOutcome{
		RunID:           runID,
		ScheduleSummary: run.summary,
		Tasks:           run.tasks,
	}, nil
}

func (s *eventSenderService) prepare(ctx context.Context, params SendParams) (*preparedRun, error) {
	if params.Organization == "" || params.Filename == "" || params.RoutingKey == "" {
		return nil, ErrMissingParams
	}

	raws, err := s.source.Load(ctx, params.Organization, params.Filename)
	if err != nil {
		switch {
		case errors.Is(err, eventsource.ErrEventFileNotFound):
			return nil, fmt.Errorf("%w: %s/%s", ErrEventsNotFound, params.Organization, params.Filename)
		case errors.Is(err, eventsource.ErrInvalidPath):
			return nil, fmt.Errorf("%w", ErrInvalidLocation)
		case errors.Is(err, eventsource.ErrInvalidEventFile):
			return nil, fmt.Errorf("%w: %w", ErrInvalidEvents, err)
		}
		return nil, fmt.Errorf("loading events: %w", err)
	}

	events, err := schedule.NormalizeAll(raws)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvents, err)
	}

	tasks, err := s.planner.Plan(events, params.RoutingKey)
	if err != nil {
		return nil, fmt.Errorf("planning sends: %w", err)
	}

	s.logger.DebugContext(ctx, "send run planned", "event_count", len(events), "task_count", len(tasks))
	return &preparedRun{
		summary: schedule.Summarize(events),
		tasks:   tasks,
	}, nil
}

func withRunFields(ctx context.Context, runID int64, params SendParams) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{
		RunID:        logger.Ptr(runID),
		Organization: logger.Ptr(params.Organization),
		Filename:     logger.Ptr(params.Filename),
		Component:    "service.event_sender",
	})
}

func countFailed(results []model.SendResult) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
