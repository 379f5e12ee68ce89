package service

import (
	"log/slog"

	"eventsim.app/dispatcher/internal/schedule"
)

type ServicesConfig struct {
	Source     EventSource
	Dispatcher Dispatcher
	Endpoints  schedule.Endpoints
	Logger     *slog.Logger
}

type Services struct {
	source     EventSource
	dispatcher Dispatcher
	planner    *schedule.Planner
	logger     *slog.Logger
}

func NewServices(cfg ServicesConfig) *Services {
	return &Services{
		source:     cfg.Source,
		dispatcher: cfg.Dispatcher,
		planner:    schedule.NewPlanner(cfg.Endpoints),
		logger:     cfg.Logger,
	}
}

func (s *Services) EventSender() EventSenderService {
	return NewEventSenderService(s.source, s.planner, s.dispatcher, s.logger)
}
