package handler_test

import (
	"context"

	"eventsim.app/dispatcher/internal/model"
	"eventsim.app/dispatcher/internal/service"
)

type mockEventSenderService struct {
	sendFn   func(ctx context.Context, params service.SendParams) (*service.SendOutcome, error)
	streamFn func(ctx context.Context, params service.SendParams) *service.StreamSession
	planFn   func(ctx context.Context, params service.SendParams) (*service.PlanOutcome, error)
}

func (m *mockEventSenderService) Send(ctx context.Context, params service.SendParams) (*service.SendOutcome, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, params)
	}
	return &service.SendOutcome{RunID: 1, ScheduleSummary: []model.ScheduleSummaryEntry{}, Results: []model.SendResult{}}, nil
}

func (m *mockEventSenderService) Stream(ctx context.Context, params service.SendParams) *service.StreamSession {
	if m.streamFn != nil {
		return m.streamFn(ctx, params)
	}
	frames := make(chan model.Frame, 2)
	frames <- model.ScheduleFrame([]model.ScheduleSummaryEntry{})
	frames <- model.EndFrame()
	close(frames)
	return &service.StreamSession{RunID: 1, Frames: frames}
}

func (m *mockEventSenderService) Plan(ctx context.Context, params service.SendParams) (*service.PlanOutcome, error) {
	if m.planFn != nil {
		return m.planFn(ctx, params)
	}
	return &service.PlanOutcome{RunID: 1}, nil
}
