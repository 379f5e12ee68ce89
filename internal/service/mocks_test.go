package service_test

import (
	"context"
	"encoding/json"
	"sync"

	"eventsim.app/dispatcher/internal/model"
)

type mockEventSource struct {
	loadFn func(ctx context.Context, organization, filename string) ([]model.RawEvent, error)
}

func (m *mockEventSource) Load(ctx context.Context, organization, filename string) ([]model.RawEvent, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, organization, filename)
	}
	return nil, nil
}

// mockDispatcher settles every task immediately, in reverse order, with the
// result produced by resultFn (202 by default).
type mockDispatcher struct {
	mu       sync.Mutex
	captured []model.SendTask
	calls    int
	resultFn func(task model.SendTask) model.SendResult
}

func (m *mockDispatcher) Dispatch(_ context.Context, tasks []model.SendTask) <-chan model.SendResult {
	m.mu.Lock()
	m.calls++
	m.captured = append(m.captured, tasks...)
	m.mu.Unlock()

	out := make(chan model.SendResult, len(tasks))
	for i := len(tasks) - 1; i >= 0; i-- {
		if m.resultFn != nil {
			out <- m.resultFn(tasks[i])
			continue
		}
		status := 202
		out <- model.SendResult{
			Summary:      tasks[i].Summary,
			Attempt:      tasks[i].Attempt,
			Type:         tasks[i].Kind,
			StatusCode:   &status,
			ResponseBody: json.RawMessage(`{"status":"success"}`),
		}
	}
	close(out)
	return out
}

func (m *mockDispatcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func records(s string) []model.RawEvent {
	var raws []model.RawEvent
	if err := json.Unmarshal([]byte(s), &raws); err != nil {
		panic(err)
	}
	return raws
}
