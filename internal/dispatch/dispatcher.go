package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"eventsim.app/dispatcher/common/logger"
	"eventsim.app/dispatcher/internal/model"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 1 << 20
)

type Config struct {
	HTTPTimeout time.Duration
	RatePerSec  int // 0 disables pacing
}

// Dispatcher fires send tasks against their endpoints on a shared clock.
type Dispatcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a Dispatcher. A nil client gets a default one bounded by
// cfg.HTTPTimeout; a nil logger falls back to slog.Default().
func New(client *http.Client, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	d := &Dispatcher{
		client: client,
		logger: logger,
	}
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return d
}

// Dispatch schedules every task against one start epoch and returns a
// channel that yields each result as its task settles, in completion
// order. The channel is closed once every task has settled.
//
// Sends are detached from ctx cancellation: once dispatch starts, every
// task runs to completion even if the caller goes away. The channel is
// buffered for all results, so an abandoned reader never blocks a send.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []model.SendTask) <-chan model.SendResult {
	ctx = context.WithoutCancel(logger.WithLogFields(ctx, logger.LogFields{Component: "dispatcher.dispatch"}))
	results := make(chan model.SendResult, len(tasks))

	var (
		wg      sync.WaitGroup
		settled atomic.Int64
		failed  atomic.Int64
	)
	epoch := time.Now()

	d.logger.InfoContext(ctx, "dispatch started", "task_count", len(tasks))

	wg.Add(len(tasks))
	for _, task := range tasks {
		time.AfterFunc(time.Until(epoch.Add(task.Delay)), func() {
			defer wg.Done()
			res := d.sendSafe(ctx, task)
			if res.Failed() {
				failed.Add(1)
			}
			settled.Add(1)
			results <- res
		})
	}

	go func() {
		wg.Wait()
		close(results)
		d.logger.InfoContext(ctx, "dispatch settled",
			"task_count", len(tasks),
			"settled", settled.Load(),
			"failed", failed.Load(),
			"duration_ms", time.Since(epoch).Milliseconds())
	}()

	return results
}

// Collect blocks until the results channel is closed and returns every
// result in completion order. Never returns nil.
func Collect(results <-chan model.SendResult) []model.SendResult {
	out := make([]model.SendResult, 0, cap(results))
	for res := range results {
		out = append(out, res)
	}
	return out
}

func (d *Dispatcher) sendSafe(ctx context.Context, task model.SendTask) (res model.SendResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "panic recovered in send",
				"panic", r,
				"summary", task.Summary,
				"attempt", task.Attempt)
			res = failure(task, fmt.Sprintf("panic: %v", r))
		}
	}()
	return d.send(ctx, task)
}

func (d *Dispatcher) send(ctx context.Context, task model.SendTask) model.SendResult {
	sc := logger.StartSpan(ctx, "dispatch.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("send.attempt", task.Attempt),
			attribute.String("send.type", string(task.Kind)),
			attribute.String("url.full", task.TargetURL),
			attribute.Int64("send.delay_ms", task.Delay.Milliseconds()),
		))
	defer sc.End()
	ctx = sc.Context()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			sc.RecordError(err)
			return failure(task, err.Error())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.TargetURL, bytes.NewReader(task.Body))
	if err != nil {
		sc.RecordError(err)
		return failure(task, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		sc.RecordError(err)
		d.logger.WarnContext(ctx, "send failed",
			"error", err,
			"summary", logger.Truncate(task.Summary, 80),
			"attempt", task.Attempt)
		return failure(task, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		sc.RecordError(err)
		return failure(task, fmt.Sprintf("reading response: %v", err))
	}

	sc.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	d.logger.DebugContext(ctx, "send completed",
		"summary", logger.Truncate(task.Summary, 80),
		"attempt", task.Attempt,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	status := resp.StatusCode
	return model.SendResult{
		Summary:      task.Summary,
		Attempt:      task.Attempt,
		Type:         task.Kind,
		StatusCode:   &status,
		ResponseBody: responseBody(body),
	}
}

func failure(task model.SendTask, msg string) model.SendResult {
	return model.SendResult{
		Summary: task.Summary,
		Attempt: task.Attempt,
		Type:    task.Kind,
		Error:   msg,
	}
}

// responseBody keeps JSON bodies as-is and wraps anything else in a JSON string.
func responseBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	encoded, _ := json.Marshal(string(body))
	return encoded
}
