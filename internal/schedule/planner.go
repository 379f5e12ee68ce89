package schedule

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"eventsim.app/dispatcher/internal/model"
)

type Endpoints struct {
	IncidentURL string
	ChangeURL   string
}

// Planner expands normalized events into a flat list of send tasks.
type Planner struct {
	endpoints Endpoints
}

func NewPlanner(endpoints Endpoints) *Planner {
	return &Planner{endpoints: endpoints}
}

// Plan emits tasks in source order: each event's initial send followed by
// its repeats, rule by rule. Delays are offsets from dispatch start.
func (p *Planner) Plan(events []model.Event, routingKey string) ([]model.SendTask, error) {
	tasks := make([]model.SendTask, 0, len(events))
	for i, ev := range events {
		var err error
		if ev.IsChange() {
			tasks, err = p.planChange(tasks, ev, routingKey)
		} else {
			tasks, err = p.planIncident(tasks, ev, routingKey)
		}
		if err != nil {
			return nil, fmt.Errorf("planning event %d: %w", i, err)
		}
	}
	return tasks, nil
}

func (p *Planner) planChange(tasks []model.SendTask, ev model.Event, routingKey string) ([]model.SendTask, error) {
	record := make(model.RawEvent, len(ev.Record)+1)
	for k, v := range ev.Record {
		record[k] = v
	}
	key, err := json.Marshal(routingKey)
	if err != nil {
		return nil, fmt.Errorf("marshal routing key: %w", err)
	}
	record["routing_key"] = key

	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal change event: %w", err)
	}

	return append(tasks, model.SendTask{
		Delay:     secondsToDuration(ev.ScheduleOffset),
		Attempt:   model.AttemptInitial,
		Kind:      model.EventKindChange,
		TargetURL: p.endpoints.ChangeURL,
		Body:      body,
		Summary:   ev.Summary,
	}), nil
}

func (p *Planner) planIncident(tasks []model.SendTask, ev model.Event, routingKey string) ([]model.SendTask, error) {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	body, err := json.Marshal(model.IncidentEnvelope{
		RoutingKey:  routingKey,
		EventAction: ev.Action,
		Payload:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal incident envelope: %w", err)
	}

	initial := secondsToDuration(ev.ScheduleOffset)
	task := model.SendTask{
		Delay:     initial,
		Attempt:   model.AttemptInitial,
		Kind:      model.EventKindIncident,
		TargetURL: p.endpoints.IncidentURL,
		Body:      body,
		Summary:   ev.Summary,
	}
	tasks = append(tasks, task)

	for _, rule := range ev.Repeats {
		step := secondsToDuration(rule.RepeatOffset)
		for i := 1; i <= rule.RepeatCount; i++ {
			repeat := task
			repeat.Delay = initial + step*time.Duration(i)
			repeat.Attempt = fmt.Sprintf("repeat %d", i)
			tasks = append(tasks, repeat)
		}
	}
	return tasks, nil
}

// secondsToDuration rounds to whole milliseconds.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}
