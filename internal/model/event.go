package model

import "encoding/json"

// RawEvent is one record from an event file, kept as raw JSON members so a
// change event can be re-sent with every field it carried.
type RawEvent map[string]json.RawMessage

type EventKind string

const (
	EventKindIncident EventKind = "event"
	EventKindChange   EventKind = "change"
)

type EventAction string

const (
	EventActionTrigger     EventAction = "trigger"
	EventActionAcknowledge EventAction = "acknowledge"
	EventActionResolve     EventAction = "resolve"
)

func (a EventAction) Valid() bool {
	switch a {
	case EventActionTrigger, EventActionAcknowledge, EventActionResolve:
		return true
	}
	return false
}

type RepeatRule struct {
	RepeatCount  int     `json:"repeat_count"`
	RepeatOffset float64 `json:"repeat_offset"` // seconds between repeats
}

// Event is a RawEvent after normalization: the variant is resolved and the
// timing fields are read from wherever they lived on the record.
type Event struct {
	Kind           EventKind
	Summary        string
	Action         EventAction
	ScheduleOffset float64 // seconds after dispatch start
	Repeats        []RepeatRule
	Payload        json.RawMessage
	Record         RawEvent
}

func (e Event) IsChange() bool {
	return e.Kind == EventKindChange
}

// TotalRepeats sums repeat_count over every resolved rule. Change events
// report their rules too even though the planner never repeats them.
func (e Event) TotalRepeats() int {
	total := 0
	for _, r := range e.Repeats {
		total += r.RepeatCount
	}
	return total
}

// IncidentEnvelope is the body posted to the incident events endpoint.
type IncidentEnvelope struct {
	RoutingKey  string          `json:"routing_key"`
	EventAction EventAction     `json:"event_action"`
	Payload     json.RawMessage `json:"payload"`
}
