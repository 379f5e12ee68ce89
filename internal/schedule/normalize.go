package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"eventsim.app/dispatcher/internal/model"
)

var ErrInvalidEvent = errors.New("invalid event")

const (
	// MaxDelaySeconds keeps every planned delay well inside time.Duration.
	MaxDelaySeconds int64 = 100 * 365 * 24 * 60 * 60
	// MaxRepeatsPerEvent caps the repeat sends one record can ask for.
	MaxRepeatsPerEvent = 10000
)

type timingMetadata struct {
	ScheduleOffset *float64 `json:"schedule_offset"`
}

type repeatRule struct {
	RepeatCount  *float64 `json:"repeat_count"`
	RepeatOffset *float64 `json:"repeat_offset"`
}

// Classify reports the variant of a record. Only the record's own members
// count; a routing_key nested inside payload does not make a change event.
func Classify(raw model.RawEvent) model.EventKind {
	if _, ok := raw["routing_key"]; ok {
		return model.EventKindChange
	}
	if _, ok := raw["links"]; ok {
		return model.EventKindChange
	}
	return model.EventKindIncident
}

// NormalizeAll normalizes every record, failing on the first invalid one.
func NormalizeAll(raws []model.RawEvent) ([]model.Event, error) {
	events := make([]model.Event, 0, len(raws))
	for i, raw := range raws {
		ev, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Normalize resolves the variant and the timing fields of one record.
// Timing and repeat fields nested under payload win over top-level ones.
func Normalize(raw model.RawEvent) (model.Event, error) {
	ev := model.Event{
		Kind:    Classify(raw),
		Action:  model.EventActionTrigger,
		Payload: raw["payload"],
		Record:  raw,
	}

	nested := payloadMembers(raw["payload"])

	if s, ok := nested["summary"]; ok {
		var summary string
		if err := json.Unmarshal(s, &summary); err == nil {
			ev.Summary = summary
		}
	}

	if a, ok := present(raw, "event_action"); ok {
		var action string
		if err := json.Unmarshal(a, &action); err != nil {
			return model.Event{}, fmt.Errorf("%w: event_action must be a string", ErrInvalidEvent)
		}
		if action != "" {
			ev.Action = model.EventAction(action)
		}
		if !ev.Action.Valid() {
			return model.Event{}, fmt.Errorf("%w: unknown event_action %q", ErrInvalidEvent, action)
		}
	}

	offset, err := resolveScheduleOffset(raw, nested)
	if err != nil {
		return model.Event{}, err
	}
	ev.ScheduleOffset = offset

	repeats, err := resolveRepeats(raw, nested)
	if err != nil {
		return model.Event{}, err
	}
	ev.Repeats = repeats

	if err := checkHorizon(ev); err != nil {
		return model.Event{}, err
	}

	return ev, nil
}

func resolveScheduleOffset(raw, nested model.RawEvent) (float64, error) {
	for _, source := range []model.RawEvent{nested, raw} {
		tm, ok := present(source, "timing_metadata")
		if !ok {
			continue
		}
		var timing timingMetadata
		if err := json.Unmarshal(tm, &timing); err != nil {
			return 0, fmt.Errorf("%w: timing_metadata: %v", ErrInvalidEvent, err)
		}
		if timing.ScheduleOffset == nil {
			continue
		}
		if err := checkSeconds("schedule_offset", *timing.ScheduleOffset); err != nil {
			return 0, err
		}
		return *timing.ScheduleOffset, nil
	}
	return 0, nil
}

func resolveRepeats(raw, nested model.RawEvent) ([]model.RepeatRule, error) {
	rs, ok := present(nested, "repeat_schedule")
	if !ok {
		rs, ok = present(raw, "repeat_schedule")
	}
	if !ok {
		return nil, nil
	}

	var rules []repeatRule
	if err := json.Unmarshal(rs, &rules); err != nil {
		return nil, fmt.Errorf("%w: repeat_schedule: %v", ErrInvalidEvent, err)
	}

	out := make([]model.RepeatRule, 0, len(rules))
	for i, r := range rules {
		var rule model.RepeatRule
		if r.RepeatCount != nil {
			count := *r.RepeatCount
			if count < 0 || count != math.Trunc(count) || count > MaxRepeatsPerEvent {
				return nil, fmt.Errorf("%w: repeat_schedule[%d].repeat_count must be a non-negative integer", ErrInvalidEvent, i)
			}
			rule.RepeatCount = int(count)
		}
		if r.RepeatOffset != nil {
			if err := checkSeconds(fmt.Sprintf("repeat_schedule[%d].repeat_offset", i), *r.RepeatOffset); err != nil {
				return nil, err
			}
			rule.RepeatOffset = *r.RepeatOffset
		}
		out = append(out, rule)
	}
	return out, nil
}

func checkSeconds(field string, v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a non-negative number of seconds", ErrInvalidEvent, field)
	}
	if v > float64(MaxDelaySeconds) {
		return fmt.Errorf("%w: %s exceeds %d seconds", ErrInvalidEvent, field, MaxDelaySeconds)
	}
	return nil
}

// checkHorizon bounds the repeat count and the latest delay any rule reaches.
func checkHorizon(ev model.Event) error {
	if total := ev.TotalRepeats(); total > MaxRepeatsPerEvent {
		return fmt.Errorf("%w: %d repeats exceed the limit of %d", ErrInvalidEvent, total, MaxRepeatsPerEvent)
	}
	for i, r := range ev.Repeats {
		if last := ev.ScheduleOffset + r.RepeatOffset*float64(r.RepeatCount); last > float64(MaxDelaySeconds) {
			return fmt.Errorf("%w: repeat_schedule[%d] reaches %.0f seconds, past %d", ErrInvalidEvent, i, last, MaxDelaySeconds)
		}
	}
	return nil
}

// payloadMembers returns the members of payload when it is a JSON object.
func payloadMembers(payload json.RawMessage) model.RawEvent {
	if len(payload) == 0 {
		return nil
	}
	var members model.RawEvent
	if err := json.Unmarshal(payload, &members); err != nil {
		return nil
	}
	return members
}

// present returns a member that exists and is not JSON null.
func present(m model.RawEvent, key string) (json.RawMessage, bool) {
	v, ok := m[key]
	if !ok || len(v) == 0 || string(v) == "null" {
		return nil, false
	}
	return v, true
}
