package model

// RawEventDocument documents the shape of one event file record. It is only
// used to publish a JSON Schema; records are decoded as RawEvent.
type RawEventDocument struct {
	RoutingKey     *string              `json:"routing_key,omitempty" jsonschema:"description=Present on change events. Overwritten with the caller's routing key on send"`
	Links          []map[string]any     `json:"links,omitempty" jsonschema:"description=Present on change events"`
	EventAction    string               `json:"event_action,omitempty" jsonschema:"enum=trigger,enum=acknowledge,enum=resolve,default=trigger"`
	Payload        EventPayloadDocument `json:"payload" jsonschema:"required"`
	TimingMetadata *TimingMetadataDoc   `json:"timing_metadata,omitempty"`
	RepeatSchedule []RepeatRuleDocument `json:"repeat_schedule,omitempty" jsonschema:"description=Ignored for change events"`
}

type EventPayloadDocument struct {
	Summary        string               `json:"summary" jsonschema:"required"`
	Source         string               `json:"source,omitempty"`
	Severity       string               `json:"severity,omitempty" jsonschema:"enum=critical,enum=error,enum=warning,enum=info"`
	CustomDetails  map[string]any       `json:"custom_details,omitempty"`
	TimingMetadata *TimingMetadataDoc   `json:"timing_metadata,omitempty" jsonschema:"description=Takes precedence over the top-level field"`
	RepeatSchedule []RepeatRuleDocument `json:"repeat_schedule,omitempty" jsonschema:"description=Takes precedence over the top-level field"`
}

type TimingMetadataDoc struct {
	ScheduleOffset float64 `json:"schedule_offset" jsonschema:"minimum=0,description=Seconds after dispatch start"`
}

type RepeatRuleDocument struct {
	RepeatCount  int     `json:"repeat_count" jsonschema:"minimum=0"`
	RepeatOffset float64 `json:"repeat_offset" jsonschema:"minimum=0,description=Seconds between repeats"`
}
