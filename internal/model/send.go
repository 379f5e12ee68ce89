package model

import (
	"encoding/json"
	"time"
)

const AttemptInitial = "initial"

// SendTask is one outbound call: what to post, where, and how long after
// dispatch start.
type SendTask struct {
	Delay     time.Duration
	Attempt   string
	Kind      EventKind
	TargetURL string
	Body      json.RawMessage
	Summary   string
}

// SendResult is the settled outcome of a SendTask. Exactly one of
// StatusCode or Error is set.
type SendResult struct {
	Summary      string          `json:"summary"`
	Attempt      string          `json:"attempt_label"`
	Type         EventKind       `json:"type"`
	StatusCode   *int            `json:"status_code,omitempty"`
	ResponseBody json.RawMessage `json:"response_body,omitempty"`
	Error        string          `json:"error_message,omitempty"`
}

func (r SendResult) Failed() bool {
	return r.StatusCode == nil
}

type ScheduleSummaryEntry struct {
	Summary       string   `json:"summary"`
	InitialOffset float64  `json:"initial_offset"`
	TotalRepeats  int      `json:"total_repeats"`
	TotalSends    int      `json:"total_sends"`
	NextOffset    *float64 `json:"next_offset"`
}
