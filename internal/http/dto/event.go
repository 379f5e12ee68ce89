package dto

import "eventsim.app/dispatcher/internal/model"

type SendEventsRequest struct {
	Organization string `json:"organization" binding:"required"`
	Filename     string `json:"filename" binding:"required"`
	RoutingKey   string `json:"routing_key" binding:"required"`
}

type StreamEventsQuery struct {
	Organization string `form:"organization" binding:"required"`
	Filename     string `form:"filename" binding:"required"`
	RoutingKey   string `form:"routing_key" binding:"required"`
}

type SendEventsResponse struct {
	ScheduleSummary []model.ScheduleSummaryEntry `json:"schedule_summary"`
	Results         []model.SendResult           `json:"results"`
}

type SendResultsResponse struct {
	Results []model.SendResult `json:"results"`
}

type PlannedTask struct {
	DelayMS      int64           `json:"delay_ms"`
	AttemptLabel string          `json:"attempt_label"`
	Type         model.EventKind `json:"type"`
	TargetURL    string          `json:"target_url"`
	Summary      string          `json:"summary"`
}

type PlanEventsResponse struct {
	ScheduleSummary []model.ScheduleSummaryEntry `json:"schedule_summary"`
	Tasks           []PlannedTask                `json:"tasks"`
}

func NewPlannedTasks(tasks []model.SendTask) []PlannedTask {
	out := make([]PlannedTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, PlannedTask{
			DelayMS:      t.Delay.Milliseconds(),
			AttemptLabel: t.Attempt,
			Type:         t.Kind,
			TargetURL:    t.TargetURL,
			Summary:      t.Summary,
		})
	}
	return out
}
