package model

type FrameType string

const (
	FrameSchedule FrameType = "schedule"
	FrameResult   FrameType = "result"
	FrameEnd      FrameType = "end"
	FrameError    FrameType = "error"
)

// Frame is one message of a streaming send session.
type Frame struct {
	Type FrameType
	Data any
}

type ErrorFrameData struct {
	Message string `json:"message"`
}

func ScheduleFrame(summary []ScheduleSummaryEntry) Frame {
	return Frame{Type: FrameSchedule, Data: summary}
}

func ResultFrame(result SendResult) Frame {
	return Frame{Type: FrameResult, Data: result}
}

func EndFrame() Frame {
	return Frame{Type: FrameEnd, Data: struct{}{}}
}

func ErrorFrame(err error) Frame {
	return Frame{Type: FrameError, Data: ErrorFrameData{Message: err.Error()}}
}
