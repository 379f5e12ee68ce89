package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"

	"eventsim.app/dispatcher/internal/http/dto"
	"eventsim.app/dispatcher/internal/model"
	"eventsim.app/dispatcher/internal/service"
)

const RunIDHeader = "X-Dispatch-Run-Id"

type EventHandler struct {
	service service.EventSenderService
	schema  *jsonschema.Schema
}

func NewEventHandler(service service.EventSenderService) *EventHandler {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	return &EventHandler{
		service: service,
		schema:  reflector.Reflect(&model.RawEventDocument{}),
	}
}

func (h *EventHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Events endpoint is active."})
}

func (h *EventHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, h.schema)
}

// Send dispatches an event file and responds once every send has settled.
func (h *EventHandler) Send(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SendEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid send request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.service.Send(ctx, service.SendParams{
		Organization: req.Organization,
		Filename:     req.Filename,
		RoutingKey:   req.RoutingKey,
	})
	if err != nil {
		writeServiceError(c, err, "failed to send events")
		return
	}

	c.Header(RunIDHeader, strconv.FormatInt(outcome.RunID, 10))
	if resultsOnly, _ := strconv.ParseBool(c.Query("results_only")); resultsOnly {
		c.JSON(http.StatusOK, dto.SendResultsResponse{Results: outcome.Results})
		return
	}
	c.JSON(http.StatusOK, dto.SendEventsResponse{
		ScheduleSummary: outcome.ScheduleSummary,
		Results:         outcome.Results,
	})
}

// Plan previews the sends an event file would produce.
func (h *EventHandler) Plan(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SendEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.service.Plan(ctx, service.SendParams{
		Organization: req.Organization,
		Filename:     req.Filename,
		RoutingKey:   req.RoutingKey,
	})
	if err != nil {
		writeServiceError(c, err, "failed to plan events")
		return
	}

	c.Header(RunIDHeader, strconv.FormatInt(outcome.RunID, 10))
	c.JSON(http.StatusOK, dto.PlanEventsResponse{
		ScheduleSummary: outcome.ScheduleSummary,
		Tasks:           dto.NewPlannedTasks(outcome.Tasks),
	})
}

// Stream dispatches an event file and pushes each frame as server-sent
// events. A client that disconnects stops receiving frames; the sends
// already scheduled still fire.
func (h *EventHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	setSSEHeaders(c.Writer)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	var q dto.StreamEventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		slog.WarnContext(ctx, "invalid stream request", "error", err)
		c.Status(http.StatusOK)
		_ = writeFrame(c.Writer, string(model.FrameError), model.ErrorFrameData{Message: err.Error()})
		flusher.Flush()
		return
	}

	session := h.service.Stream(ctx, service.SendParams{
		Organization: q.Organization,
		Filename:     q.Filename,
		RoutingKey:   q.RoutingKey,
	})

	c.Header(RunIDHeader, strconv.FormatInt(session.RunID, 10))
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	flusher.Flush()

	clientClosed := ctx.Done()
	for {
		select {
		case frame, ok := <-session.Frames:
			if !ok {
				return
			}
			if err := writeFrame(c.Writer, string(frame.Type), frame.Data); err != nil {
				slog.ErrorContext(ctx, "failed to write stream frame", "error", err, "run_id", session.RunID)
			}
			flusher.Flush()
		case <-clientClosed:
			slog.InfoContext(ctx, "stream client disconnected, sends continue", "run_id", session.RunID)
			go drainFrames(session.Frames)
			return
		}
	}
}

func drainFrames(frames <-chan model.Frame) {
	for range frames {
	}
}

func writeServiceError(c *gin.Context, err error, fallback string) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, service.ErrMissingParams), errors.Is(err, service.ErrInvalidLocation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEventsNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidEvents):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(ctx, fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
