package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/OpenNSW/duty/internal/schedule"
	"github.com/OpenNSW/duty/internal/schedule/drivers"
)

// SchedulePublisher stores an uploaded schedule export and imports it
type SchedulePublisher interface {
	PublishSchedule(ctx context.Context, key string, body io.Reader) (schedule.Report, error)
}

// ScheduleUploadResponse is returned by POST /api/schedules
type ScheduleUploadResponse struct {
	Key    string          `json:"key"`
	Name   string          `json:"name"`
	Size   int64           `json:"size"`
	Report schedule.Report `json:"report"`
}

// WithSchedules enables the schedule upload endpoint
func (h *Handler) WithSchedules(p SchedulePublisher) *Handler {
	h.schedules = p
	return h
}

// HandleUploadSchedule handles POST /api/schedules requests. The export is sent as the
// multipart field "file"; the optional field "key" names the stored object.
func (h *Handler) HandleUploadSchedule(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("file is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("failed to read uploaded file"))
		return
	}
	defer file.Close()

	key := strings.TrimSpace(c.PostForm("key"))
	if key == "" {
		ext := path.Ext(header.Filename)
		if ext == "" {
			ext = ".json"
		}
		key = fmt.Sprintf("uploads/%s%s", uuid.New().String(), ext)
	}

	report, err := h.schedules.PublishSchedule(c.Request.Context(), key, file)
	if err != nil {
		switch {
		case errors.Is(err, drivers.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, schedule.ErrInvalidSchedule):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "report": report})
		default:
			slog.ErrorContext(c.Request.Context(), "schedule upload failed", "key", key, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "schedule import failed", "report": report})
		}
		return
	}

	c.JSON(http.StatusCreated, ScheduleUploadResponse{
		Key:    key,
		Name:   header.Filename,
		Size:   header.Size,
		Report: report,
	})
}
