package meme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/meme-generator/internal/api/respond"
	"github.com/aliskhannn/meme-generator/internal/model"
	memerepo "github.com/aliskhannn/meme-generator/internal/repository/meme"
)

// service defines the interface for meme-related operations.
type service interface {
	Generate(ctx context.Context, idea string, style *model.MemeStyle) model.GenerationResult
	Enqueue(ctx context.Context, task model.Task) error
	Get(ctx context.Context, id uuid.UUID) (model.Meme, error)
	LoadImage(ctx context.Context, path string) (io.ReadCloser, error)
	Styles() []model.MemeStyle
}

// producer defines the interface for enqueueing tasks into the message broker.
type producer interface {
	Enqueue(ctx context.Context, task model.Task) error
}

// Handler provides HTTP handlers for meme-related endpoints.
// It depends on a service interface to perform the business logic.
type Handler struct {
	service  service
	producer producer
}

// NewHandler creates a new Handler with the given service and producer.
func NewHandler(s service, p producer) *Handler {
	return &Handler{service: s, producer: p}
}

// GenerateRequest represents a meme generation request sent by the client.
// Style is an optional predefined style name; StyleDescription supplies an
// ad-hoc custom style instead.
type GenerateRequest struct {
	Idea             string `json:"idea"`
	Style            string `json:"style,omitempty"`
	StyleDescription string `json:"style_description,omitempty"`
}

// resolveStyle maps the request fields onto an optional style. A nil style
// lets the pipeline draw a random one.
func (h *Handler) resolveStyle(req GenerateRequest) (*model.MemeStyle, error) {
	if req.StyleDescription != "" {
		name := req.Style
		if name == "" {
			name = "custom"
		}
		return &model.MemeStyle{Name: name, Description: req.StyleDescription}, nil
	}

	if req.Style == "" {
		return nil, nil
	}

	for _, s := range h.service.Styles() {
		if s.Name == req.Style {
			return &s, nil
		}
	}

	return nil, fmt.Errorf("unknown style: %s", req.Style)
}

// Generate handles the synchronous generation request. It runs the full
// pipeline and responds with the structured generation result.
func (h *Handler) Generate(c *ginext.Context) {
	var req GenerateRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Err(err).Msg("failed to decode generate request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	style, err := h.resolveStyle(req)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	result := h.service.Generate(c.Request.Context(), req.Idea, style)

	if !result.Success {
		status := http.StatusInternalServerError
		if result.ErrorKind == model.ErrKindValidation {
			status = http.StatusBadRequest
		}
		respond.JSON(c, status, result)
		return
	}

	respond.OK(c, result)
}

// GenerateAsync enqueues a generation task and responds immediately with the
// task id. The result can be polled via GET /api/memes/:id.
func (h *Handler) GenerateAsync(c *ginext.Context) {
	var req GenerateRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Err(err).Msg("failed to decode generate request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if req.Idea == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("idea is required"))
		return
	}

	task := model.Task{
		ID:    uuid.New(),
		Idea:  req.Idea,
		Style: req.Style,
	}

	// Register the pending record before the task is visible to workers.
	if err := h.service.Enqueue(c.Request.Context(), task); err != nil {
		zlog.Logger.Err(err).Msg("failed to register meme task")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to register task"))
		return
	}

	if err := h.producer.Enqueue(c.Request.Context(), task); err != nil {
		zlog.Logger.Err(err).Msg("failed to enqueue meme task")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to enqueue task"))
		return
	}

	respond.Accepted(c, map[string]interface{}{"id": task.ID})
}

// Get returns metadata about a generation request.
func (h *Handler) Get(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	m, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, memerepo.ErrMemeNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("meme not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to get meme")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to get meme: %v", err))
		return
	}

	respond.OK(c, m)
}

// GetImage serves the final image bytes for a completed generation request.
func (h *Handler) GetImage(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	m, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, memerepo.ErrMemeNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("meme not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to get meme")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to get meme: %v", err))
		return
	}

	if m.Status != model.StatusDone || m.FinalPath == "" {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("meme image is not ready"))
		return
	}

	reader, err := h.service.LoadImage(c.Request.Context(), m.FinalPath)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to load image")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to load image"))
		return
	}
	defer reader.Close()

	respond.PNG(c, http.StatusOK, reader)
}

// Styles returns the predefined style set.
func (h *Handler) Styles(c *ginext.Context) {
	respond.OK(c, h.service.Styles())
}

func (h *Handler) parseID(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	if idStr == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("missing id"))
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return uuid.Nil, false
	}

	return id, true
}
