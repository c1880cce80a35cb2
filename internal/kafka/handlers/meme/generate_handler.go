package meme

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/aliskhannn/meme-generator/internal/model"
)

type service interface {
	ProcessTask(ctx context.Context, task model.Task) error
}

// GenerateHandler processes queued meme generation tasks.
type GenerateHandler struct {
	service service
}

func NewGenerateHandler(s service) *GenerateHandler {
	return &GenerateHandler{service: s}
}

func (h *GenerateHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var task model.Task
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		return fmt.Errorf("unmarshal task: %w", err)
	}

	if err := h.service.ProcessTask(ctx, task); err != nil {
		return fmt.Errorf("process task: %w", err)
	}

	return nil
}
