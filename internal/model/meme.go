package model

import (
	"time"

	"github.com/google/uuid"
)

// ErrorKind classifies a failed generation for the caller contract.
type ErrorKind string

const (
	ErrKindValidation       ErrorKind = "validation_error"
	ErrKindPromptGeneration ErrorKind = "prompt_generation_failed"
	ErrKindImageGeneration  ErrorKind = "image_generation_failed"
	ErrKindComposition      ErrorKind = "composition_error"
	ErrKindPersistence      ErrorKind = "persistence_error"
)

// Meme statuses as stored in the repository.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// MemeStyle is a named visual modifier appended to scene prompts.
type MemeStyle struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GenerationRequest captures one meme generation call. It is created once per
// request; the ID correlates log lines, artifact names, and repository rows.
type GenerationRequest struct {
	ID        uuid.UUID `json:"id"`
	Idea      string    `json:"idea"`
	Style     MemeStyle `json:"style"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationResult is the immutable outcome of one generation request.
// It is either a full success (both artifact paths set) or a failure carrying
// an error kind; never partially populated.
type GenerationResult struct {
	Success      bool          `json:"success"`
	RequestID    uuid.UUID     `json:"request_id"`
	Idea         string        `json:"idea"`
	StyleName    string        `json:"style_name,omitempty"`
	ScenePrompt  string        `json:"scene_prompt,omitempty"`
	Caption      string        `json:"caption,omitempty"`
	RawPath      string        `json:"raw_path,omitempty"`
	FinalPath    string        `json:"final_path,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	ErrorKind    ErrorKind     `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Task represents a meme generation job that will be sent to the queue.
type Task struct {
	ID    uuid.UUID `json:"id"`
	Idea  string    `json:"idea"`
	Style string    `json:"style,omitempty"` // predefined style name; empty means random
}

// Meme is the repository record for one generation request.
type Meme struct {
	ID          uuid.UUID `json:"id"`
	Idea        string    `json:"idea"`
	StyleName   string    `json:"style_name"`
	ScenePrompt string    `json:"scene_prompt"`
	Caption     string    `json:"caption"`
	RawPath     string    `json:"raw_path"`
	FinalPath   string    `json:"final_path"`
	Status      string    `json:"status"` // pending / done / failed
	ErrorKind   string    `json:"error_kind,omitempty"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
