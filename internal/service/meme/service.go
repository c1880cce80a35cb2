// Package meme implements the generation pipeline: scene prompt, image,
// caption, composition, and artifact persistence for one user idea.
package meme

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/meme-generator/internal/config"
	"github.com/aliskhannn/meme-generator/internal/model"
	"github.com/aliskhannn/meme-generator/internal/styles"
)

// promptComposer produces the English scene prompt for (idea, style).
type promptComposer interface {
	Compose(ctx context.Context, idea string, style model.MemeStyle) (string, error)
}

// captionComposer produces the punchline; the bool reports fallback use.
type captionComposer interface {
	Compose(ctx context.Context, scenePrompt string) (string, bool)
}

// imageGateway renders one image for a scene prompt.
type imageGateway interface {
	Generate(ctx context.Context, prompt string) (image.Image, error)
}

// compositor overlays the caption onto the generated image.
type compositor interface {
	Compose(img image.Image, caption string) (image.Image, error)
}

// fileStorage persists and serves artifact files.
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
}

// repository records generation metadata. A nil repository disables metadata
// tracking; repository failures never fail the pipeline.
type repository interface {
	Create(ctx context.Context, m model.Meme) error
	Get(ctx context.Context, id uuid.UUID) (model.Meme, error)
	UpdateResult(ctx context.Context, m model.Meme) error
}

// Service orchestrates meme generation. All dependencies are injected; the
// only shared mutable state is the seeded random source, guarded by a mutex
// so requests may run concurrently.
type Service struct {
	catalog    *styles.Catalog
	prompt     promptComposer
	caption    captionComposer
	imageGW    imageGateway
	compositor compositor
	storage    fileStorage
	repo       repository
	log        zerolog.Logger

	llmModel       string
	outputSubdir   string
	maxIdeaLength  int
	overallTimeout time.Duration
	imageRetry     retry.Strategy

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewService creates a Service.
func NewService(
	cfg *config.Config,
	catalog *styles.Catalog,
	prompt promptComposer,
	caption captionComposer,
	imageGW imageGateway,
	comp compositor,
	storage fileStorage,
	repo repository,
	rnd *rand.Rand,
	log zerolog.Logger,
) *Service {
	return &Service{
		catalog:        catalog,
		prompt:         prompt,
		caption:        caption,
		imageGW:        imageGW,
		compositor:     comp,
		storage:        storage,
		repo:           repo,
		log:            log,
		llmModel:       cfg.LLM.Model,
		outputSubdir:   cfg.Generation.OutputSubdir,
		maxIdeaLength:  cfg.Generation.MaxIdeaLength,
		overallTimeout: cfg.Generation.OverallTimeout,
		imageRetry: retry.Strategy{
			Attempts: cfg.SD.MaxAttempts,
			Delay:    cfg.Retry.Delay,
			Backoff:  cfg.Retry.Backoff,
		},
		rnd: rnd,
	}
}

// Generate runs the full pipeline for one idea. A nil style means a uniform
// random draw from the catalog. The returned result is always complete:
// either a success with both artifact paths, or a failure with an error kind.
func (s *Service) Generate(ctx context.Context, idea string, style *model.MemeStyle) model.GenerationResult {
	id := uuid.New()

	if res, ok := s.validate(id, idea); !ok {
		return res
	}

	if s.repo != nil {
		if err := s.repo.Create(ctx, model.Meme{
			ID:        id,
			Idea:      strings.TrimSpace(idea),
			Status:    model.StatusPending,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			s.log.Error().Err(err).Str("request_id", id.String()).Msg("failed to create meme record")
		}
	}

	res := s.generate(ctx, id, idea, style)
	s.record(ctx, res)

	return res
}

// ProcessTask runs the pipeline for a queued task. The repository row was
// created when the task was enqueued; an unknown style name falls back to a
// random draw, matching direct calls.
func (s *Service) ProcessTask(ctx context.Context, task model.Task) error {
	var style *model.MemeStyle
	if task.Style != "" {
		st, err := s.catalog.Get(task.Style)
		if err != nil {
			s.log.Warn().
				Str("request_id", task.ID.String()).
				Str("style", task.Style).
				Msg("unknown style in task, drawing a random one")
		} else {
			style = &st
		}
	}

	res := s.generate(ctx, task.ID, task.Idea, style)
	s.record(ctx, res)

	return nil
}

// Enqueue registers a pending meme record for a task about to be queued.
func (s *Service) Enqueue(ctx context.Context, task model.Task) error {
	if s.repo == nil {
		return nil
	}

	return s.repo.Create(ctx, model.Meme{
		ID:        task.ID,
		Idea:      task.Idea,
		StyleName: task.Style,
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	})
}

// Get returns the metadata record for a request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Meme, error) {
	if s.repo == nil {
		return model.Meme{}, errors.New("metadata repository is not configured")
	}

	return s.repo.Get(ctx, id)
}

// LoadImage streams an artifact file from storage.
func (s *Service) LoadImage(ctx context.Context, path string) (io.ReadCloser, error) {
	return s.storage.Load(ctx, path)
}

// Styles returns the predefined style set.
func (s *Service) Styles() []model.MemeStyle {
	return s.catalog.All()
}

// validate checks the idea before any external call is made.
func (s *Service) validate(id uuid.UUID, idea string) (model.GenerationResult, bool) {
	trimmed := strings.TrimSpace(idea)

	var msg string
	switch {
	case trimmed == "":
		msg = "idea must not be empty"
	case utf8.RuneCountInString(trimmed) > s.maxIdeaLength:
		msg = fmt.Sprintf("idea exceeds %d characters", s.maxIdeaLength)
	default:
		return model.GenerationResult{}, true
	}

	return model.GenerationResult{
		Success:      false,
		RequestID:    id,
		Idea:         idea,
		ErrorKind:    model.ErrKindValidation,
		ErrorMessage: msg,
	}, false
}

// generate runs the pipeline stages in sequence under the outer deadline.
func (s *Service) generate(ctx context.Context, id uuid.UUID, idea string, style *model.MemeStyle) model.GenerationResult {
	start := time.Now()

	if res, ok := s.validate(id, idea); !ok {
		return res
	}
	idea = strings.TrimSpace(idea)

	ctx, cancel := context.WithTimeout(ctx, s.overallTimeout)
	defer cancel()

	resolved := s.resolveStyle(style)

	s.log.Info().
		Str("request_id", id.String()).
		Str("idea", idea).
		Str("style", resolved.Name).
		Msg("starting meme generation")

	fail := func(stage string, kind model.ErrorKind, err error) model.GenerationResult {
		elapsed := time.Since(start)

		s.log.Error().
			Err(err).
			Str("request_id", id.String()).
			Str("model", s.llmModel).
			Str("stage", stage).
			Str("error_kind", string(kind)).
			Float64("elapsed_seconds", elapsed.Seconds()).
			Msg("meme generation failed")

		return model.GenerationResult{
			Success:      false,
			RequestID:    id,
			Idea:         idea,
			StyleName:    resolved.Name,
			Elapsed:      elapsed,
			ErrorKind:    kind,
			ErrorMessage: err.Error(),
		}
	}

	// 1. Scene prompt.
	promptStart := time.Now()
	scenePrompt, err := s.prompt.Compose(ctx, idea, resolved)
	if err != nil {
		return fail("prompt", model.ErrKindPromptGeneration, err)
	}
	promptDur := time.Since(promptStart)

	// 2. Image generation. Retries here are expensive, so the budget is small.
	imageStart := time.Now()
	var raw image.Image
	err = retry.Do(func() error {
		var genErr error
		raw, genErr = s.imageGW.Generate(ctx, scenePrompt)
		return genErr
	}, s.imageRetry)
	if err != nil {
		return fail("image", model.ErrKindImageGeneration, err)
	}
	imageDur := time.Since(imageStart)

	// 3. Caption. Never blocks delivery: a failure degrades to the fallback.
	captionStart := time.Now()
	caption, usedFallback := s.caption.Compose(ctx, scenePrompt)
	if usedFallback {
		s.log.Warn().
			Str("request_id", id.String()).
			Str("caption", caption).
			Msg("caption generation failed, using fallback caption")
	}
	captionDur := time.Since(captionStart)

	// 4. Composition.
	final, err := s.compositor.Compose(raw, caption)
	if err != nil {
		return fail("composite", model.ErrKindComposition, err)
	}

	// 5. Persistence. Success requires both artifacts durably written.
	rawPath, err := s.saveImage(ctx, raw, s.filename(start, id, "raw"))
	if err != nil {
		return fail("persist", model.ErrKindPersistence, err)
	}
	finalPath, err := s.saveImage(ctx, final, s.filename(start, id, "final"))
	if err != nil {
		return fail("persist", model.ErrKindPersistence, err)
	}

	elapsed := time.Since(start)

	s.log.Info().
		Str("request_id", id.String()).
		Str("model", s.llmModel).
		Str("idea", idea).
		Str("style", resolved.Name).
		Str("scene_prompt", scenePrompt).
		Str("caption", caption).
		Str("raw_file", rawPath).
		Str("final_file", finalPath).
		Dur("prompt_stage", promptDur).
		Dur("image_stage", imageDur).
		Dur("caption_stage", captionDur).
		Float64("elapsed_seconds", elapsed.Seconds()).
		Msg("meme generation completed")

	return model.GenerationResult{
		Success:     true,
		RequestID:   id,
		Idea:        idea,
		StyleName:   resolved.Name,
		ScenePrompt: scenePrompt,
		Caption:     caption,
		RawPath:     rawPath,
		FinalPath:   finalPath,
		Elapsed:     elapsed,
	}
}

// record mirrors the result into the metadata repository.
func (s *Service) record(ctx context.Context, res model.GenerationResult) {
	if s.repo == nil {
		return
	}

	status := model.StatusDone
	if !res.Success {
		status = model.StatusFailed
	}

	m := model.Meme{
		ID:          res.RequestID,
		Idea:        res.Idea,
		StyleName:   res.StyleName,
		ScenePrompt: res.ScenePrompt,
		Caption:     res.Caption,
		RawPath:     res.RawPath,
		FinalPath:   res.FinalPath,
		Status:      status,
		ErrorKind:   string(res.ErrorKind),
		ElapsedMS:   res.Elapsed.Milliseconds(),
	}

	if err := s.repo.UpdateResult(ctx, m); err != nil {
		s.log.Error().Err(err).Str("request_id", res.RequestID.String()).Msg("failed to record meme result")
	}
}

func (s *Service) resolveStyle(style *model.MemeStyle) model.MemeStyle {
	if style != nil {
		return *style
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.catalog.Random(s.rnd)
}

// saveImage encodes the image as PNG and writes it to storage.
func (s *Service) saveImage(ctx context.Context, img image.Image, filename string) (string, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	path, err := s.storage.Save(ctx, s.outputSubdir, filename, buf)
	if err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	return path, nil
}

// filename builds a unique artifact name from the request start time and the
// truncated correlation id, so retried requests never collide.
func (s *Service) filename(start time.Time, id uuid.UUID, suffix string) string {
	ts := start.UTC().Format("20060102_150405")
	short := strings.ReplaceAll(id.String(), "-", "")[:8]

	return fmt.Sprintf("meme_%s_%s_%s.png", ts, short, suffix)
}
