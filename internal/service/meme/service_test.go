package meme

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/meme-generator/internal/config"
	"github.com/aliskhannn/meme-generator/internal/gateway"
	"github.com/aliskhannn/meme-generator/internal/model"
	"github.com/aliskhannn/meme-generator/internal/storage/file"
	"github.com/aliskhannn/meme-generator/internal/styles"
)

type stubPrompt struct {
	prompt     string
	err        error
	blockOnCtx bool // wait for cancellation like a hung gateway call
	calls      int
}

func (s *stubPrompt) Compose(ctx context.Context, _ string, _ model.MemeStyle) (string, error) {
	s.calls++
	if s.blockOnCtx {
		<-ctx.Done()
		return "", gateway.Classify(ctx.Err())
	}
	return s.prompt, s.err
}

type stubCaption struct {
	caption      string
	usedFallback bool
}

func (s *stubCaption) Compose(_ context.Context, _ string) (string, bool) {
	return s.caption, s.usedFallback
}

type stubImageGateway struct {
	img      image.Image
	err      error
	failures int // fail this many leading calls; 0 with err set means always fail
	calls    int
}

func (s *stubImageGateway) Generate(_ context.Context, _ string) (image.Image, error) {
	s.calls++
	if s.err != nil && (s.failures == 0 || s.calls <= s.failures) {
		return nil, s.err
	}
	return s.img, nil
}

type stubCompositor struct {
	err error
}

func (s *stubCompositor) Compose(img image.Image, _ string) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return img, nil
}

// memoryRepo records repository calls in memory.
type memoryRepo struct {
	created []model.Meme
	updated []model.Meme
}

func (r *memoryRepo) Create(_ context.Context, m model.Meme) error {
	r.created = append(r.created, m)
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id uuid.UUID) (model.Meme, error) {
	for i := len(r.updated) - 1; i >= 0; i-- {
		if r.updated[i].ID == id {
			return r.updated[i], nil
		}
	}
	for _, m := range r.created {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Meme{}, fmt.Errorf("meme not found")
}

func (r *memoryRepo) UpdateResult(_ context.Context, m model.Meme) error {
	r.updated = append(r.updated, m)
	return nil
}

type deps struct {
	prompt         *stubPrompt
	caption        *stubCaption
	imageGW        *stubImageGateway
	compositor     *stubCompositor
	repo           *memoryRepo
	baseDir        string
	overallTimeout time.Duration
}

func newTestService(t *testing.T, d *deps) *Service {
	t.Helper()

	if d.overallTimeout == 0 {
		d.overallTimeout = 5 * time.Second
	}

	cfg := &config.Config{
		LLM: config.LLM{Model: "llama3.2:3b"},
		SD:  config.SD{MaxAttempts: 2},
		Generation: config.Generation{
			OverallTimeout: d.overallTimeout,
			OutputSubdir:   "memes",
			MaxIdeaLength:  200,
		},
		Retry: config.Retry{Attempts: 2, Delay: time.Millisecond, Backoff: 1},
	}

	if d.baseDir == "" {
		d.baseDir = t.TempDir()
	}
	store := file.NewStorage(d.baseDir)

	return NewService(
		cfg,
		styles.Default(),
		d.prompt,
		d.caption,
		d.imageGW,
		d.compositor,
		store,
		d.repo,
		rand.New(rand.NewSource(1)),
		zerolog.Nop(),
	)
}

func happyDeps() *deps {
	return &deps{
		prompt:     &stubPrompt{prompt: "a cat in an office, cartoon style"},
		caption:    &stubCaption{caption: "Опять понедельник"},
		imageGW:    &stubImageGateway{img: image.NewRGBA(image.Rect(0, 0, 32, 32))},
		compositor: &stubCompositor{},
		repo:       &memoryRepo{},
	}
}

func TestGenerate_Success(t *testing.T) {
	d := happyDeps()
	s := newTestService(t, d)

	res := s.Generate(context.Background(), "cat at work", nil)

	require.True(t, res.Success, "error: %s", res.ErrorMessage)
	assert.Equal(t, "a cat in an office, cartoon style", res.ScenePrompt)
	assert.Equal(t, "Опять понедельник", res.Caption)
	assert.NotEmpty(t, res.StyleName)
	assert.NotEqual(t, uuid.Nil, res.RequestID)

	// Both artifacts must exist on disk.
	for _, p := range []string{res.RawPath, res.FinalPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	assert.Contains(t, filepath.Base(res.RawPath), "_raw.png")
	assert.Contains(t, filepath.Base(res.FinalPath), "_final.png")

	// The repository sees a pending create followed by a done update.
	require.Len(t, d.repo.created, 1)
	require.Len(t, d.repo.updated, 1)
	assert.Equal(t, model.StatusPending, d.repo.created[0].Status)
	assert.Equal(t, model.StatusDone, d.repo.updated[0].Status)
}

func TestGenerate_EmptyIdea(t *testing.T) {
	d := happyDeps()
	s := newTestService(t, d)

	res := s.Generate(context.Background(), "   ", nil)

	assert.False(t, res.Success)
	assert.Equal(t, model.ErrKindValidation, res.ErrorKind)
	assert.Zero(t, d.prompt.calls, "no external call on validation failure")
	assert.Zero(t, d.imageGW.calls)
	assert.Empty(t, d.repo.created)
}

func TestGenerate_OversizedIdea(t *testing.T) {
	d := happyDeps()
	s := newTestService(t, d)

	res := s.Generate(context.Background(), strings.Repeat("ы", 201), nil)

	assert.False(t, res.Success)
	assert.Equal(t, model.ErrKindValidation, res.ErrorKind)
	assert.Zero(t, d.prompt.calls)
}

func TestGenerate_PromptFailure(t *testing.T) {
	d := happyDeps()
	d.prompt = &stubPrompt{err: fmt.Errorf("prompt generation failed")}
	s := newTestService(t, d)

	res := s.Generate(context.Background(), "cat", nil)

	assert.False(t, res.Success)
	assert.Equal(t, model.ErrKindPromptGeneration, res.ErrorKind)
	assert.Zero(t, d.imageGW.calls, "image stage must not run after prompt failure")

	require.Len(t, d.repo.updated, 1)
	assert.Equal(t, model.StatusFailed, d.repo.updated[0].Status)
	assert.Equal(t, string(model.ErrKindPromptGeneration), d.repo.updated[0].ErrorKind)
}

func TestGenerate_ImageFailureExhaustsRetries(t *testing.T) {
	d := happyDeps()
	d.imageGW = &stubImageGateway{err: fmt.Errorf("%w: no route to host", gateway.ErrUnavailable)}
	s := newTestService(t, d)

	res := s.Generate(context.Background(), "cat", nil)

	assert.False(t, res.Success)
	assert.Equal(t, model.ErrKindImageGeneration, res.ErrorKind)
	assert.Equal(t, 2, d.imageGW.calls, "image stage retries up to the attempt budget")

	// No artifacts on failure.
	entries, err := os.ReadDir(d.baseDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerate_ImageFailureThenSuccess(t *testing.T) {
	d := happyDeps()
	d.imageGW = &stubImageGateway{
		img:      image.NewRGBA(image.Rect(0, 0, 32, 32)),
		err:      fmt.Errorf("%w: no route to host", gateway.ErrUnavailable),
		failures: 1,
	}
	s := newTestService(t, d)

	res := s.Generate(context.Background(), "cat", nil)

	require.True(t, res.Success, "one failed attempt within the budget must not fail the pipeline: %s", res.ErrorMessage)
	assert.Equal(t, 2, d.imageGW.calls)

	for _, p := range []string{res.RawPath, res.FinalPath} {
		_, err := os.Stat(p)
		require.NoError(t, err)
	}
}

func TestGenerate_OuterDeadlineAbandonsPipeline(t *testing.T) {
	d := happyDeps()
	d.prompt = &stubPrompt{blockOnCtx: true}
	d.overallTimeout = 50 * time.Millisecond
	s := newTestService(t, d)

	start := time.Now()
	res := s.Generate(context.Background(), "cat", nil)

	assert.False(t, res.Success)
	assert.Equal(t, model.ErrKindPromptGeneration, res.ErrorKind)
	assert.Contains(t, res.ErrorMessage, "timed out")
	assert.Zero(t, d.imageGW.calls, "later stages must not run after the deadline")
	assert.Less(t, time.Since(start), time.Second, "generation must return promptly after expiry")
}

func TestGenerate_CompositionFailure(t *testing.T) {
	d := happyDeps()
	d.compositor = &stubCompositor{err: fmt.Errorf("draw failed")}
	s := newTestService(t, d)

	res := s.Generate(context.Background(), "cat", nil)

	assert.False(t, res.Success)
	assert.Equal(t, model.ErrKindComposition, res.ErrorKind)
}

func TestGenerate_CaptionFallbackStillSucceeds(t *testing.T) {
	d := happyDeps()
	d.caption = &stubCaption{caption: "Когда всё пошло не так", usedFallback: true}
	s := newTestService(t, d)

	res := s.Generate(context.Background(), "cat", nil)

	require.True(t, res.Success)
	assert.Equal(t, "Когда всё пошло не так", res.Caption)
}

func TestGenerate_ExplicitStyle(t *testing.T) {
	d := happyDeps()
	s := newTestService(t, d)

	style := model.MemeStyle{Name: "cyberpunk", Description: "cyberpunk, neon lights"}
	res := s.Generate(context.Background(), "cat", &style)

	require.True(t, res.Success)
	assert.Equal(t, "cyberpunk", res.StyleName)
}

func TestGenerate_RandomStyleReproducible(t *testing.T) {
	d1 := happyDeps()
	d2 := happyDeps()
	s1 := newTestService(t, d1)
	s2 := newTestService(t, d2)

	r1 := s1.Generate(context.Background(), "cat", nil)
	r2 := s2.Generate(context.Background(), "cat", nil)

	require.True(t, r1.Success)
	require.True(t, r2.Success)
	assert.Equal(t, r1.StyleName, r2.StyleName, "same seed draws the same style")
}

func TestProcessTask_UnknownStyleFallsBackToRandom(t *testing.T) {
	d := happyDeps()
	s := newTestService(t, d)

	task := model.Task{ID: uuid.New(), Idea: "cat", Style: "vaporwave"}
	require.NoError(t, s.ProcessTask(context.Background(), task))

	require.Len(t, d.repo.updated, 1)
	updated := d.repo.updated[0]
	assert.Equal(t, task.ID, updated.ID)
	assert.Equal(t, model.StatusDone, updated.Status)
	assert.NotEqual(t, "vaporwave", updated.StyleName)
}

func TestEnqueueAndGet(t *testing.T) {
	d := happyDeps()
	s := newTestService(t, d)

	task := model.Task{ID: uuid.New(), Idea: "cat", Style: "anime"}
	require.NoError(t, s.Enqueue(context.Background(), task))

	m, err := s.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, m.Status)
	assert.Equal(t, "anime", m.StyleName)
}

func TestFilename_Format(t *testing.T) {
	d := happyDeps()
	s := newTestService(t, d)

	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	start := time.Date(2026, 8, 24, 12, 30, 45, 0, time.UTC)

	name := s.filename(start, id, "raw")
	assert.Equal(t, "meme_20260824_123045_6ba7b810_raw.png", name)
}
