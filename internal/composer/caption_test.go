package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/meme-generator/internal/config"
)

const testFallback = "Когда всё пошло не так"

func newCaptionComposer(gw textGateway) *CaptionComposer {
	return NewCaptionComposer(gw, config.Caption{MaxAttempts: 2, MaxLength: 80, Fallback: testFallback})
}

func TestCaptionCompose_Success(t *testing.T) {
	gw := &fakeGateway{responses: []string{"Опять понедельник"}}
	c := newCaptionComposer(gw)

	caption, usedFallback := c.Compose(context.Background(), "a cat in an office")

	assert.Equal(t, "Опять понедельник", caption)
	assert.False(t, usedFallback)
}

func TestCaptionCompose_StripsQuotesAndKeepsFirstLine(t *testing.T) {
	gw := &fakeGateway{responses: []string{"«Снова дедлайн»\nПояснение: это шутка"}}
	c := newCaptionComposer(gw)

	caption, usedFallback := c.Compose(context.Background(), "a burning office")

	assert.Equal(t, "Снова дедлайн", caption)
	assert.False(t, usedFallback)
}

func TestCaptionCompose_RetriesOnOverlongResponse(t *testing.T) {
	gw := &fakeGateway{responses: []string{
		strings.Repeat("ха", 100),
		"Коротко и смешно",
	}}
	c := newCaptionComposer(gw)

	caption, usedFallback := c.Compose(context.Background(), "scene")

	assert.Equal(t, "Коротко и смешно", caption)
	assert.False(t, usedFallback)
	assert.Len(t, gw.calls, 2)
}

func TestCaptionCompose_FallbackOnPersistentError(t *testing.T) {
	gwErr := errors.New("connection refused")
	gw := &fakeGateway{errs: []error{gwErr, gwErr}}
	c := newCaptionComposer(gw)

	caption, usedFallback := c.Compose(context.Background(), "scene")

	assert.Equal(t, testFallback, caption)
	assert.True(t, usedFallback)
	require.Len(t, gw.calls, 2)
}

func TestCaptionCompose_FallbackOnEmptyResponses(t *testing.T) {
	gw := &fakeGateway{responses: []string{"", "   "}}
	c := newCaptionComposer(gw)

	caption, usedFallback := c.Compose(context.Background(), "scene")

	assert.Equal(t, testFallback, caption)
	assert.True(t, usedFallback)
}
