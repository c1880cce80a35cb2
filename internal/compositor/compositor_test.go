package compositor

import (
	"image"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/golang/freetype/truetype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/meme-generator/internal/config"
)

func newTestCompositor(t *testing.T) *Compositor {
	t.Helper()

	c, err := New(config.Compositor{})
	require.NoError(t, err)

	return c
}

func TestNew_MissingFontFile(t *testing.T) {
	_, err := New(config.Compositor{FontPath: "/nonexistent/font.ttf"})
	assert.Error(t, err)
}

func TestCompose_PreservesDimensions(t *testing.T) {
	c := newTestCompositor(t)
	src := image.NewRGBA(image.Rect(0, 0, 512, 512))

	out, err := c.Compose(src, "Когда всё пошло не так")
	require.NoError(t, err)

	assert.Equal(t, src.Bounds().Dx(), out.Bounds().Dx())
	assert.Equal(t, src.Bounds().Dy(), out.Bounds().Dy())
}

func TestCompose_EmptyCaptionReturnsOriginal(t *testing.T) {
	c := newTestCompositor(t)
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))

	out, err := c.Compose(src, "   ")
	require.NoError(t, err)

	assert.Equal(t, image.Image(src), out)
}

func TestFit_Deterministic(t *testing.T) {
	c := newTestCompositor(t)

	first := c.fit("Когда дедлайн был вчера", 512, 512)
	second := c.fit("Когда дедлайн был вчера", 512, 512)

	assert.Equal(t, first.fontSize, second.fontSize)
	assert.Equal(t, first.lines, second.lines)
}

func TestFit_ShortCaptionSingleLine(t *testing.T) {
	c := newTestCompositor(t)

	lt := c.fit("Ой", 512, 512)

	assert.Len(t, lt.lines, 1)
	assert.Equal(t, "Ой", lt.lines[0])
}

func TestFit_NeverSplitsWords(t *testing.T) {
	c := newTestCompositor(t)
	caption := "программист смотрит на прод и тихо плачет в опенспейсе"

	lt := c.fit(caption, 512, 512)

	// Concatenating the wrapped lines must reproduce the caption words in order.
	joined := strings.Join(lt.lines, " ")
	assert.Equal(t, caption, joined)
}

func TestFit_RespectsMaxLines(t *testing.T) {
	c := newTestCompositor(t)
	caption := strings.Repeat("слово ", 40)

	lt := c.fit(caption, 512, 512)

	assert.LessOrEqual(t, len(lt.lines), c.maxLines)
}

func TestFit_TruncatesWithEllipsis(t *testing.T) {
	c := newTestCompositor(t)

	// A caption that cannot fit three lines on a tiny image must be
	// truncated at a word boundary with the ellipsis marker.
	caption := strings.Repeat("длинное слово ", 30)
	lt := c.fit(caption, 64, 64)

	require.NotEmpty(t, lt.lines)
	assert.LessOrEqual(t, len(lt.lines), c.maxLines)
	assert.Equal(t, c.minFontSize, lt.fontSize)

	last := lt.lines[len(lt.lines)-1]
	assert.True(t, strings.HasSuffix(last, ellipsis), "last line %q must end with ellipsis", last)
}

func TestFit_OversizedTokenShrunkWithEllipsis(t *testing.T) {
	c := newTestCompositor(t)

	// One unbreakable token far wider than the band on a tiny image.
	caption := "сверхдлинноесловокотороенепомещается"
	lt := c.fit(caption, 64, 64)

	require.Len(t, lt.lines, 1)
	line := lt.lines[0]

	assert.True(t, strings.HasSuffix(line, ellipsis), "line %q must end with ellipsis", line)
	assert.Less(t, utf8.RuneCountInString(line), utf8.RuneCountInString(caption))

	// The shrunken token must fit the band at the chosen size.
	face := truetype.NewFace(c.fnt, &truetype.Options{Size: lt.fontSize})
	defer face.Close()

	width := 64
	bandWidth := int(float64(width) * bandWidthRatio)
	assert.LessOrEqual(t, c.measure(face, line), bandWidth)
}

func TestCompose_TopBand(t *testing.T) {
	c, err := New(config.Compositor{TopBand: true})
	require.NoError(t, err)

	src := image.NewRGBA(image.Rect(0, 0, 256, 256))
	out, err := c.Compose(src, "сверху")
	require.NoError(t, err)

	assert.Equal(t, src.Bounds(), out.Bounds())
}
