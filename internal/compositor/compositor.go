// Package compositor overlays a caption onto a generated image using a
// deterministic font-fit and word-wrap layout.
package compositor

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/aliskhannn/meme-generator/internal/config"
)

const (
	defaultMaxLines    = 3
	defaultMinFontSize = 16.0

	// maxFontRatio is the initial candidate font size relative to image height.
	maxFontRatio = 0.10
	// bandWidthRatio is the caption band width relative to image width.
	bandWidthRatio = 0.95
	// bandMarginRatio is the vertical margin between the band and the edge.
	bandMarginRatio = 0.03

	fontSizeStep = 2.0
	lineSpacing  = 5
	outlineWidth = 3

	ellipsis = "…"
)

// Compositor renders captions onto images. The font resource is resolved once
// at construction; a missing font fails startup, not individual requests.
type Compositor struct {
	fnt         *truetype.Font
	maxLines    int
	minFontSize float64
	topBand     bool
}

// layout is the result of the font-fit pass: a font size and the wrapped
// lines that satisfy the band constraints at that size.
type layout struct {
	fontSize float64
	lines    []string
}

// New creates a Compositor. When cfg.FontPath is empty the built-in Go
// Regular face is used; a configured path that cannot be read or parsed is a
// fatal configuration error.
func New(cfg config.Compositor) (*Compositor, error) {
	var fnt *truetype.Font
	var err error

	if cfg.FontPath == "" {
		fnt, err = truetype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in font: %w", err)
		}
	} else {
		data, readErr := os.ReadFile(cfg.FontPath)
		if readErr != nil {
			return nil, fmt.Errorf("font resource unavailable at %s: %w", cfg.FontPath, readErr)
		}
		fnt, err = truetype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("invalid font resource at %s: %w", cfg.FontPath, err)
		}
	}

	maxLines := cfg.MaxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}
	minFontSize := cfg.MinFontSize
	if minFontSize <= 0 {
		minFontSize = defaultMinFontSize
	}

	return &Compositor{
		fnt:         fnt,
		maxLines:    maxLines,
		minFontSize: minFontSize,
		topBand:     cfg.TopBand,
	}, nil
}

// Compose renders the caption onto img and returns a new image with identical
// dimensions. The layout is fully determined by the caption text and the
// image dimensions.
func (c *Compositor) Compose(img image.Image, caption string) (image.Image, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return img, nil
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	lt := c.fit(caption, width, height)

	face := truetype.NewFace(c.fnt, &truetype.Options{Size: lt.fontSize})
	defer face.Close()

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	lineHeight := metrics.Height.Ceil() + lineSpacing
	textHeight := len(lt.lines) * lineHeight

	margin := int(float64(height) * bandMarginRatio)
	yTop := height - textHeight - margin
	if c.topBand {
		yTop = margin
	}

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(face)

	for i, line := range lt.lines {
		lineWidth, _ := dc.MeasureString(line)
		x := (float64(width) - lineWidth) / 2
		y := float64(yTop + i*lineHeight + ascent)

		// Black outline, then white fill on top (meme style).
		dc.SetRGB(0, 0, 0)
		for dx := -outlineWidth; dx <= outlineWidth; dx++ {
			for dy := -outlineWidth; dy <= outlineWidth; dy++ {
				if dx != 0 || dy != 0 {
					dc.DrawString(line, x+float64(dx), y+float64(dy))
				}
			}
		}
		dc.SetRGB(1, 1, 1)
		dc.DrawString(line, x, y)
	}

	return dc.Image(), nil
}

// fit shrinks the font size from the maximum candidate until the wrapped
// caption satisfies both band constraints: every line fits the band width and
// the line count stays within the maximum. If no size fits, the caption is
// truncated at a word boundary with an ellipsis at the minimum size.
func (c *Compositor) fit(caption string, width, height int) layout {
	bandWidth := int(float64(width) * bandWidthRatio)

	maxSize := float64(height) * maxFontRatio
	if maxSize < c.minFontSize {
		maxSize = c.minFontSize
	}

	words := strings.Fields(caption)

	for size := maxSize; size >= c.minFontSize; size -= fontSizeStep {
		lines, fits := c.wrap(words, size, bandWidth)
		if fits && len(lines) <= c.maxLines {
			return layout{fontSize: size, lines: lines}
		}
	}

	return layout{
		fontSize: c.minFontSize,
		lines:    c.truncate(words, c.minFontSize, bandWidth),
	}
}

// wrap performs greedy word wrap at the given font size. Words are appended
// to the current line while the rendered width stays within the band; a word
// is never split. fits is false when a single word is wider than the band.
func (c *Compositor) wrap(words []string, size float64, bandWidth int) (lines []string, fits bool) {
	face := truetype.NewFace(c.fnt, &truetype.Options{Size: size})
	defer face.Close()

	fits = true
	var current string

	for _, word := range words {
		if c.measure(face, word) > bandWidth {
			fits = false
		}

		candidate := word
		if current != "" {
			candidate = current + " " + word
		}

		if c.measure(face, candidate) <= bandWidth {
			current = candidate
			continue
		}

		if current != "" {
			lines = append(lines, current)
		}
		current = word
	}

	if current != "" {
		lines = append(lines, current)
	}

	return lines, fits
}

// truncate builds the degraded layout: as many whole words as fit into
// maxLines lines at the given size, with an ellipsis on the last line.
func (c *Compositor) truncate(words []string, size float64, bandWidth int) []string {
	face := truetype.NewFace(c.fnt, &truetype.Options{Size: size})
	defer face.Close()

	var lines []string
	var current string

	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}

		if c.measure(face, candidate) <= bandWidth {
			current = candidate
			continue
		}

		if len(lines) == c.maxLines-1 {
			// Band is full: close the last line with an ellipsis, dropping
			// trailing words until it fits.
			current = c.ellipsize(face, current, bandWidth)
			break
		}

		if current != "" {
			lines = append(lines, current)
		}
		current = word
	}

	if current != "" {
		lines = append(lines, current)
	}

	// A single token wider than the band survives the greedy pass whole;
	// shrink it within the token so no line overflows horizontally.
	for i, line := range lines {
		if c.measure(face, line) > bandWidth {
			lines[i] = c.shrinkToken(face, line, bandWidth)
		}
	}

	return lines
}

// ellipsize appends the ellipsis marker to line, removing whole trailing
// words until the result fits the band width.
func (c *Compositor) ellipsize(face font.Face, line string, bandWidth int) string {
	words := strings.Fields(line)

	for len(words) > 0 {
		candidate := strings.Join(words, " ") + ellipsis
		if c.measure(face, candidate) <= bandWidth {
			return candidate
		}
		words = words[:len(words)-1]
	}

	return ellipsis
}

// shrinkToken trims runes from the end of an oversized token until the
// remainder plus the ellipsis fits the band width.
func (c *Compositor) shrinkToken(face font.Face, token string, bandWidth int) string {
	runes := []rune(token)

	for len(runes) > 0 {
		candidate := string(runes) + ellipsis
		if c.measure(face, candidate) <= bandWidth {
			return candidate
		}
		runes = runes[:len(runes)-1]
	}

	return ellipsis
}

func (c *Compositor) measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
