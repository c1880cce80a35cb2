package styles

import (
	"errors"
	"math/rand"

	"github.com/aliskhannn/meme-generator/internal/model"
)

// ErrStyleNotFound is returned when a style name is not in the catalog.
var ErrStyleNotFound = errors.New("style not found")

// Catalog is a read-only registry of named visual styles. A single Catalog is
// shared by all requests; it is never mutated after construction.
type Catalog struct {
	styles []model.MemeStyle
	byName map[string]model.MemeStyle
}

// NewCatalog creates a Catalog from the given styles.
func NewCatalog(styles []model.MemeStyle) *Catalog {
	byName := make(map[string]model.MemeStyle, len(styles))
	for _, s := range styles {
		byName[s.Name] = s
	}

	return &Catalog{styles: styles, byName: byName}
}

// Default returns a Catalog with the predefined style set.
func Default() *Catalog {
	return NewCatalog(predefined)
}

// Get returns the style with the given name.
func (c *Catalog) Get(name string) (model.MemeStyle, error) {
	s, ok := c.byName[name]
	if !ok {
		return model.MemeStyle{}, ErrStyleNotFound
	}

	return s, nil
}

// Random draws a style uniformly using the provided random source.
// The source is injected so that style selection is reproducible in tests.
func (c *Catalog) Random(rnd *rand.Rand) model.MemeStyle {
	return c.styles[rnd.Intn(len(c.styles))]
}

// All returns the registered styles in registration order.
func (c *Catalog) All() []model.MemeStyle {
	out := make([]model.MemeStyle, len(c.styles))
	copy(out, c.styles)

	return out
}

var predefined = []model.MemeStyle{
	{
		Name:        "anime",
		Description: "anime style, vibrant colors, soft lighting, detailed, 4k render",
	},
	{
		Name:        "realistic",
		Description: "ultra realistic, cinematic lighting, shallow depth of field, photo style, HDR, 8k",
	},
	{
		Name:        "cartoon",
		Description: "cartoon style, exaggerated expressions, colorful, flat shading, digital illustration",
	},
	{
		Name:        "cyberpunk",
		Description: "cyberpunk, neon lights, futuristic atmosphere, dark streets, glowing reflections",
	},
	{
		Name:        "fantasy",
		Description: "fantasy art, mystical lighting, ethereal glow, highly detailed, magical realism",
	},
	{
		Name:        "oil_painting",
		Description: "oil painting, baroque composition, dramatic shadows, rich colors, textured brushstrokes",
	},
	{
		Name:        "watercolor",
		Description: "watercolor art, pastel tones, dreamy mood, soft contrast",
	},
	{
		Name:        "pixel_art",
		Description: "pixel art, retro video game vibe, limited palette, crisp edges",
	},
}
