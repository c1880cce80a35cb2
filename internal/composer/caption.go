package composer

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/aliskhannn/meme-generator/internal/config"
	"github.com/aliskhannn/meme-generator/internal/gateway"
)

const captionSystem = `Ты - генератор коротких мемных подписей.
Создавай короткие смешные подписи на русском языке (2-4 слова).
Используй сарказм, самоиронию, иронию или жизненные ситуации.
Не упоминай людей, бренды, политику и не используй грубости.
Отвечай только подписью, без кавычек и пояснений.`

// CaptionComposer produces a short punchline for a scene prompt. Captioning is
// advisory: when the attempt budget is exhausted the deterministic fallback
// caption is returned instead of an error.
type CaptionComposer struct {
	gw          textGateway
	maxAttempts int
	maxLength   int
	fallback    string
}

// NewCaptionComposer creates a CaptionComposer with the given gateway and config.
func NewCaptionComposer(gw textGateway, cfg config.Caption) *CaptionComposer {
	return &CaptionComposer{
		gw:          gw,
		maxAttempts: cfg.MaxAttempts,
		maxLength:   cfg.MaxLength,
		fallback:    cfg.Fallback,
	}
}

// Compose generates the caption. The second return value reports whether the
// fallback caption was used, so the caller can log the degradation.
func (c *CaptionComposer) Compose(ctx context.Context, scenePrompt string) (string, bool) {
	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: captionSystem},
		{Role: gateway.RoleUser, Content: scenePrompt},
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		raw, err := c.gw.Complete(ctx, messages)
		if err != nil {
			continue
		}

		cleaned := cleanCaption(raw)
		if cleaned == "" || utf8.RuneCountInString(cleaned) > c.maxLength {
			continue
		}

		return cleaned, false
	}

	return c.fallback, true
}

// cleanCaption strips markup and quotation artifacts and keeps the first line.
func cleanCaption(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	if idx := strings.IndexByte(text, '\n'); idx != -1 {
		text = text[:idx]
	}

	return strings.Trim(strings.TrimSpace(text), `"'«»“”`)
}
