// Package composer turns a user idea into the two texts a meme needs: an
// English scene prompt for the image model and a short punchline caption.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aliskhannn/meme-generator/internal/config"
	"github.com/aliskhannn/meme-generator/internal/gateway"
	"github.com/aliskhannn/meme-generator/internal/model"
)

// textGateway is the single capability the composers need from the
// text-generation service.
type textGateway interface {
	Complete(ctx context.Context, messages []gateway.Message) (string, error)
}

// ErrPromptGeneration is returned when the scene prompt could not be produced
// within the configured attempt budget.
var ErrPromptGeneration = errors.New("prompt generation failed")

const promptSystem = `You are a professional prompt engineer for Stable Diffusion specialized in creating hilarious and funny meme images.
Your task is to transform user ideas into visually entertaining, absurd, and comedic prompts.

Requirements:
- Output only the prompt text - one paragraph, no formatting, no quotes, no explanations.
- The style must be humorous, absurd, exaggerated, or ironical.
- Include details about lighting, mood, color palette, and depth of field.
- Use rendering styles that enhance comedy: "cartoon style", "anime style", "pop art", "digital art", "exaggerated proportions", "slapstick humor".
- Add comedic elements: "awkward pose", "funny expression", "over-the-top emotion", "unexpected detail", "ironic juxtaposition".
- Mention a suitable camera angle and dramatic or exaggerated lighting that enhances the humor.
- Never use markdown, colons, explanations, or any meta instructions.
- The text should be directly usable as a Stable Diffusion prompt and result in a funny, engaging image.`

// stop phrases that mark the start of meta commentary in a completion.
var promptStopPhrases = []string{"Instruction", "Explanation", "Note", "Ensure", "Remember"}

// PromptComposer produces an English scene prompt for (idea, style) with
// response validation and a bounded retry using a stricter re-prompt.
type PromptComposer struct {
	gw          textGateway
	maxAttempts int
	maxLength   int
}

// NewPromptComposer creates a PromptComposer with the given gateway and config.
func NewPromptComposer(gw textGateway, cfg config.Prompt) *PromptComposer {
	return &PromptComposer{
		gw:          gw,
		maxAttempts: cfg.MaxAttempts,
		maxLength:   cfg.MaxLength,
	}
}

// Compose generates the scene prompt. Invalid or failed responses are retried
// up to the configured attempt budget; exhaustion fails with
// ErrPromptGeneration carrying the last reason.
func (p *PromptComposer) Compose(ctx context.Context, idea string, style model.MemeStyle) (string, error) {
	var lastErr error

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		instruction := fmt.Sprintf("Describe this scene in English: %s. Style: %s", idea, style.Description)
		if attempt > 0 {
			// Stricter re-prompt after an invalid first answer.
			instruction = fmt.Sprintf(
				"Describe this scene in English: %s. Answer ONLY in English, one paragraph, no quotes, no explanations. Style: %s",
				idea, style.Description,
			)
		}

		messages := []gateway.Message{
			{Role: gateway.RoleSystem, Content: promptSystem},
			{Role: gateway.RoleUser, Content: instruction},
		}

		raw, err := p.gw.Complete(ctx, messages)
		if err != nil {
			lastErr = err
			continue
		}

		cleaned := cleanPrompt(raw)
		if err := p.validate(cleaned, instruction); err != nil {
			lastErr = err
			continue
		}

		return cleaned, nil
	}

	return "", fmt.Errorf("%w: %v", ErrPromptGeneration, lastErr)
}

// validate rejects completions that are unusable as a scene prompt.
func (p *PromptComposer) validate(prompt, instruction string) error {
	if prompt == "" {
		return errors.New("empty scene prompt")
	}
	if utf8.RuneCountInString(prompt) > p.maxLength {
		return fmt.Errorf("scene prompt exceeds %d characters", p.maxLength)
	}
	if strings.EqualFold(prompt, instruction) || strings.Contains(prompt, "Describe this scene") {
		return errors.New("scene prompt echoes the instruction")
	}
	if containsCyrillic(prompt) {
		return errors.New("scene prompt contains Cyrillic")
	}

	return nil
}

// cleanPrompt strips markdown artifacts and trailing meta commentary.
func cleanPrompt(text string) string {
	for _, phrase := range promptStopPhrases {
		if idx := strings.Index(text, phrase); idx != -1 {
			text = text[:idx]
		}
	}

	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "```", "")

	return strings.TrimSpace(text)
}

func containsCyrillic(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}

	return false
}
