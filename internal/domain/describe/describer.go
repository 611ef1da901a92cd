// Package describe turns an image into a localized description and a ranked
// keyword list using a multimodal model.
package describe

import (
	"context"
	"fmt"
	"strings"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
)

// NoDescription is returned as the description when the model answers with
// no choices.
const NoDescription = "No description generated"

// Describer produces a DescriptionResult for encoded image bytes. Unknown
// languages fall back to the default prompt rather than failing.
type Describer interface {
	Name() string
	Describe(ctx context.Context, data []byte, mimeType, language string) (image.DescriptionResult, error)
}

var prompts = map[string]string{
	"en": "Describe this image in detail. Include what you see, the style, colors, mood, and any notable elements. Also provide 5-10 relevant keywords.",
	"zh": "详细描述这张图片。包括你看到的内容、风格、颜色、氛围以及任何值得注意的元素。同时提供5-10个相关关键词。",
	"es": "Describe esta imagen en detalle. Incluye lo que ves, el estilo, los colores, el ambiente y cualquier elemento notable. También proporciona de 5 a 10 palabras clave relevantes.",
	"fr": "Décrivez cette image en détail. Incluez ce que vous voyez, le style, les couleurs, l'ambiance et tous les éléments notables. Fournissez également 5 à 10 mots-clés pertinents.",
	"de": "Beschreiben Sie dieses Bild im Detail. Fügen Sie hinzu, was Sie sehen, den Stil, die Farben, die Stimmung und alle bemerkenswerten Elemente. Geben Sie auch 5-10 relevante Schlüsselwörter an.",
	"ja": "この画像を詳しく説明してください。見えるもの、スタイル、色、雰囲気、注目すべき要素を含めてください。また、関連するキーワードを5〜10個提供してください。",
}

// DefaultFallbackLanguage selects the prompt used for unrecognized languages.
const DefaultFallbackLanguage = "en"

// Prompt returns the instruction for language, or the fallback language's
// instruction when language is not in the table. The second result reports
// whether the fallback was used.
func Prompt(language, fallback string) (string, bool) {
	if p, ok := prompts[strings.ToLower(language)]; ok {
		return p, false
	}
	if p, ok := prompts[strings.ToLower(fallback)]; ok {
		return p, true
	}
	return prompts[DefaultFallbackLanguage], true
}

// Languages lists the languages with a dedicated prompt.
func Languages() []string {
	return []string{"en", "zh", "es", "fr", "de", "ja"}
}

// postProcessor turns raw model text into a DescriptionResult.
type postProcessor struct {
	fallback string
	keywords *KeywordExtractor
	scorer   ConfidenceScorer
}

func newPostProcessor(cfg config.DescriberConfig) postProcessor {
	fallback := cfg.FallbackLanguage
	if fallback == "" {
		fallback = DefaultFallbackLanguage
	}
	return postProcessor{
		fallback: fallback,
		keywords: NewKeywordExtractor(cfg.KeywordMinLength, cfg.KeywordLimit),
		scorer:   FixedScorer{},
	}
}

func (p postProcessor) prompt(language string) string {
	text, _ := Prompt(language, p.fallback)
	return text
}

func (p postProcessor) finish(text string) image.DescriptionResult {
	text = strings.TrimSpace(text)
	if text == "" {
		text = NoDescription
	}
	keywords := p.keywords.Extract(text)
	return image.DescriptionResult{
		Description: text,
		Keywords:    keywords,
		Confidence:  clamp(p.scorer.Score(text, keywords)),
	}
}

// upstreamError classifies a failed upstream call, embedding the status and
// body so the cause is visible to callers and logs.
func upstreamError(op, service string, status int, body string, cause error) error {
	msg := fmt.Sprintf("description service unavailable: %s returned %d", service, status)
	if status == 0 {
		msg = fmt.Sprintf("description service unavailable: %s request failed", service)
	}
	if body = strings.TrimSpace(body); body != "" {
		if len(body) > 512 {
			body = body[:512] + "..."
		}
		msg += " - " + body
	}
	if cause == nil {
		return errors.New(errors.KindDescription, op, msg)
	}
	return errors.Wrap(errors.KindDescription, op, msg, cause)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
