package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mealvault/mealvault/internal/extraction"
)

var ocrLanguages = []string{"en", "es", "fr", "de", "it", "pt", "nl", "ja", "zh", "ko"}

const ocrSystemPrompt = `You transcribe text from photos of recipes: cookbook pages, recipe cards and handwritten notes.
Return a JSON object {"text": string, "confidence": number, "language": string}.
"text" is the transcription with one line per printed line, preserving headings and list order.
"confidence" is your certainty from 0 to 100 that the transcription is accurate.
"language" is the ISO 639-1 code of the text. Never invent text that is not visible.`

// OCREngine recognizes text in images with a vision model.
type OCREngine struct {
	client *Client
}

// NewOCREngine creates a vision-backed image text engine.
func NewOCREngine(client *Client) *OCREngine {
	return &OCREngine{client: client}
}

// SupportedLanguages lists the language hints the engine accepts.
func (e *OCREngine) SupportedLanguages() []string {
	return slices.Clone(ocrLanguages)
}

// ExtractText sends the image inline as a data URI.
func (e *OCREngine) ExtractText(ctx context.Context, image []byte, opts extraction.OCROptions) (*extraction.OCRResult, error) {
	start := time.Now()

	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		return nil, &extraction.Error{Kind: extraction.KindInvalidInput, Message: fmt.Sprintf("unsupported image type %q", mime)}
	}
	dataURI := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: ocrSystemPrompt},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: ocrPrompt(opts)},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURI,
					Detail: openai.ImageURLDetailHigh,
				}},
			},
		},
	}

	out, err := e.client.complete(ctx, e.client.config.VisionModel, "ocr", messages)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		Language   string  `json:"language"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, &extraction.Error{Kind: extraction.KindInsufficientData, Message: "unreadable OCR response", Err: err}
	}

	lang := parsed.Language
	if lang == "" {
		lang = opts.Language
	}
	return &extraction.OCRResult{
		Text:             strings.TrimSpace(parsed.Text),
		Confidence:       min(max(parsed.Confidence, 0), 100),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Language:         lang,
	}, nil
}

// ocrPrompt turns the preprocessing options into hints; the model sees the
// original pixels either way.
func ocrPrompt(opts extraction.OCROptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcribe the recipe in this image. Expected language: %s.", opts.Language)
	if opts.Grayscale || opts.EnhanceContrast {
		b.WriteString(" The photo may be faded or low contrast; read faint text carefully.")
	}
	if opts.Deskew {
		b.WriteString(" The page may be rotated or photographed at an angle.")
	}
	return b.String()
}
