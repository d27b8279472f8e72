package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mealvault/mealvault/internal/extraction"
)

type stubChat struct {
	content string
	err     error
	got     openai.ChatCompletionRequest
}

func (s *stubChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.got = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s.content}}},
	}, nil
}

func newTestClient(chat *stubChat) *Client {
	return NewClientWith(chat, Config{Model: "text-model", VisionModel: "vision-model"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestOCREngineExtractText(t *testing.T) {
	chat := &stubChat{content: `{"text": "  Grandma's Scones\nFlour 2 cups  ", "confidence": 120, "language": "en"}`}
	engine := NewOCREngine(newTestClient(chat))

	res, err := engine.ExtractText(context.Background(), pngHeader, extraction.OCROptions{Language: "en", Deskew: true})
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if res.Text != "Grandma's Scones\nFlour 2 cups" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Confidence != 100 {
		t.Errorf("Confidence = %v, want clamped to 100", res.Confidence)
	}

	if chat.got.Model != "vision-model" {
		t.Errorf("model = %q, want vision-model", chat.got.Model)
	}
	parts := chat.got.Messages[1].MultiContent
	if len(parts) != 2 || parts[1].ImageURL == nil {
		t.Fatalf("user message parts = %+v", parts)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image url = %.40s", parts[1].ImageURL.URL)
	}
	if !strings.Contains(parts[0].Text, "angle") {
		t.Errorf("deskew hint missing from prompt: %q", parts[0].Text)
	}
}

func TestOCREngineRejectsNonImage(t *testing.T) {
	engine := NewOCREngine(newTestClient(&stubChat{}))
	_, err := engine.ExtractText(context.Background(), []byte("just some text"), extraction.OCROptions{Language: "en"})
	if extraction.KindOf(err) != extraction.KindInvalidInput {
		t.Errorf("kind = %s, want INVALID_INPUT", extraction.KindOf(err))
	}
}

func TestOCREngineSupportedLanguages(t *testing.T) {
	engine := NewOCREngine(newTestClient(&stubChat{}))
	langs := engine.SupportedLanguages()
	langs[0] = "xx"
	if engine.SupportedLanguages()[0] != "en" {
		t.Error("SupportedLanguages() exposes internal slice")
	}
}

func TestStructurerScrapeText(t *testing.T) {
	chat := &stubChat{content: "```json\n" + `{
		"title": "Lemon Bars",
		"ingredients": ["1 cup flour", "2 lemons"],
		"instructions": ["Mix.", "Bake 25 minutes."],
		"prepTime": "15 minutes",
		"cookTime": "",
		"totalTime": "40 minutes",
		"servings": "12",
		"imageUrls": []
	}` + "\n```"}
	s := NewStructurer(newTestClient(chat))

	p, err := s.ScrapeText(context.Background(), "lemon bars from aunt sue...", map[string]string{"subject": "Fwd: lemon bars"})
	if err != nil {
		t.Fatalf("ScrapeText() error = %v", err)
	}
	if p["title"] != "Lemon Bars" || p["totalTime"] != "40 minutes" || p["servings"] != "12" {
		t.Errorf("payload = %v", p)
	}
	if _, ok := p["cookTime"]; ok {
		t.Error("empty cookTime should be omitted")
	}
	if ingredients, _ := p["ingredients"].([]string); len(ingredients) != 2 {
		t.Errorf("ingredients = %v", p["ingredients"])
	}
	if chat.got.Model != "text-model" || chat.got.ResponseFormat == nil {
		t.Errorf("request = model %q, format %v", chat.got.Model, chat.got.ResponseFormat)
	}
	if !strings.HasPrefix(chat.got.Messages[1].Content, "Subject: Fwd: lemon bars") {
		t.Errorf("user message = %q", chat.got.Messages[1].Content)
	}
}

func TestStructurerFallsBackToHeuristics(t *testing.T) {
	text := "Pancakes\nIngredients\n1 cup flour\n1 egg\nInstructions\nWhisk and fry."
	for _, content := range []string{"not json at all", `{"title": "", "ingredients": [], "instructions": []}`} {
		s := NewStructurer(newTestClient(&stubChat{content: content}))
		p, err := s.ScrapeText(context.Background(), text, nil)
		if err != nil {
			t.Fatalf("ScrapeText(%q) error = %v", content, err)
		}
		if p["title"] != "Pancakes" {
			t.Errorf("fallback payload for %q = %v", content, p)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want extraction.Kind
	}{
		{"rate limit", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}, extraction.KindRateLimited},
		{"gateway timeout", &openai.RequestError{HTTPStatusCode: http.StatusGatewayTimeout, Err: errors.New("upstream")}, extraction.KindTimeout},
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "image too large"}, extraction.KindInvalidInput},
		{"deadline", context.DeadlineExceeded, extraction.KindTimeout},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "oops"}, extraction.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStructurer(newTestClient(&stubChat{err: tt.err}))
			_, err := s.ScrapeText(context.Background(), "text", nil)
			if got := extraction.KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Error("NewClient() without api key succeeded")
	}
}
