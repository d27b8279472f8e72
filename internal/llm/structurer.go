package llm

import (
	"context"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mealvault/mealvault/internal/extraction"
)

// maxInputChars keeps long email threads and chat exports inside the
// model's context window.
const maxInputChars = 24000

const structureSystemPrompt = `You extract a single recipe from messy text such as emails, chat exports, notes or OCR output.
Return a JSON object with these keys:
"title" (string), "ingredients" (array of strings, one per ingredient with its quantity),
"instructions" (array of strings, one per step), "prepTime", "cookTime", "totalTime"
(strings such as "15 minutes" or "PT1H", empty when unknown), "servings" (string, empty when unknown),
"imageUrls" (array of strings found in the text).
Copy wording from the text; do not invent ingredients or steps. Use empty values when no recipe is present.`

// Structurer turns free-form text into recipe fields with a chat model. It
// falls back to the heuristic parser when the model returns nothing usable.
type Structurer struct {
	client *Client
}

// NewStructurer creates an LLM-backed text scraper.
func NewStructurer(client *Client) *Structurer {
	return &Structurer{client: client}
}

type structuredRecipe struct {
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	PrepTime     string   `json:"prepTime"`
	CookTime     string   `json:"cookTime"`
	TotalTime    string   `json:"totalTime"`
	Servings     string   `json:"servings"`
	ImageURLs    []string `json:"imageUrls"`
}

// ScrapeText implements extraction.TextScraper.
func (s *Structurer) ScrapeText(ctx context.Context, text string, meta map[string]string) (extraction.Payload, error) {
	input := text
	if len(input) > maxInputChars {
		input = input[:maxInputChars]
	}
	user := input
	if subject := meta["subject"]; subject != "" {
		user = "Subject: " + subject + "\n\n" + input
	}

	out, err := s.client.complete(ctx, s.client.config.Model, "structure", []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: structureSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: user},
	})
	if err != nil {
		return nil, err
	}

	var r structuredRecipe
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		s.client.logger.Warn("unparseable structured recipe, using heuristic parser", "error", err)
		return extraction.ParseRecipeText(text), nil
	}
	if r.Title == "" && len(r.Ingredients) == 0 && len(r.Instructions) == 0 {
		return extraction.ParseRecipeText(text), nil
	}
	return r.payload(), nil
}

func (r structuredRecipe) payload() extraction.Payload {
	p := extraction.Payload{}
	set := func(key, v string) {
		if v = strings.TrimSpace(v); v != "" {
			p[key] = v
		}
	}
	set("title", r.Title)
	set("prepTime", r.PrepTime)
	set("cookTime", r.CookTime)
	set("totalTime", r.TotalTime)
	set("servings", r.Servings)
	if len(r.Ingredients) > 0 {
		p["ingredients"] = r.Ingredients
	}
	if len(r.Instructions) > 0 {
		p["instructions"] = r.Instructions
	}
	if len(r.ImageURLs) > 0 {
		p["images"] = r.ImageURLs
	}
	return p
}
