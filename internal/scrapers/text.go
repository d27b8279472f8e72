package scrapers

import (
	"context"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/mealvault/mealvault/internal/extraction"
)

// Heuristic parses recipe text by headings and line shape.
type Heuristic struct{}

func (Heuristic) ScrapeText(_ context.Context, text string, _ map[string]string) (extraction.Payload, error) {
	return extraction.ParseRecipeText(text), nil
}

// HTMLText converts HTML bodies to markdown before handing them on. Email
// mode also drops quoted replies and signatures.
type HTMLText struct {
	converter *md.Converter
	next      extraction.TextScraper
	email     bool
}

// NewEmailScraper wraps next for email bodies. A nil next uses Heuristic.
func NewEmailScraper(next extraction.TextScraper) *HTMLText {
	return newHTMLText(next, true)
}

// NewNoteScraper wraps next for note exports (Apple Notes HTML, Evernote ENML).
func NewNoteScraper(next extraction.TextScraper) *HTMLText {
	return newHTMLText(next, false)
}

func newHTMLText(next extraction.TextScraper, email bool) *HTMLText {
	if next == nil {
		next = Heuristic{}
	}
	return &HTMLText{converter: md.NewConverter("", true, nil), next: next, email: email}
}

func (h *HTMLText) ScrapeText(ctx context.Context, text string, meta map[string]string) (extraction.Payload, error) {
	if strings.Contains(strings.ToLower(meta["contentType"]), "html") || looksLikeHTML(text) {
		converted, err := h.converter.ConvertString(text)
		if err != nil {
			return nil, &extraction.Error{Kind: extraction.KindInvalidInput, Message: "unreadable HTML body", Err: err}
		}
		text = converted
	}
	if h.email {
		text = stripEmailNoise(text)
	}

	p, err := h.next.ScrapeText(ctx, text, meta)
	if err != nil {
		return nil, err
	}
	if _, ok := p["title"]; !ok {
		if title := fallbackTitle(meta); title != "" {
			p["title"] = title
		}
	}
	return p, nil
}

var htmlTag = regexp.MustCompile(`(?i)<(html|body|div|p|br|table|span|en-note)[\s/>]`)

func looksLikeHTML(s string) bool {
	return htmlTag.MatchString(s)
}

var (
	replyHeader   = regexp.MustCompile(`(?i)^on .+ wrote:$`)
	forwardHeader = regexp.MustCompile(`(?i)^-+ ?forwarded message ?-+$`)
	headerLine    = regexp.MustCompile(`(?i)^\*{0,2}(from|to|cc|date|sent|subject):\*{0,2}\s`)
	subjectPrefix = regexp.MustCompile(`(?i)^((re|fwd?|aw|tr):\s*)+`)
)

// stripEmailNoise drops quoted lines, reply headers and everything after a
// signature delimiter. Forwarded message headers are removed but the
// forwarded body is kept.
func stripEmailNoise(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if line == "-- " || trimmed == "--" {
			break
		}
		if strings.HasPrefix(trimmed, ">") || replyHeader.MatchString(trimmed) ||
			forwardHeader.MatchString(trimmed) || headerLine.MatchString(trimmed) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// fallbackTitle names a recipe whose body has no usable title line.
func fallbackTitle(meta map[string]string) string {
	if t := strings.TrimSpace(meta["title"]); t != "" {
		return t
	}
	return cleanSubject(meta["subject"])
}

func cleanSubject(s string) string {
	return strings.TrimSpace(subjectPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
}
