package scrapers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mealvault/mealvault/internal/extraction"
)

// maxPageBytes caps how much of a page is read.
const maxPageBytes = 5 << 20

// FoodBlogScraper reads schema.org Recipe data from a recipe page: JSON-LD
// first, microdata second.
type FoodBlogScraper struct {
	client *http.Client
}

// NewFoodBlogFactory returns a factory sharing one HTTP client.
func NewFoodBlogFactory(client *http.Client) extraction.ScraperFactory {
	if client == nil {
		client = &http.Client{}
	}
	return func(context.Context) (extraction.Scraper, error) {
		return &FoodBlogScraper{client: client}, nil
	}
}

func (s *FoodBlogScraper) Close() error { return nil }

func (s *FoodBlogScraper) Scrape(ctx context.Context, pageURL string, opts extraction.Options) (extraction.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	if opts.Language != "" {
		req.Header.Set("Accept-Language", opts.Language)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := *s.client
	maxRedirects := opts.MaxRedirects
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return parseRecipePage(doc)
}

// parseRecipePage extracts recipe fields from a parsed page.
func parseRecipePage(doc *goquery.Document) (extraction.Payload, error) {
	if recipe := jsonLDRecipe(doc); recipe != nil {
		return extraction.Payload(recipe), nil
	}
	if p := microdataRecipe(doc); p != nil {
		return p, nil
	}

	// No structured data: title and hero image only. The dispatcher reports
	// insufficient data when no ingredients or steps follow.
	p := extraction.Payload{}
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		p["title"] = title
	} else if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		p["title"] = title
	}
	if img, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		p["image"] = img
	}
	if len(p) == 0 {
		return nil, errors.New("no recipe data found on page")
	}
	return p, nil
}

func jsonLDRecipe(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return true
		}
		found = findRecipe(v)
		return found == nil
	})
	return found
}

// findRecipe walks arrays and @graph containers for a node typed Recipe.
func findRecipe(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if r := findRecipe(item); r != nil {
				return r
			}
		}
	case map[string]any:
		if isRecipeType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findRecipe(graph)
		}
	}
	return nil
}

func isRecipeType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Recipe"
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

func microdataRecipe(doc *goquery.Document) extraction.Payload {
	scope := doc.Find(`[itemtype*="schema.org/Recipe"]`).First()
	if scope.Length() == 0 {
		return nil
	}

	p := extraction.Payload{}
	single := func(key, prop string) {
		if v := itempropValue(scope.Find(`[itemprop="` + prop + `"]`).First()); v != "" {
			p[key] = v
		}
	}
	multi := func(key string, props ...string) {
		var values []string
		for _, prop := range props {
			scope.Find(`[itemprop="` + prop + `"]`).Each(func(_ int, s *goquery.Selection) {
				if v := itempropValue(s); v != "" {
					values = append(values, v)
				}
			})
		}
		if len(values) > 0 {
			p[key] = values
		}
	}

	single("name", "name")
	single("totalTime", "totalTime")
	single("cookTime", "cookTime")
	single("prepTime", "prepTime")
	single("recipeYield", "recipeYield")
	single("image", "image")
	multi("recipeIngredient", "recipeIngredient", "ingredients")
	multi("recipeInstructions", "recipeInstructions")
	return p
}

// itempropValue reads a microdata value from the attribute the element type
// carries it in.
func itempropValue(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"content", "datetime", "src", "href"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}
