package scrapers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/mealvault/mealvault/internal/extraction"
)

const jsonLDPage = `<!doctype html><html><head>
<title>Best Banana Bread | Some Blog</title>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"WebSite","name":"Some Blog"}</script>
<script type="application/ld+json">{"@context":"https://schema.org","@graph":[
  {"@type":"WebPage","name":"Best Banana Bread"},
  {"@type":["Recipe","NewsArticle"],"name":"Best Banana Bread",
   "recipeIngredient":["3 ripe bananas","2 cups flour"],
   "recipeInstructions":[{"@type":"HowToStep","text":"Mash bananas."},{"@type":"HowToStep","text":"Bake 60 minutes."}],
   "totalTime":"PT1H10M","recipeYield":["8","1 loaf"],
   "image":{"@type":"ImageObject","url":"https://blog.example.com/bread.jpg"}}
]}</script>
</head><body><h1>Best Banana Bread</h1></body></html>`

const microdataPage = `<html><body>
<div itemscope itemtype="https://schema.org/Recipe">
  <h1 itemprop="name">Grandma's Chili</h1>
  <meta itemprop="totalTime" content="PT2H">
  <span itemprop="recipeYield">6 servings</span>
  <ul>
    <li itemprop="recipeIngredient">1 lb beef</li>
    <li itemprop="recipeIngredient">2 cans   beans</li>
  </ul>
  <div itemprop="recipeInstructions">Brown the beef, then simmer with beans.</div>
</div></body></html>`

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestParseRecipePageJSONLD(t *testing.T) {
	p, err := parseRecipePage(parse(t, jsonLDPage))
	if err != nil {
		t.Fatalf("parseRecipePage() error = %v", err)
	}
	if p["name"] != "Best Banana Bread" || p["totalTime"] != "PT1H10M" {
		t.Errorf("payload = %v", p)
	}
	if ingredients, _ := p["recipeIngredient"].([]any); len(ingredients) != 2 {
		t.Errorf("recipeIngredient = %v", p["recipeIngredient"])
	}
}

func TestParseRecipePageMicrodata(t *testing.T) {
	p, err := parseRecipePage(parse(t, microdataPage))
	if err != nil {
		t.Fatalf("parseRecipePage() error = %v", err)
	}
	if p["name"] != "Grandma's Chili" || p["totalTime"] != "PT2H" || p["recipeYield"] != "6 servings" {
		t.Errorf("payload = %v", p)
	}
	ingredients, _ := p["recipeIngredient"].([]string)
	if len(ingredients) != 2 || ingredients[1] != "2 cans beans" {
		t.Errorf("recipeIngredient = %v", ingredients)
	}
}

func TestParseRecipePageFallback(t *testing.T) {
	p, err := parseRecipePage(parse(t, `<html><head><meta property="og:title" content="Soup"><meta property="og:image" content="https://x/s.jpg"></head></html>`))
	if err != nil {
		t.Fatalf("parseRecipePage() error = %v", err)
	}
	if p["title"] != "Soup" || p["image"] != "https://x/s.jpg" {
		t.Errorf("payload = %v", p)
	}

	if _, err := parseRecipePage(parse(t, `<html><body>nothing</body></html>`)); err == nil {
		t.Error("parseRecipePage() on an empty page succeeded")
	}
}

func TestFoodBlogScrape(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bread", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "MealVaultBot/1.0" {
			http.Error(w, "unexpected user agent", http.StatusBadRequest)
			return
		}
		io.WriteString(w, jsonLDPage)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/bread", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	scraper, _ := NewFoodBlogFactory(srv.Client())(context.Background())
	defer scraper.Close()
	opts := extraction.Options{UserAgent: "MealVaultBot/1.0", MaxRedirects: 3}

	p, err := scraper.Scrape(context.Background(), srv.URL+"/old", opts)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if p["name"] != "Best Banana Bread" {
		t.Errorf("payload name = %v", p["name"])
	}

	_, err = scraper.Scrape(context.Background(), srv.URL+"/gone", opts)
	if extraction.KindOf(err) != extraction.KindNotFound {
		t.Errorf("gone page kind = %s, want NOT_FOUND", extraction.KindOf(err))
	}

	opts.MaxRedirects = 0
	if _, err := scraper.Scrape(context.Background(), srv.URL+"/old", opts); err == nil {
		t.Error("redirect followed with MaxRedirects 0")
	}
}
