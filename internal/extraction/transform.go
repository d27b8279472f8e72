package extraction

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mealvault/mealvault/internal/models"
)

// Collaborators name the same recipe fields differently; each list is tried
// in order.
var (
	titleKeys        = []string{"title", "name", "recipeName", "headline"}
	ingredientKeys   = []string{"ingredients", "recipeIngredient", "ingredientList", "ingredient_lines"}
	instructionKeys  = []string{"instructions", "recipeInstructions", "steps", "method", "directions"}
	totalTimeKeys    = []string{"cookingTime", "totalTime", "total_time", "cookTimeMinutes"}
	cookTimeKeys     = []string{"cookTime", "cook_time"}
	prepTimeKeys     = []string{"prepTime", "prep_time"}
	servingKeys      = []string{"servings", "recipeYield", "yield", "serves"}
	imageKeys        = []string{"images", "image", "imageUrl", "thumbnail", "thumbnailUrl", "displayUrl"}
	platformMetaKeys = []string{"platformMetadata", "extra"}
)

// toRecipe maps a collaborator payload into a CanonicalRecipe.
func toRecipe(p Payload, sourceURL string, extractedAt time.Time) *models.CanonicalRecipe {
	r := models.NewCanonicalRecipe(sourceURL, extractedAt)

	if v, ok := first(p, titleKeys); ok {
		r.Title = cleanText(asText(v))
	}
	if v, ok := first(p, ingredientKeys); ok {
		r.Ingredients = toList(v)
	}
	if v, ok := first(p, instructionKeys); ok {
		r.Instructions = toList(v)
	}
	if v, ok := first(p, imageKeys); ok {
		r.Images = toImages(v)
	}

	if v, ok := first(p, totalTimeKeys); ok {
		r.CookingTime = ParseMinutes(v)
	}
	if r.CookingTime == nil {
		cook, prep := firstMinutes(p, cookTimeKeys), firstMinutes(p, prepTimeKeys)
		if cook != nil || prep != nil {
			total := 0
			if cook != nil {
				total += *cook
			}
			if prep != nil {
				total += *prep
			}
			r.CookingTime = &total
		}
	}
	if v, ok := first(p, servingKeys); ok {
		r.Servings = ParseServings(v)
	}

	if v, ok := first(p, platformMetaKeys); ok {
		if m, ok := v.(map[string]any); ok {
			for k, val := range m {
				r.PlatformMetadata[k] = val
			}
		}
	}
	return r
}

func first(p Payload, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstMinutes(p Payload, keys []string) *int {
	if v, ok := first(p, keys); ok {
		return ParseMinutes(v)
	}
	return nil
}

var (
	listMarker = regexp.MustCompile(`^\s*(?:[-*•▢]|\d+[.)]|step\s*\d+[:.)]?)\s*`)
	whitespace = regexp.MustCompile(`\s+`)
)

func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func asText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case map[string]any:
		for _, k := range []string{"text", "name", "@value"} {
			if s, ok := t[k].(string); ok {
				return s
			}
		}
	}
	return ""
}

// toList flattens strings, string arrays, schema.org HowToStep objects and
// HowToSection groups into an ordered list of non-empty lines.
func toList(v any) []string {
	out := []string{}
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			for _, line := range strings.Split(t, "\n") {
				line = cleanText(listMarker.ReplaceAllString(line, ""))
				if line != "" {
					out = append(out, line)
				}
			}
		case []string:
			for _, s := range t {
				walk(s)
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			if items, ok := t["itemListElement"]; ok {
				walk(items)
				return
			}
			if s := cleanText(asText(t)); s != "" {
				out = append(out, s)
			}
		}
	}
	walk(v)
	return out
}

func toImages(v any) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			add(t)
		case []string:
			for _, s := range t {
				add(s)
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			for _, k := range []string{"url", "contentUrl", "src"} {
				if s, ok := t[k].(string); ok {
					add(s)
					return
				}
			}
		}
	}
	walk(v)
	return out
}

var (
	isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)
	hourPart    = regexp.MustCompile(`\b(\d+(?:\.\d+)?|half(?:\s+an?)?|an?|one)\s*(?:hours?|hrs?|h)(?:[^a-z]|$)`)
	minutePart  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:minutes?|mins?|m)(?:[^a-z]|$)`)
	bareNumber  = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	firstNumber = regexp.MustCompile(`\d+`)
	fraction    = regexp.MustCompile(`(?:(\d+)\s+)?(\d+)/(\d+)`)
)

var vulgarFractions = strings.NewReplacer(
	"½", " 1/2", "⅓", " 1/3", "⅔", " 2/3", "¼", " 1/4", "¾", " 3/4",
	"⅕", " 1/5", "⅙", " 1/6", "⅛", " 1/8", "⅜", " 3/8", "⅝", " 5/8", "⅞", " 7/8",
)

// decimalFractions rewrites "1 1/2", "1½" and "3/4" as decimals.
func decimalFractions(s string) string {
	s = vulgarFractions.Replace(s)
	s = fraction.ReplaceAllStringFunc(s, func(m string) string {
		parts := fraction.FindStringSubmatch(m)
		den := atof(parts[3])
		if den == 0 {
			return m
		}
		v := atof(parts[1]) + atof(parts[2])/den
		return strconv.FormatFloat(v, 'f', -1, 64)
	})
	return strings.TrimSpace(s)
}

// ParseMinutes converts a duration to whole minutes. It accepts numbers
// (already minutes), ISO-8601 durations such as "PT1H30M", and free text
// such as "4 hours", "1 hr 15 mins" or "half hour". Unparseable input
// returns nil.
func ParseMinutes(v any) *int {
	switch t := v.(type) {
	case float64:
		return minutes(t)
	case int:
		return minutes(float64(t))
	case string:
		return parseMinutesText(t)
	}
	return nil
}

func parseMinutesText(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if m := isoDuration.FindStringSubmatch(strings.ToUpper(s)); m != nil {
		total := atof(m[1])*24*60 + atof(m[2])*60 + atof(m[3]) + atof(m[4])/60
		return minutes(total)
	}

	lower := decimalFractions(strings.ToLower(s))
	if bareNumber.MatchString(lower) {
		return minutes(atof(lower))
	}

	total, found := 0.0, false
	if m := hourPart.FindStringSubmatch(lower); m != nil {
		found = true
		switch {
		case strings.HasPrefix(m[1], "half"):
			total += 30
		case m[1] == "a" || m[1] == "an" || m[1] == "one":
			total += 60
		default:
			total += atof(m[1]) * 60
		}
	}
	if m := minutePart.FindStringSubmatch(lower); m != nil {
		found = true
		total += atof(m[1])
	}
	if !found {
		return nil
	}
	return minutes(total)
}

// ParseServings reads a serving count from numbers or text such as
// "Serves 4" or "4-6 servings". Ranges use the lower bound.
func ParseServings(v any) *int {
	switch t := v.(type) {
	case float64:
		return positive(int(t))
	case int:
		return positive(t)
	case string:
		if m := firstNumber.FindString(t); m != "" {
			n, _ := strconv.Atoi(m)
			return positive(n)
		}
	case []any:
		for _, item := range t {
			if n := ParseServings(item); n != nil {
				return n
			}
		}
	}
	return nil
}

func minutes(f float64) *int {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

func positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func atof(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
