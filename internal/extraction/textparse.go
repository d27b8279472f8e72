package extraction

import (
	"regexp"
	"strings"
)

var (
	ingredientHeading  = regexp.MustCompile(`(?i)^\W*(ingredients?|you(?:'ll)? need|shopping list)\W*$`)
	instructionHeading = regexp.MustCompile(`(?i)^\W*(instructions?|directions?|method|steps?|preparation|how to make it)\W*$`)
	otherHeading       = regexp.MustCompile(`(?i)^\W*(notes?|tips?|nutrition|equipment)\W*$`)
	quantityLine       = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*)?(?:\d+(?:[./]\d+)?|[½⅓⅔¼¾⅛]|a |an |one |two |three |pinch|handful|dash)\s*(?:[a-z]+\s)?`)
	stepLine           = regexp.MustCompile(`(?i)^\s*(?:\d+[.)]|step\s*\d+)`)
	servesLine         = regexp.MustCompile(`(?i)\b(?:serves|servings|yield|makes)\s*:?\s*(\d+)`)
	timeLine           = regexp.MustCompile(`(?i)\b(total time|cook(?:ing)? time|prep(?:aration)? time|ready in)\s*:?\s*(.+)$`)
	chatPrefix         = regexp.MustCompile(`^\[?\d{1,2}[/.]\d{1,2}[/.]\d{2,4},? \d{1,2}:\d{2}(?::\d{2})?(?:\s?[AaPp][Mm])?\]? ?(?:- )?[^:]{1,60}: `)
	markdownHeading    = regexp.MustCompile(`^#{1,6}\s*`)
)

// ParseRecipeText recovers a recipe from unstructured text: pasted notes,
// email bodies, chat exports and OCR output. Explicit headings are used when
// present; otherwise lines are classified by shape. The result uses the same
// payload keys as scraper collaborators.
func ParseRecipeText(text string) Payload {
	lines := splitLines(text)
	p := Payload{}
	if len(lines) == 0 {
		return p
	}

	var (
		title        string
		ingredients  []string
		instructions []string
		section      string
		totalTime    string
		prepTime     string
		cookTime     string
	)

	for _, line := range lines {
		switch {
		case ingredientHeading.MatchString(line):
			section = "ingredients"
			continue
		case instructionHeading.MatchString(line):
			section = "instructions"
			continue
		case otherHeading.MatchString(line):
			section = "other"
			continue
		}

		if m := servesLine.FindStringSubmatch(line); m != nil {
			if p["servings"] == nil {
				p["servings"] = m[1]
			}
			// A title such as "Chili (serves 6)" still names the recipe.
			if title != "" || section != "" {
				continue
			}
		}
		if m := timeLine.FindStringSubmatch(line); m != nil {
			label := strings.ToLower(m[1])
			switch {
			case strings.HasPrefix(label, "prep"):
				prepTime = m[2]
			case strings.HasPrefix(label, "cook"):
				cookTime = m[2]
			default:
				totalTime = m[2]
			}
			continue
		}

		if title == "" && section == "" {
			title = markdownHeading.ReplaceAllString(line, "")
			continue
		}

		switch section {
		case "ingredients":
			ingredients = append(ingredients, line)
		case "instructions":
			instructions = append(instructions, line)
		case "other":
		default:
			// No heading seen yet: guess from the line's shape.
			switch {
			case stepLine.MatchString(line):
				instructions = append(instructions, line)
			case quantityLine.MatchString(line) && len(line) < 80:
				ingredients = append(ingredients, line)
			case len(line) >= 40:
				instructions = append(instructions, line)
			}
		}
	}

	if title != "" {
		p["title"] = title
	}
	if len(ingredients) > 0 {
		p["ingredients"] = strings.Join(ingredients, "\n")
	}
	if len(instructions) > 0 {
		p["instructions"] = strings.Join(instructions, "\n")
	}
	switch {
	case totalTime != "":
		p["totalTime"] = totalTime
	default:
		if cookTime != "" {
			p["cookTime"] = cookTime
		}
		if prepTime != "" {
			p["prepTime"] = prepTime
		}
	}
	return p
}

// splitLines trims lines, drops blanks and strips chat export prefixes.
func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = chatPrefix.ReplaceAllString(strings.TrimSpace(line), "")
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, "<media omitted>") {
			continue
		}
		out = append(out, line)
	}
	return out
}
