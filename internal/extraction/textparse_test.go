package extraction

import "testing"

func TestParseRecipeTextWithHeadings(t *testing.T) {
	text := `# Overnight Oats
Serves 2
Prep time: 5 minutes

## Ingredients
* 1 cup rolled oats
* 1 cup milk
* 1 tbsp honey

## Directions
1. Combine everything in a jar.
2. Refrigerate overnight.

Notes
Keeps for 3 days.`

	r := toRecipe(ParseRecipeText(text), "", testNow)

	if r.Title != "Overnight Oats" {
		t.Errorf("Title = %q", r.Title)
	}
	if len(r.Ingredients) != 3 || r.Ingredients[0] != "1 cup rolled oats" {
		t.Errorf("Ingredients = %v", r.Ingredients)
	}
	if len(r.Instructions) != 2 || r.Instructions[1] != "Refrigerate overnight." {
		t.Errorf("Instructions = %v", r.Instructions)
	}
	if r.Servings == nil || *r.Servings != 2 {
		t.Errorf("Servings = %v", r.Servings)
	}
	if r.CookingTime == nil || *r.CookingTime != 5 {
		t.Errorf("CookingTime = %v", r.CookingTime)
	}
}

func TestParseRecipeTextByShape(t *testing.T) {
	text := `Quick Guacamole
2 avocados
1 lime
a pinch of salt
Mash the avocados with a fork and stir in lime juice and salt to taste.`

	r := toRecipe(ParseRecipeText(text), "", testNow)
	if r.Title != "Quick Guacamole" {
		t.Errorf("Title = %q", r.Title)
	}
	if len(r.Ingredients) != 3 {
		t.Errorf("Ingredients = %v", r.Ingredients)
	}
	if len(r.Instructions) != 1 {
		t.Errorf("Instructions = %v", r.Instructions)
	}
}

func TestParseRecipeTextChatExport(t *testing.T) {
	text := `12/03/2024, 18:02 - Mum: Pancakes
12/03/2024, 18:02 - Mum: Ingredients
12/03/2024, 18:03 - Mum: 200g flour
12/03/2024, 18:03 - Mum: 2 eggs
12/03/2024, 18:03 - Mum: <Media omitted>
12/03/2024, 18:04 - Mum: Method
12/03/2024, 18:04 - Mum: Whisk and fry in butter.`

	r := toRecipe(ParseRecipeText(text), "", testNow)
	if r.Title != "Pancakes" {
		t.Errorf("Title = %q", r.Title)
	}
	if len(r.Ingredients) != 2 || len(r.Instructions) != 1 {
		t.Errorf("Ingredients = %v, Instructions = %v", r.Ingredients, r.Instructions)
	}
}

func TestParseRecipeTextEmpty(t *testing.T) {
	if p := ParseRecipeText("  \n\n "); len(p) != 0 {
		t.Errorf("ParseRecipeText(blank) = %v", p)
	}
}
