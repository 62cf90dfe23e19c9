package grocery

import "testing"

func TestCategorizeExactMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"milk", Dairy},
		{"chicken", MeatFish},
		{"bread", Bakery},
		{"rice", GrainsPasta},
		{"ice cream", Sweets},
		{"coffee", Drinks},
		{"dish soap", Household},
		{"shampoo", Hygiene},
		{"apples", Produce},
	}
	for _, tt := range tests {
		got := Categorize(tt.input)
		if got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCategorizeSubstringMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"boneless chicken breast", MeatFish},
		{"whole wheat bread", Bakery},
		{"vanilla ice cream", Sweets},
		{"oat milk barista", Dairy},
		{"sparkling water bottles", Drinks},
		{"dish soap refill", Household},
		{"frozen berries", Produce},
		{"penne pasta", GrainsPasta},
		{"toilet paper 12 rolls", Hygiene},
	}
	for _, tt := range tests {
		got := Categorize(tt.input)
		if got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCategorizeCaseInsensitive(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"MILK", Dairy},
		{"  Bread  ", Bakery},
		{"Greek Yogurt", Dairy},
	}
	for _, tt := range tests {
		got := Categorize(tt.input)
		if got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCategorizeFallback(t *testing.T) {
	for _, input := range []string{"", "   ", "widget", "birthday card"} {
		if got := Categorize(input); got != Other {
			t.Errorf("Categorize(%q) = %q, want %q", input, got, Other)
		}
	}
}

func TestSuggest(t *testing.T) {
	if got := Suggest("Milk"); got == nil || *got != Dairy {
		t.Errorf("Suggest(Milk) = %v, want %q", got, Dairy)
	}
	if got := Suggest("widget"); got != nil {
		t.Errorf("Suggest(widget) = %q, want nil", *got)
	}
}

func TestEmoji(t *testing.T) {
	for _, c := range Categories {
		if Emoji(c) == "" {
			t.Errorf("Emoji(%q) is empty", c)
		}
	}
	if Emoji("") != Emoji(Other) {
		t.Error("empty category should use the Other glyph")
	}
}
