package grocery

import "strings"

const (
	Produce     = "Produce"
	MeatFish    = "Meat & Fish"
	Dairy       = "Dairy"
	Bakery      = "Bakery"
	GrainsPasta = "Grains & Pasta"
	Drinks      = "Drinks"
	Sweets      = "Sweets"
	Household   = "Household"
	Hygiene     = "Hygiene"
	Other       = "Other"
)

// Categories lists the known categories in display order.
var Categories = []string{Produce, MeatFish, Dairy, Bakery, GrainsPasta, Drinks, Sweets, Household, Hygiene, Other}

var emojis = map[string]string{
	Produce:     "🥕",
	MeatFish:    "🥩",
	Dairy:       "🥛",
	Bakery:      "🍞",
	GrainsPasta: "🌾",
	Drinks:      "🥤",
	Sweets:      "🍬",
	Household:   "🧴",
	Hygiene:     "🧼",
	Other:       "📦",
}

// Emoji returns the display glyph for a category; unknown or empty
// categories share the "Other" glyph.
func Emoji(category string) string {
	if e, ok := emojis[category]; ok {
		return e
	}
	return emojis[Other]
}

// Categorize returns the grocery category for the given item name.
// It performs case-insensitive matching: exact match first, then substring match.
// Falls back to "Other" if no match is found.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return Other
	}

	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return Other
}

// Suggest returns a category for an item created without one, or nil when
// nothing matched so the item stays uncategorised.
func Suggest(itemName string) *string {
	cat := Categorize(itemName)
	if cat == Other {
		return nil
	}
	return &cat
}

var exactMatch = map[string]string{
	"apple":     Produce,
	"apples":    Produce,
	"banana":    Produce,
	"bananas":   Produce,
	"lemon":     Produce,
	"lemons":    Produce,
	"orange":    Produce,
	"oranges":   Produce,
	"tomato":    Produce,
	"tomatoes":  Produce,
	"potato":    Produce,
	"potatoes":  Produce,
	"onion":     Produce,
	"onions":    Produce,
	"garlic":    Produce,
	"cucumber":  Produce,
	"cucumbers": Produce,
	"carrots":   Produce,
	"cabbage":   Produce,
	"lettuce":   Produce,
	"dill":      Produce,
	"parsley":   Produce,
	"mushrooms": Produce,
	"grapes":    Produce,
	"pears":     Produce,

	"chicken": MeatFish,
	"beef":    MeatFish,
	"pork":    MeatFish,
	"mince":   MeatFish,
	"bacon":   MeatFish,
	"sausage": MeatFish,
	"ham":     MeatFish,
	"salmon":  MeatFish,
	"tuna":    MeatFish,
	"fish":    MeatFish,
	"shrimp":  MeatFish,
	"herring": MeatFish,

	"milk":           Dairy,
	"eggs":           Dairy,
	"butter":         Dairy,
	"cheese":         Dairy,
	"yogurt":         Dairy,
	"kefir":          Dairy,
	"sour cream":     Dairy,
	"cream cheese":   Dairy,
	"cottage cheese": Dairy,

	"bread":     Bakery,
	"baguette":  Bakery,
	"bagels":    Bakery,
	"buns":      Bakery,
	"rolls":     Bakery,
	"croissant": Bakery,
	"pita":      Bakery,

	"rice":      GrainsPasta,
	"pasta":     GrainsPasta,
	"spaghetti": GrainsPasta,
	"noodles":   GrainsPasta,
	"buckwheat": GrainsPasta,
	"oats":      GrainsPasta,
	"oatmeal":   GrainsPasta,
	"flour":     GrainsPasta,
	"couscous":  GrainsPasta,
	"lentils":   GrainsPasta,

	"water":    Drinks,
	"juice":    Drinks,
	"coffee":   Drinks,
	"tea":      Drinks,
	"soda":     Drinks,
	"beer":     Drinks,
	"wine":     Drinks,
	"lemonade": Drinks,

	"chocolate":    Sweets,
	"candy":        Sweets,
	"cookies":      Sweets,
	"cake":         Sweets,
	"honey":        Sweets,
	"jam":          Sweets,
	"ice cream":    Sweets,
	"marshmallows": Sweets,

	"dish soap":         Household,
	"laundry detergent": Household,
	"bleach":            Household,
	"sponges":           Household,
	"trash bags":        Household,
	"paper towels":      Household,
	"aluminum foil":     Household,

	"shampoo":      Hygiene,
	"conditioner":  Hygiene,
	"soap":         Hygiene,
	"toothpaste":   Hygiene,
	"toothbrush":   Hygiene,
	"deodorant":    Hygiene,
	"toilet paper": Hygiene,
	"tissues":      Hygiene,
	"razors":       Hygiene,
}

type substringEntry struct {
	keyword  string
	category string
}

// Ordered with longer/more-specific keywords first for deterministic priority.
var substringMatches = []substringEntry{
	{"chicken breast", MeatFish},
	{"ground beef", MeatFish},
	{"pork chop", MeatFish},
	{"fish fillet", MeatFish},

	{"almond milk", Dairy},
	{"oat milk", Dairy},
	{"sour cream", Dairy},
	{"cream cheese", Dairy},
	{"ice cream", Sweets},
	{"yogurt", Dairy},
	{"cheese", Dairy},
	{"milk", Dairy},
	{"butter", Dairy},
	{"egg", Dairy},

	{"dish soap", Household},
	{"toilet paper", Hygiene},
	{"paper towel", Household},
	{"trash bag", Household},
	{"laundry", Household},
	{"detergent", Household},
	{"cleaner", Household},
	{"sponge", Household},

	{"body wash", Hygiene},
	{"shampoo", Hygiene},
	{"toothpaste", Hygiene},
	{"toothbrush", Hygiene},
	{"deodorant", Hygiene},
	{"soap", Hygiene},

	{"sparkling water", Drinks},
	{"orange juice", Drinks},
	{"apple juice", Drinks},
	{"coffee", Drinks},
	{"juice", Drinks},
	{"soda", Drinks},
	{"water", Drinks},
	{"beer", Drinks},
	{"wine", Drinks},
	{"tea", Drinks},

	{"sweet potato", Produce},
	{"green onion", Produce},
	{"bell pepper", Produce},
	{"salad", Produce},
	{"berries", Produce},
	{"berry", Produce},
	{"fruit", Produce},
	{"apple", Produce},
	{"banana", Produce},
	{"tomato", Produce},
	{"potato", Produce},
	{"onion", Produce},
	{"carrot", Produce},

	{"sourdough", Bakery},
	{"bread", Bakery},
	{"bagel", Bakery},
	{"bun", Bakery},
	{"croissant", Bakery},

	{"pasta", GrainsPasta},
	{"noodle", GrainsPasta},
	{"rice", GrainsPasta},
	{"cereal", GrainsPasta},
	{"flour", GrainsPasta},
	{"oat", GrainsPasta},

	{"chocolate", Sweets},
	{"cookie", Sweets},
	{"candy", Sweets},
	{"cake", Sweets},

	{"chicken", MeatFish},
	{"beef", MeatFish},
	{"pork", MeatFish},
	{"sausage", MeatFish},
	{"salmon", MeatFish},
	{"fish", MeatFish},
}
