package words

import "math/rand"

// Theme names the handlers recognize. Anything else falls back to default,
// and a missing default falls back to the built-in fallback list.
const (
	ThemeDefault   = "default"
	ThemeAnimals   = "animals"
	ThemeGeography = "geography"
	ThemeCompSci   = "comp_sci"
)

// OptionCount is how many word choices a drawer is always offered.
const OptionCount = 3

var banks = map[string][]string{
	ThemeDefault: {
		"apple", "bridge", "candle", "dragon", "engine", "forest", "guitar",
		"hammer", "island", "jacket", "kitten", "ladder", "mirror", "needle",
		"orange", "pirate", "queen", "rocket", "sandwich", "tunnel",
		"umbrella", "violin", "window", "xylophone", "yogurt", "zipper",
		"anchor", "ballet", "castle", "dolphin",
	},
	ThemeAnimals: {
		"alligator", "badger", "camel", "dingo", "elephant", "flamingo",
		"giraffe", "hedgehog", "iguana", "jaguar", "koala", "lemur",
		"meerkat", "narwhal", "octopus", "penguin", "quail", "raccoon",
		"sloth", "toucan", "urchin", "vulture", "walrus", "yak", "zebra",
	},
	ThemeGeography: {
		"archipelago", "bay", "canyon", "delta", "equator", "fjord",
		"glacier", "harbor", "isthmus", "jungle", "lagoon", "mesa",
		"oasis", "peninsula", "reef", "savanna", "tundra", "valley",
		"volcano", "waterfall", "plateau", "strait", "dune", "geyser",
	},
	ThemeCompSci: {
		"algorithm", "binary", "compiler", "database", "encryption",
		"firewall", "gateway", "heap", "iterator", "kernel", "lambda",
		"mutex", "network", "overflow", "pointer", "queue", "recursion",
		"socket", "thread", "variable", "cache", "debugger", "packet",
		"syntax",
	},
}

// fallback keeps word generation alive even if the bank table is ever
// emptied or a theme lookup goes sideways.
var fallback = []string{"house", "tree", "car", "sun", "book", "fish", "star", "moon"}

// Bank returns the word list for a theme, falling back to default, then to
// the built-in list.
func Bank(theme string) []string {
	if list, ok := banks[theme]; ok && len(list) > 0 {
		return list
	}
	if list, ok := banks[ThemeDefault]; ok && len(list) > 0 {
		return list
	}
	return fallback
}

// shuffle is swappable so tests can pin the order.
var shuffle = func(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// PickOptions returns exactly OptionCount words from the theme bank,
// preferring unused words no longer than maxLen (0 means no limit). When the
// unused pool is too small it re-offers used words rather than returning
// fewer than OptionCount.
func PickOptions(theme string, used []string, maxLen int) []string {
	bank := Bank(theme)
	usedSet := make(map[string]bool, len(used))
	for _, w := range used {
		usedSet[w] = true
	}

	var fresh, stale []string
	for _, w := range bank {
		if maxLen > 0 && len([]rune(w)) > maxLen {
			continue
		}
		if usedSet[w] {
			stale = append(stale, w)
		} else {
			fresh = append(fresh, w)
		}
	}
	if len(fresh)+len(stale) == 0 {
		// length cap excluded everything; ignore it
		for _, w := range bank {
			if usedSet[w] {
				stale = append(stale, w)
			} else {
				fresh = append(fresh, w)
			}
		}
	}

	shuffle(len(fresh), func(i, j int) { fresh[i], fresh[j] = fresh[j], fresh[i] })
	shuffle(len(stale), func(i, j int) { stale[i], stale[j] = stale[j], stale[i] })

	options := fresh
	if len(options) > OptionCount {
		options = options[:OptionCount]
	}
	for len(options) < OptionCount && len(stale) > 0 {
		options = append(options, stale[0])
		stale = stale[1:]
	}
	// tiny banks: pad by cycling so callers can always count on 3
	base := append([]string(nil), options...)
	for i := 0; len(options) < OptionCount && len(base) > 0; i++ {
		options = append(options, base[i%len(base)])
	}
	return options
}
