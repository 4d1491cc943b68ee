package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Letters that do not decompose into a base letter plus a combining mark.
var folds = strings.NewReplacer(
	"ı", "i", "ß", "ss", "æ", "ae", "ø", "o", "œ", "oe", "ł", "l", "đ", "d", "þ", "th",
	"&", " and ",
)

// Generate returns the URL slug for a product name: lowercase ASCII letters
// and digits separated by single hyphens.
//
//	Generate("Crème Brûlée Mug")  // "creme-brulee-mug"
//	Generate("Salt & Pepper Set") // "salt-and-pepper-set"
func Generate(name string) string {
	s := folds.Replace(strings.ToLower(name))

	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range norm.NFD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// accent stripped from the preceding letter
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}

// Matches reports whether idOrSlug names the product with the given ID and name.
func Matches(idOrSlug, id, name string) bool {
	return idOrSlug == id || idOrSlug == Generate(name)
}
