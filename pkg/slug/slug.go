package slug

import (
	"regexp"
	"strings"
)

var (
	slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

	spanish = strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
		"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u", "Ñ", "n",
	)

	// Connectors carry no meaning in a product code.
	stopwords = map[string]struct{}{
		"de": {}, "del": {}, "la": {}, "las": {}, "el": {}, "los": {},
		"con": {}, "sin": {}, "y": {}, "en": {}, "a": {}, "al": {},
	}
)

const (
	skuWordLen  = 4
	skuMaxWords = 3
)

// Generate creates a URL-friendly slug from a product name.
//
// Examples:
//   - "Torta de Chocolate" → "torta-de-chocolate"
//   - "Piña Colada 500ml" → "pina-colada-500ml"
//   - "  Café   Molido! " → "cafe-molido"
func Generate(name string) string {
	s := spanish.Replace(strings.TrimSpace(name))
	s = strings.ToLower(s)
	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SKU suggests a product code from a name: the first four letters of up to
// three meaningful words, upper-cased and joined by hyphens.
//
// Examples:
//   - "Torta de Chocolate" → "TORT-CHOC"
//   - "Pan de bono x 6" → "PAN-BONO-X"
//   - "Café" → "CAFE"
func SKU(name string) string {
	parts := strings.Split(Generate(name), "-")

	words := make([]string, 0, skuMaxWords)
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, skip := stopwords[p]; skip {
			continue
		}
		if len(p) > skuWordLen {
			p = p[:skuWordLen]
		}
		words = append(words, strings.ToUpper(p))
		if len(words) == skuMaxWords {
			break
		}
	}

	return strings.Join(words, "-")
}
