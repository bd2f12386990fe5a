package cleanup

import (
	"strings"
	"sync"

	"github.com/kljensen/snowball"
)

// EnglishStemmer reduces English words to their stems so occupation
// keywords match across inflections ("movers" matches "mover").
// Hebrew tokens pass through unchanged; snowball has no Hebrew support
// and substring matching handles Hebrew inflection well enough.
type EnglishStemmer struct {
	language string
	cache    map[string]string
	mu       sync.RWMutex
}

// NewEnglishStemmer creates a caching English stemmer
func NewEnglishStemmer() *EnglishStemmer {
	return &EnglishStemmer{
		language: "english",
		cache:    make(map[string]string),
	}
}

// Stem returns the stemmed version of a word
func (s *EnglishStemmer) Stem(word string) string {
	normalized := strings.ToLower(strings.TrimSpace(word))
	if normalized == "" {
		return ""
	}
	if !isASCIILetters(normalized) {
		return normalized
	}

	s.mu.RLock()
	cached, ok := s.cache[normalized]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	stemmed, err := snowball.Stem(normalized, s.language, true)
	if err != nil {
		stemmed = normalized
	}

	s.mu.Lock()
	s.cache[normalized] = stemmed
	s.mu.Unlock()
	return stemmed
}

// StemTokens returns stemmed versions of multiple words
func (s *EnglishStemmer) StemTokens(tokens []string) []string {
	result := make([]string, len(tokens))
	for i, token := range tokens {
		result[i] = s.Stem(token)
	}
	return result
}

func isASCIILetters(word string) bool {
	for _, r := range word {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
