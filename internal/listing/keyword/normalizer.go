// Package keyword turns listing text and search queries into index tokens.
//
// Indexing and querying must use the same Normalizer, otherwise query tokens
// and stored keywords are not comparable.
package keyword

import (
	"sort"
	"strings"

	"github.com/gertd/go-pluralize"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
)

// MaxIndexedWords bounds how many raw words of a listing are indexed.
const MaxIndexedWords = 500

// Singularizer folds plural nouns. ok is false when word has no known
// singular form (including when it already is singular).
type Singularizer interface {
	SingularNoun(word string) (singular string, ok bool)
}

// PluralizeSingularizer is the English Singularizer backed by go-pluralize.
type PluralizeSingularizer struct {
	client *pluralize.Client
}

func NewPluralizeSingularizer() *PluralizeSingularizer {
	return &PluralizeSingularizer{client: pluralize.NewClient()}
}

func (s *PluralizeSingularizer) SingularNoun(word string) (string, bool) {
	if word == "" || !s.client.IsPlural(word) {
		return "", false
	}
	singular := s.client.Singular(word)
	if singular == "" || singular == word {
		return "", false
	}
	return singular, true
}

type Normalizer struct {
	singular Singularizer
}

func NewNormalizer(s Singularizer) *Normalizer {
	return &Normalizer{singular: s}
}

// NewEnglishNormalizer is a Normalizer using PluralizeSingularizer.
func NewEnglishNormalizer() *Normalizer {
	return NewNormalizer(NewPluralizeSingularizer())
}

// Normalize maps a raw word to its index token. Words containing '@' are
// returned unchanged. Everything else is lower-cased, stripped to [a-z0-9]
// and singularized when a singular form is known.
func (n *Normalizer) Normalize(word string) string {
	if strings.Contains(word, "@") {
		return word
	}
	stripped := stripToAlnum(strings.ToLower(word))
	if stripped == "" {
		return ""
	}
	if singular, ok := n.singular.SingularNoun(stripped); ok {
		return singular
	}
	return stripped
}

// DeriveKeywords computes the keyword set of l: the seller, the words of the
// title and body, and the category keys, capped at MaxIndexedWords raw words,
// normalized, deduplicated and sorted. The empty token is never included.
func (n *Normalizer) DeriveKeywords(l *domain.Listing) []string {
	words := make([]string, 0, 1+len(l.Categories)+16)
	words = append(words, l.Seller)
	words = append(words, strings.Fields(l.Title)...)
	words = append(words, strings.Fields(l.Body)...)
	words = append(words, l.Categories...)
	if len(words) > MaxIndexedWords {
		words = words[:MaxIndexedWords]
	}

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if token := n.Normalize(w); token != "" {
			set[token] = struct{}{}
		}
	}
	keywords := make([]string, 0, len(set))
	for token := range set {
		keywords = append(keywords, token)
	}
	sort.Strings(keywords)
	return keywords
}

// Union merges keyword sets into one sorted, deduplicated slice.
func Union(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, k := range set {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func stripToAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}
