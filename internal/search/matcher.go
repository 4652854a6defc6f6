package search

import (
	"regexp"
	"sort"
	"strings"
)

// stopwords are ignored when matching candidate titles (Dutch + English).
var stopwords = map[string]struct{}{
	"de": {}, "het": {}, "een": {}, "van": {}, "en": {}, "der": {}, "den": {},
	"te": {}, "op": {}, "voor": {}, "met": {}, "aan": {}, "bij": {}, "uit": {},
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "to": {}, "in": {}, "on": {}, "for": {}, "with": {},
}

var (
	nonWordRe    = regexp.MustCompile(`[^a-z0-9à-ÿ\s-]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// normalize lowercases s and strips everything that is not a letter, digit,
// hyphen or space, so release titles with separators and noise still match.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "–", "-")
	s = strings.ReplaceAll(s, "—", "-")
	s = nonWordRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// tokens splits s into normalized tokens, dropping stopwords and single runes.
func tokens(s string) []string {
	parts := strings.Fields(strings.ReplaceAll(normalize(s), "-", " "))
	out := make([]string, 0, len(parts))
	for _, w := range parts {
		if len([]rune(w)) <= 1 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Matches reports whether a candidate release title matches the wanted
// author/title pair. At least one author token must appear; titles of three
// or more tokens need two matching tokens, shorter titles one.
func Matches(author, title, candidateTitle string) bool {
	return matchStrength(author, title, candidateTitle) > 0
}

// matchStrength returns 0 for a non-match, otherwise the number of matching
// author and title tokens. Used by the default ranker to prefer candidates
// that echo more of the query.
func matchStrength(author, title, candidateTitle string) int {
	authorTokens := tokens(author)
	titleTokens := tokens(title)
	candidate := make(map[string]struct{})
	for _, tok := range tokens(candidateTitle) {
		candidate[tok] = struct{}{}
	}

	authorHits := 0
	for _, a := range authorTokens {
		if _, ok := candidate[a]; ok {
			authorHits++
		}
	}
	if authorHits == 0 {
		return 0
	}

	titleHits := 0
	for _, t := range titleTokens {
		if _, ok := candidate[t]; ok {
			titleHits++
		}
	}
	need := 1
	if len(titleTokens) >= 3 {
		need = 2
	}
	if titleHits < need {
		return 0
	}
	return authorHits + titleHits
}

// Variants builds the search strings tried against the indexer, most specific
// first. Duplicates are removed case-insensitively.
func Variants(author, title string) []string {
	var variants []string
	variants = append(variants,
		author+" "+title,
		title+" "+author,
		title,
		author,
	)
	if titleWords := strings.Fields(title); len(titleWords) > 1 {
		variants = append(variants, titleWords[len(titleWords)-1])
	}
	if authorWords := strings.Fields(author); len(authorWords) > 1 {
		variants = append(variants, authorWords[len(authorWords)-1]+" "+title)
	}

	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Ranker reports whether candidate a should rank before candidate b for the
// given query. The engine always submits the top-ranked candidate, so
// implementations can vary without touching the lifecycle logic.
type Ranker func(q Query, a, b Candidate) bool

// DefaultRanker prefers candidates whose title echoes more of the query,
// keeping indexer order between equals.
func DefaultRanker(q Query, a, b Candidate) bool {
	return matchStrength(q.Author, q.Title, a.Title) > matchStrength(q.Author, q.Title, b.Title)
}

// rank returns candidates sorted by the ranker, best first. The sort is
// stable so the indexer's own ordering breaks ties.
func rank(r Ranker, q Query, cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool { return r(q, out[i], out[j]) })
	return out
}
