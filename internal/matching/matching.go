// Package matching suggests lost items that may correspond to a found item.
//
// Matching is plain keyword overlap: tokens from the found item's title and
// description are looked up as substrings of each lost item's title and
// description, and tokens from its location in each lost item's location.
// False positives are fine since a claimant still has to submit proof and
// the finder still decides.
package matching

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/erazemk/lostfound/internal/model"
)

// MaxCandidates caps the number of suggestions returned.
const MaxCandidates = 10

// minTokenLen is the shortest token kept; shorter words carry no signal.
const minTokenLen = 3

// minLocationLen is the shortest trimmed location used for matching.
const minLocationLen = 4

var stopWords = map[string]bool{
	"the": true, "and": true, "or": true, "a": true, "an": true, "is": true,
	"was": true, "for": true, "with": true, "this": true, "that": true, "from": true,
}

// FindCandidates returns lost items from pool that may be the found item,
// newest first. The result does not depend on the order of pool.
func FindCandidates(found model.Item, pool []model.Item) []model.Item {
	if found.Status != model.ItemStatusFound {
		return nil
	}

	keywords := Keywords(found.Title, found.Description)
	places := LocationKeywords(found.Location)
	if len(keywords) == 0 && len(places) == 0 {
		return nil
	}

	var out []model.Item
	for _, c := range pool {
		if c.Status != model.ItemStatusLost || c.ID == found.ID || c.Claimed {
			continue
		}
		if found.Category != "" && c.Category != found.Category {
			continue
		}
		if containsAny(c.Title, keywords) || containsAny(c.Description, keywords) || containsAny(c.Location, places) {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return out
}

// Keywords tokenizes each text on whitespace and returns the distinct
// surviving tokens in first-seen order.
func Keywords(texts ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, text := range texts {
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			if keep(tok) && !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}

// LocationKeywords tokenizes a location on whitespace and commas. Locations
// too short to be meaningful yield no tokens.
func LocationKeywords(location string) []string {
	location = strings.TrimSpace(location)
	if utf8.RuneCountInString(location) < minLocationLen {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	fields := strings.FieldsFunc(strings.ToLower(location), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	for _, tok := range fields {
		if keep(tok) && !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

func keep(tok string) bool {
	return utf8.RuneCountInString(tok) >= minTokenLen && !stopWords[tok]
}

func containsAny(text string, tokens []string) bool {
	if len(tokens) == 0 || text == "" {
		return false
	}
	text = strings.ToLower(text)
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
