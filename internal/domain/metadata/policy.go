package metadata

import "strings"

// DefaultBlacklist lists words that mark a search candidate as a derivative
// of the track being looked up.
var DefaultBlacklist = []string{
	"compilation",
	"remix",
	"vs",
	"cover",
	"version",
	"instrumental",
	"restrung",
	"interlude",
}

// DefaultExcludedReleaseWords lists title substrings of releases that are not
// albums.
var DefaultExcludedReleaseWords = []string{"single", "ep", "maxi"}

// DefaultRequiredReleaseStatus is the only release status retained.
const DefaultRequiredReleaseStatus = "Official"

// Policy holds the textual filters applied to catalog results. Both are
// best-effort heuristics and are configurable.
type Policy struct {
	Blacklist             []string
	ExcludedReleaseWords  []string
	RequiredReleaseStatus string
}

// DefaultPolicy returns the built-in filters.
func DefaultPolicy() Policy {
	return Policy{
		Blacklist:             DefaultBlacklist,
		ExcludedReleaseWords:  DefaultExcludedReleaseWords,
		RequiredReleaseStatus: DefaultRequiredReleaseStatus,
	}
}

// blacklistFor returns the blacklist with every word found in the query
// removed, so a query is never rejected for words it asked for.
func (p Policy) blacklistFor(query string) []string {
	query = strings.ToLower(query)
	words := make([]string, 0, len(p.Blacklist))
	for _, w := range p.Blacklist {
		w = strings.ToLower(w)
		if w == "" || strings.Contains(query, w) {
			continue
		}
		words = append(words, w)
	}
	return words
}

func containsAny(s string, words []string) bool {
	s = strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// keepRelease reports whether a release referenced by a recording should be
// treated as an album.
func (p Policy) keepRelease(r ReleaseRef) bool {
	if p.RequiredReleaseStatus != "" && !strings.EqualFold(r.Status, p.RequiredReleaseStatus) {
		return false
	}
	title := strings.ToLower(r.Title)
	for _, w := range p.ExcludedReleaseWords {
		if w != "" && strings.Contains(title, strings.ToLower(w)) {
			return false
		}
	}
	return true
}
