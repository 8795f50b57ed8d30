package guestclients

import (
	"sort"
	"strings"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
)

// MatchType classifies how a guest matched the probe, from most to least
// specific. Exact identifiers outrank name overlap because names collide far
// more often than emails or phones.
type MatchType string

const (
	MatchEmail       MatchType = "email_match"
	MatchPhone       MatchType = "phone_match"
	MatchExactName   MatchType = "exact_name"
	MatchSimilarName MatchType = "similar_name"
)

var matchRank = map[MatchType]int{
	MatchEmail:       4,
	MatchPhone:       3,
	MatchExactName:   2,
	MatchSimilarName: 1,
}

// Match pairs a guest with the reason it was considered a duplicate candidate.
type Match struct {
	Guest     GuestClientDTO `json:"guest"`
	MatchType MatchType      `json:"match_type"`
}

// substring matches shorter than this are noise ("Al" matches half the
// directory), so similar-name matching requires more than minSimilarLen runes.
const minSimilarLen = 2

// classifyMatch returns the strongest match between the probe values and the
// candidate guest, or "" when nothing matches.
func classifyMatch(guest *models.GuestClient, name, email, phone string) MatchType {
	if email != "" && guest.Email != nil && strings.EqualFold(strings.TrimSpace(*guest.Email), email) {
		return MatchEmail
	}
	if phone != "" && guest.Phone != nil && strings.TrimSpace(*guest.Phone) == phone {
		return MatchPhone
	}
	if name != "" {
		if guest.Name == name {
			return MatchExactName
		}
		if similarName(guest.Name, name) {
			return MatchSimilarName
		}
	}
	return ""
}

// similarName reports whether either name contains the other,
// case-insensitive, requiring enough length to avoid short-string noise.
func similarName(a, b string) bool {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if len(la) <= minSimilarLen || len(lb) <= minSimilarLen {
		return false
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// rankMatches classifies each candidate and orders the result by
// match-specificity, strongest first.
func rankMatches(candidates []models.GuestClient, name, email, phone string) []Match {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)

	matches := make([]Match, 0)
	for i := range candidates {
		kind := classifyMatch(&candidates[i], name, email, phone)
		if kind == "" {
			continue
		}
		matches = append(matches, Match{Guest: *FromModel(&candidates[i]), MatchType: kind})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matchRank[matches[i].MatchType] > matchRank[matches[j].MatchType]
	})
	return matches
}
