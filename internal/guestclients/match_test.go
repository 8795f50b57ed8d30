package guestclients

import (
	"testing"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
)

func strptr(s string) *string { return &s }

func TestRankMatchesOrdersBySpecificity(t *testing.T) {
	candidates := []models.GuestClient{
		{ID: uuid.New(), Name: "Jane Doette"},
		{ID: uuid.New(), Name: "Jane Doe"},
		{ID: uuid.New(), Name: "Someone Else", Phone: strptr("555-0101")},
		{ID: uuid.New(), Name: "Another Person", Email: strptr("jane@example.com")},
		{ID: uuid.New(), Name: "Unrelated"},
	}

	matches := rankMatches(candidates, "Jane Doe", "jane@example.com", "555-0101")
	if len(matches) != 4 {
		t.Fatalf("expected 4 matches, got %d", len(matches))
	}

	expected := []MatchType{MatchEmail, MatchPhone, MatchExactName, MatchSimilarName}
	for i, want := range expected {
		if matches[i].MatchType != want {
			t.Errorf("position %d: expected %s got %s", i, want, matches[i].MatchType)
		}
	}
}

func TestRankMatchesEmailIsCaseInsensitive(t *testing.T) {
	candidates := []models.GuestClient{
		{ID: uuid.New(), Name: "G", Email: strptr("Jane@Example.COM")},
	}
	matches := rankMatches(candidates, "", "jane@example.com", "")
	if len(matches) != 1 || matches[0].MatchType != MatchEmail {
		t.Fatalf("expected one email match, got %v", matches)
	}
}

func TestSimilarNameRequiresLength(t *testing.T) {
	// two-character fragments collide with half the directory
	if similarName("Al", "Alice Lang") {
		t.Fatal("short probe should not match")
	}
	if !similarName("Jane", "Jane Doe") {
		t.Fatal("expected substring match")
	}
	if !similarName("Jane Doe", "jane") {
		t.Fatal("expected reverse substring match, case-insensitive")
	}
}

func TestExactNameIsCaseSensitive(t *testing.T) {
	candidates := []models.GuestClient{
		{ID: uuid.New(), Name: "jane doe"},
	}
	matches := rankMatches(candidates, "Jane Doe", "", "")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].MatchType != MatchSimilarName {
		t.Fatalf("case-differing name should rank as similar, got %s", matches[0].MatchType)
	}
}
