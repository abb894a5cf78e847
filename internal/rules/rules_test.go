package rules

import (
	"errors"
	"testing"

	"storefront/backend/internal/domain"
)

func TestParseValidRecords(t *testing.T) {
	raw := []byte(`[
		{"input": ["RED MUG"], "suggest": "Blue Mug", "expected_utility": 120},
		{"input": ["RED MUG", "TEA COSY"], "suggest": " Saucer ", "expected_utility": 300.5}
	]`)

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(got))
	}
	if got[1].Suggest != "Saucer" || got[1].ExpectedUtility != 300.5 || len(got[1].Input) != 2 {
		t.Fatalf("unexpected second rule: %+v", got[1])
	}
}

func TestParseSkipsMalformedRecords(t *testing.T) {
	raw := []byte(`[
		{"input": ["A"], "suggest": "B", "expected_utility": 1},
		{"input": ["A"], "expected_utility": 1},
		{"suggest": "B", "expected_utility": 1},
		{"input": [], "suggest": "B", "expected_utility": 1},
		{"input": ["A", " "], "suggest": "B", "expected_utility": 1},
		{"input": ["A"], "suggest": "", "expected_utility": 1},
		{"input": ["A"], "suggest": "B"},
		{"input": "A", "suggest": "B", "expected_utility": 1},
		{"input": ["A"], "suggest": "B", "expected_utility": "high"},
		42
	]`)

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the first record to survive, got %+v", got)
	}
}

func TestParseRejectsNonArray(t *testing.T) {
	_, err := Parse([]byte(`{"input": ["A"]}`))
	if !errors.Is(err, ErrMalformedSource) {
		t.Fatalf("expected ErrMalformedSource, got %v", err)
	}
}

func TestSetIsIsolatedFromCaller(t *testing.T) {
	input := []domain.AssociationRule{{Input: []string{"A"}, Suggest: "B", ExpectedUtility: 1}}
	set := NewSet(input, 7)
	input[0].Input[0] = "Z"
	input[0].Suggest = "Y"

	var seen []domain.AssociationRule
	set.Each(func(r domain.AssociationRule) bool {
		seen = append(seen, r)
		return true
	})
	if len(seen) != 1 || seen[0].Input[0] != "A" || seen[0].Suggest != "B" {
		t.Fatalf("set aliased caller data: %+v", seen)
	}
	if set.Generation() != 7 {
		t.Fatalf("expected generation 7, got %d", set.Generation())
	}

	copied := set.Rules()
	copied[0].Input[0] = "Q"
	if set.Rules()[0].Input[0] != "A" {
		t.Fatalf("Rules must return a copy")
	}
}

func TestNilSet(t *testing.T) {
	var s *Set
	if s.Len() != 0 || s.Generation() != 0 || s.Rules() != nil {
		t.Fatalf("nil set should behave as empty")
	}
	s.Each(func(domain.AssociationRule) bool {
		t.Fatalf("nil set must not visit rules")
		return false
	})
}

func TestFingerprintTracksContent(t *testing.T) {
	base := []domain.AssociationRule{{Input: []string{"A", "B"}, Suggest: "C", ExpectedUtility: 1.5}}

	if NewSet(base, 1).Fingerprint() != NewSet(base, 9).Fingerprint() {
		t.Fatalf("fingerprint must not depend on generation")
	}
	variants := [][]domain.AssociationRule{
		{{Input: []string{"A", "B"}, Suggest: "C", ExpectedUtility: 2}},
		{{Input: []string{"A"}, Suggest: "B", ExpectedUtility: 1.5}},
		{{Input: []string{"A", "B"}, Suggest: "D", ExpectedUtility: 1.5}},
		nil,
	}
	for i, v := range variants {
		if NewSet(v, 1).Fingerprint() == NewSet(base, 1).Fingerprint() {
			t.Fatalf("variant %d collided with the base fingerprint", i)
		}
	}
	var nilSet *Set
	if nilSet.Fingerprint() != "" {
		t.Fatalf("nil set should have no fingerprint")
	}
}

func TestSuggests(t *testing.T) {
	set := NewSet([]domain.AssociationRule{{Input: []string{"A"}, Suggest: "Cosy Pin", ExpectedUtility: 1}}, 1)

	if !set.Suggests(" cosy pin") {
		t.Fatalf("expected case-folded match")
	}
	if set.Suggests("A") {
		t.Fatalf("antecedent items are not suggestions")
	}
}
