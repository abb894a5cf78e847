package rules

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/logging"
)

var ErrMalformedSource = errors.New("malformed rule source")

// record mirrors one entry of the rule source; pointers tell missing fields apart from zero values.
type record struct {
	Input           *[]string `json:"input"`
	Suggest         *string   `json:"suggest"`
	ExpectedUtility *float64  `json:"expected_utility"`
}

// Parse decodes a JSON array of rule records. Records that cannot form a
// valid rule are skipped; a payload that is not a JSON array is an error.
func Parse(raw []byte) ([]domain.AssociationRule, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}

	result := make([]domain.AssociationRule, 0, len(records))
	skipped := 0
	for _, msg := range records {
		var rec record
		if err := json.Unmarshal(msg, &rec); err != nil {
			skipped++
			continue
		}
		rule, ok := rec.toRule()
		if !ok {
			skipped++
			continue
		}
		result = append(result, rule)
	}

	if skipped > 0 {
		logging.Debug().Int("skipped", skipped).Int("parsed", len(result)).Msg("rule records skipped")
	}
	return result, nil
}

func (r record) toRule() (domain.AssociationRule, bool) {
	if r.Input == nil || r.Suggest == nil || r.ExpectedUtility == nil {
		return domain.AssociationRule{}, false
	}
	suggest := strings.TrimSpace(*r.Suggest)
	if suggest == "" {
		return domain.AssociationRule{}, false
	}
	utility := *r.ExpectedUtility
	if math.IsNaN(utility) || math.IsInf(utility, 0) {
		return domain.AssociationRule{}, false
	}
	if len(*r.Input) == 0 {
		return domain.AssociationRule{}, false
	}

	input := make([]string, 0, len(*r.Input))
	for _, item := range *r.Input {
		item = strings.TrimSpace(item)
		if item == "" {
			return domain.AssociationRule{}, false
		}
		input = append(input, item)
	}

	return domain.AssociationRule{
		Input:           input,
		Suggest:         suggest,
		ExpectedUtility: utility,
	}, true
}

// Set is an immutable snapshot of the loaded rules in source order.
type Set struct {
	rules       []domain.AssociationRule
	generation  uint64
	fingerprint string
}

// NewSet copies rules so later changes by the caller cannot leak in.
// generation identifies the load that produced the set.
func NewSet(rules []domain.AssociationRule, generation uint64) *Set {
	copied := make([]domain.AssociationRule, len(rules))
	for i, r := range rules {
		copied[i] = domain.AssociationRule{
			Input:           append([]string(nil), r.Input...),
			Suggest:         r.Suggest,
			ExpectedUtility: r.ExpectedUtility,
		}
	}
	return &Set{rules: copied, generation: generation, fingerprint: fingerprint(copied)}
}

// fingerprint hashes the rule content in order, so equal rule lists give equal
// fingerprints in any process.
func fingerprint(rules []domain.AssociationRule) string {
	h := sha1.New()
	for _, r := range rules {
		fmt.Fprintf(h, "%d\x1f", len(r.Input))
		for _, item := range r.Input {
			io.WriteString(h, item)
			io.WriteString(h, "\x1f")
		}
		io.WriteString(h, r.Suggest)
		io.WriteString(h, "\x1f")
		io.WriteString(h, strconv.FormatFloat(r.ExpectedUtility, 'g', -1, 64))
		io.WriteString(h, "\x1e")
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

func (s *Set) Generation() uint64 {
	if s == nil {
		return 0
	}
	return s.generation
}

// Fingerprint identifies the rule content independently of the load counter.
func (s *Set) Fingerprint() string {
	if s == nil {
		return ""
	}
	return s.fingerprint
}

// Suggests reports whether any rule suggests name, compared case-folded.
func (s *Set) Suggests(name string) bool {
	if s == nil {
		return false
	}
	key := domain.FoldName(name)
	for _, r := range s.rules {
		if domain.FoldName(r.Suggest) == key {
			return true
		}
	}
	return false
}

// Each visits rules in source order until fn returns false.
// fn must not retain or modify rule.Input.
func (s *Set) Each(fn func(rule domain.AssociationRule) bool) {
	if s == nil {
		return
	}
	for _, r := range s.rules {
		if !fn(r) {
			return
		}
	}
}

func (s *Set) Rules() []domain.AssociationRule {
	if s == nil {
		return nil
	}
	return NewSet(s.rules, s.generation).rules
}
