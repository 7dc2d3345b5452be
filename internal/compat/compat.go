// Package compat scores how well two users' questionnaire answers match.
// It is pure: no I/O, no clock, no shared state.
package compat

import (
	"math"
	"strings"
)

const (
	intentWeight      = 50.0
	personalityWeight = 30.0
	hobbiesWeight     = 20.0

	intentMax      = 4.0
	personalityMax = 4.0

	MinScore = 19
	MaxScore = 99
)

// Answer values that earn partial credit.
const (
	StatusSingle       = "Single"
	StatusFocusingOnMe = "Focusing on me"

	LookingNewFriends = "New friends"
	LookingNotSure    = "Not sure yet"

	PersonalityMix       = "A mix of both"
	PersonalityIntrovert = "Introvert"
	PersonalityExtrovert = "Extrovert"

	CommunicationAnything = "A bit of everything"
)

// Questionnaire is the subset of profile answers the score depends on.
type Questionnaire struct {
	Personality        string
	CommunicationStyle string
	Hobbies            []string
	Year               string
	RelationshipStatus string
	LookingFor         string
}

// Score returns the compatibility of q1 and q2 in [MinScore, MaxScore].
// ok is false when either questionnaire is missing.
func Score(q1, q2 *Questionnaire) (score int, ok bool) {
	if q1 == nil || q2 == nil {
		return 0, false
	}

	total := intent(q1, q2)/intentMax*intentWeight +
		personality(q1, q2)/personalityMax*personalityWeight +
		jaccard(hobbySet(q1.Hobbies), hobbySet(q2.Hobbies))*hobbiesWeight

	rounded := int(math.RoundToEven(total))
	return clamp(rounded, MinScore, MaxScore), true
}

func intent(q1, q2 *Questionnaire) float64 {
	var s float64

	switch {
	case q1.RelationshipStatus == q2.RelationshipStatus:
		s += 2
	case isOneOf(q1.RelationshipStatus, StatusSingle, StatusFocusingOnMe) &&
		isOneOf(q2.RelationshipStatus, StatusSingle, StatusFocusingOnMe):
		s++
	}

	switch {
	case q1.LookingFor == q2.LookingFor:
		s++
	case isPair(q1.LookingFor, q2.LookingFor, LookingNewFriends, LookingNotSure):
		s += 0.5
	}

	if q1.Year == q2.Year {
		s++
	}
	return s
}

func personality(q1, q2 *Questionnaire) float64 {
	var s float64

	switch {
	case q1.Personality == q2.Personality:
		s += 2
	case q1.Personality == PersonalityMix || q2.Personality == PersonalityMix:
		s += 1.5
	case isPair(q1.Personality, q2.Personality, PersonalityIntrovert, PersonalityExtrovert):
		s += 0.5
	}

	switch {
	case q1.CommunicationStyle == q2.CommunicationStyle:
		s += 2
	case q1.CommunicationStyle == CommunicationAnything || q2.CommunicationStyle == CommunicationAnything:
		s += 1.5
	}
	return s
}

// hobbySet trims entries and drops empty ones.
func hobbySet(hobbies []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hobbies))
	for _, h := range hobbies {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		set[h] = struct{}{}
	}
	return set
}

// jaccard is |a∩b| / |a∪b|; 1 when both are empty, 0 when exactly one is.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func isOneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// isPair reports whether {a, b} is exactly {x, y}.
func isPair(a, b, x, y string) bool {
	return (a == x && b == y) || (a == y && b == x)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
