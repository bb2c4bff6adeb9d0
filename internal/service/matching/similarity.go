package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/licitaware/procurement-match-backend/internal/domain/match"
)

// technicalTerms are acronyms whose co-occurrence in both texts earns a small
// precision bonus on top of the cosine score.
var technicalTerms = []string{"ti", "tic", "cpu", "gps", "led", "usb", "wifi", "cftv", "api", "erp"}

// CosineSimilarity computes cosine similarity between two vectors, clamped to
// [0, 1]. Mismatched lengths, empty vectors and zero-norm vectors score 0,
// so the zero-vector sentinel for empty text is non-matching by construction.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return match.SanitizeScore(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// EnhancedSimilarity combines cosine similarity with bounded lexical bonuses:
// shared words add 0.05 each (capped at 0.2), shared technical acronyms add
// 0.03 each (capped at 0.1). The result stays in [0, 1] and comes with a
// human-readable justification for the stored match.
func EnhancedSimilarity(vecA, vecB []float64, textA, textB string) (float64, string) {
	score := CosineSimilarity(vecA, vecB)
	justification := fmt.Sprintf("similaridade cosseno: %.3f", score)

	if textA == "" || textB == "" {
		return score, justification
	}

	lowerA := strings.ToLower(textA)
	lowerB := strings.ToLower(textB)

	var bonusNotes []string

	wordsA := toSet(strings.Fields(lowerA))
	wordsB := toSet(strings.Fields(lowerB))
	var common []string
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			common = append(common, w)
		}
	}
	if len(common) > 0 {
		score += math.Min(float64(len(common))*0.05, 0.2)
		if len(common) > 3 {
			common = common[:3]
		}
		bonusNotes = append(bonusNotes, "palavras comuns: "+strings.Join(common, ", "))
	}

	var tech []string
	for _, term := range technicalTerms {
		if strings.Contains(lowerA, term) && strings.Contains(lowerB, term) {
			tech = append(tech, term)
		}
	}
	if len(tech) > 0 {
		score += math.Min(float64(len(tech))*0.03, 0.1)
		bonusNotes = append(bonusNotes, "termos tecnicos: "+strings.Join(tech, ", "))
	}

	if len(bonusNotes) > 0 {
		justification += " + bonus (" + strings.Join(bonusNotes, "; ") + ")"
	}

	return match.SanitizeScore(score), justification
}

// Classify reports whether a score passes a threshold. The boundary is
// inclusive: a score exactly at the threshold passes. NaN never passes.
func Classify(score, threshold float64) bool {
	if math.IsNaN(score) {
		return false
	}
	return score >= threshold
}

func toSet(words []string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}
