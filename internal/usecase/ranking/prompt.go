package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/doshi-kevin/medrec/internal/domain"
)

const systemPrompt = "You are a clinical decision-support assistant for a medicine " +
	"recommendation service. You rank candidate medicines against reported symptoms " +
	"and point out safety concerns. You are conservative, do not invent facts, and " +
	"return strict JSON only."

// buildRankPrompt renders the candidate list and symptom context for the
// ranking call. Candidates are presented in ensemble order.
func buildRankPrompt(req domain.RankRequest) string {
	var b strings.Builder
	b.WriteString("Patient symptoms: ")
	b.WriteString(strings.Join(req.Symptoms, ", "))
	b.WriteString("\n\nCandidate medicines, in current order:\n")
	for i, item := range req.Items {
		fmt.Fprintf(&b, "%d. id=%s name=%q class=%q confidence=%.2f\n",
			i+1, item.ID, item.Name, item.TherapeuticClass, item.Confidence)
		if item.Uses != "" {
			fmt.Fprintf(&b, "   uses: %s\n", truncate(item.Uses, 200))
		}
		if len(item.SideEffects) > 0 {
			fmt.Fprintf(&b, "   side effects: %s\n", strings.Join(item.SideEffects, ", "))
		}
	}
	b.WriteString("\nReorder the candidates from most to least suitable for the symptoms. " +
		"For every candidate give a brief explanation (2-3 sentences) why it is or is " +
		"not a good fit, and list contraindication notes when relevant.\n\n" +
		`Return strict JSON: {"ranking":[{"id":"...","explanation":"...","contraindications":["..."]}]}` +
		"\nInclude exactly one entry per candidate id and no other ids.")
	return b.String()
}

type rankedEntry struct {
	ID                string   `json:"id"`
	Explanation       string   `json:"explanation"`
	Contraindications []string `json:"contraindications,omitempty"`
}

type rankResponse struct {
	Ranking []rankedEntry `json:"ranking"`
}

// parseRankResponse validates a ranking reply against the request: it must
// be strict JSON carrying exactly one entry per requested candidate id, in
// any order. Anything else is rejected and counts as a ranking failure.
func parseRankResponse(text string, want []domain.RankItem) (domain.RankResult, error) {
	clean := stripCodeFences(text)
	if clean == "" {
		return domain.RankResult{}, fmt.Errorf("empty response")
	}

	var resp rankResponse
	if err := decodeStrict(clean, &resp); err != nil {
		return domain.RankResult{}, err
	}

	if len(resp.Ranking) != len(want) {
		return domain.RankResult{}, fmt.Errorf(
			"response has %d entries, want %d", len(resp.Ranking), len(want))
	}

	requested := make(map[string]bool, len(want))
	for _, item := range want {
		requested[item.ID] = true
	}

	items := make([]domain.RankedItem, 0, len(resp.Ranking))
	seen := make(map[string]bool, len(resp.Ranking))
	for _, e := range resp.Ranking {
		if !requested[e.ID] {
			return domain.RankResult{}, fmt.Errorf("unknown candidate id %q in response", e.ID)
		}
		if seen[e.ID] {
			return domain.RankResult{}, fmt.Errorf("duplicate candidate id %q in response", e.ID)
		}
		seen[e.ID] = true
		items = append(items, domain.RankedItem{
			ID:                e.ID,
			Explanation:       strings.TrimSpace(e.Explanation),
			Contraindications: e.Contraindications,
		})
	}

	return domain.RankResult{Items: items}, nil
}

// buildSafetyPrompt renders a patient profile and the proposed medicines
// for an interaction check.
func buildSafetyPrompt(profile domain.PatientProfile, items []domain.RankItem) string {
	var b strings.Builder
	b.WriteString("Patient profile:\n")
	fmt.Fprintf(&b, "current medicines: %s\n", joinOrNone(profile.Medicines))
	fmt.Fprintf(&b, "allergies: %s\n", joinOrNone(profile.Allergies))
	fmt.Fprintf(&b, "conditions: %s\n", joinOrNone(profile.Conditions))
	b.WriteString("\nProposed medicines:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s (%s)\n", item.Name, item.TherapeuticClass)
	}
	b.WriteString("\nCheck for interactions between the current and proposed medicines " +
		"and for contraindications given the allergies and conditions.\n\n" +
		`Return strict JSON: {"status":"safe","warnings":[]}` +
		"\nStatus must be \"caution\" when anything needs attention, otherwise \"safe\". " +
		"Each warning is one short sentence.")
	return b.String()
}

type safetyResponse struct {
	Status   string   `json:"status"`
	Warnings []string `json:"warnings"`
}

// parseSafetyResponse validates an interaction check reply. The service may
// only answer safe or caution; "unknown" is reserved for check failures.
func parseSafetyResponse(text string) (domain.SafetyReport, error) {
	clean := stripCodeFences(text)
	if clean == "" {
		return domain.SafetyReport{}, fmt.Errorf("empty response")
	}

	var resp safetyResponse
	if err := decodeStrict(clean, &resp); err != nil {
		return domain.SafetyReport{}, err
	}

	status := domain.SafetyStatus(strings.ToLower(strings.TrimSpace(resp.Status)))
	switch status {
	case domain.SafetySafe, domain.SafetyCaution:
	default:
		return domain.SafetyReport{}, fmt.Errorf("invalid safety status %q", resp.Status)
	}

	return domain.SafetyReport{Status: status, Warnings: resp.Warnings}, nil
}

// decodeStrict parses exactly one JSON value: unknown fields and trailing
// data are both rejected.
func decodeStrict(text string, out any) error {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("trailing data after response")
	}
	return nil
}

// stripCodeFences removes a markdown code fence wrapper some models add
// despite the strict-JSON instruction.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// truncate shortens s to at most max bytes, backing up to a rune boundary
// so multi-byte characters are never split mid-sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
