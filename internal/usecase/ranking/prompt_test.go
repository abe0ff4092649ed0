package ranking

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/doshi-kevin/medrec/internal/domain"
)

func rankItems() []domain.RankItem {
	return []domain.RankItem{
		{ID: "m1", Name: "Paracip 500", TherapeuticClass: "Antipyretic",
			Uses: "fever and mild pain", Confidence: 0.94},
		{ID: "m2", Name: "Coughnil", TherapeuticClass: "Antitussive",
			Uses: "dry cough", SideEffects: []string{"drowsiness"}, Confidence: 0.87},
	}
}

func TestBuildRankPrompt(t *testing.T) {
	prompt := buildRankPrompt(domain.RankRequest{
		Symptoms: []string{"fever", "cough"},
		Items:    rankItems(),
	})

	for _, want := range []string{
		"fever, cough",
		"id=m1", "id=m2",
		`"Paracip 500"`,
		"confidence=0.94",
		"side effects: drowsiness",
		`"ranking"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestParseRankResponse_Valid(t *testing.T) {
	raw := `{"ranking":[
		{"id":"m2","explanation":"Directly targets the dry cough.","contraindications":["avoid when driving"]},
		{"id":"m1","explanation":"Covers the fever."}
	]}`

	result, err := parseRankResponse(raw, rankItems())
	if err != nil {
		t.Fatalf("parseRankResponse() error = %v", err)
	}

	if len(result.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(result.Items))
	}
	if result.Items[0].ID != "m2" || result.Items[1].ID != "m1" {
		t.Errorf("order = [%s, %s], want [m2, m1]", result.Items[0].ID, result.Items[1].ID)
	}
	if !reflect.DeepEqual(result.Items[0].Contraindications, []string{"avoid when driving"}) {
		t.Errorf("contraindications = %v", result.Items[0].Contraindications)
	}
}

func TestParseRankResponse_CodeFences(t *testing.T) {
	raw := "```json\n" +
		`{"ranking":[{"id":"m1","explanation":"a"},{"id":"m2","explanation":"b"}]}` +
		"\n```"

	result, err := parseRankResponse(raw, rankItems())
	if err != nil {
		t.Fatalf("parseRankResponse() error = %v", err)
	}
	if len(result.Items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(result.Items))
	}
}

func TestParseRankResponse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "not json", raw: "Sure! Here are the rankings:"},
		{name: "too short", raw: `{"ranking":[{"id":"m1","explanation":"a"}]}`},
		{name: "too long", raw: `{"ranking":[{"id":"m1","explanation":"a"},{"id":"m2","explanation":"b"},{"id":"m3","explanation":"c"}]}`},
		{name: "alien id", raw: `{"ranking":[{"id":"m1","explanation":"a"},{"id":"zz","explanation":"b"}]}`},
		{name: "duplicate id", raw: `{"ranking":[{"id":"m1","explanation":"a"},{"id":"m1","explanation":"b"}]}`},
		{name: "unknown field", raw: `{"ranking":[{"id":"m1","explanation":"a"},{"id":"m2","explanation":"b"}],"extra":1}`},
		{name: "trailing data", raw: `{"ranking":[{"id":"m1","explanation":"a"},{"id":"m2","explanation":"b"}]} also note`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseRankResponse(tt.raw, rankItems()); err == nil {
				t.Errorf("parseRankResponse(%q) succeeded, want error", tt.raw)
			}
		})
	}
}

func TestBuildSafetyPrompt(t *testing.T) {
	prompt := buildSafetyPrompt(domain.PatientProfile{
		Medicines:  []string{"Aspirin", "Ibuprofen"},
		Allergies:  []string{"Penicillin"},
		Conditions: []string{"Hypertension"},
	}, rankItems())

	for _, want := range []string{
		"Aspirin, Ibuprofen",
		"Penicillin",
		"Hypertension",
		"Paracip 500",
		`"status"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildSafetyPrompt_EmptyProfileFields(t *testing.T) {
	prompt := buildSafetyPrompt(domain.PatientProfile{}, rankItems())
	if !strings.Contains(prompt, "allergies: none") {
		t.Errorf("prompt should spell out empty fields:\n%s", prompt)
	}
}

func TestParseSafetyResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    domain.SafetyStatus
		wantErr bool
	}{
		{name: "safe", raw: `{"status":"safe","warnings":[]}`, want: domain.SafetySafe},
		{name: "caution with warnings",
			raw:  `{"status":"caution","warnings":["aspirin interacts with ibuprofen"]}`,
			want: domain.SafetyCaution},
		{name: "case folded", raw: `{"status":"Safe"}`, want: domain.SafetySafe},
		{name: "unknown is reserved", raw: `{"status":"unknown"}`, wantErr: true},
		{name: "alien status", raw: `{"status":"fine"}`, wantErr: true},
		{name: "not json", raw: "all good", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := parseSafetyResponse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseSafetyResponse(%q) succeeded, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSafetyResponse() error = %v", err)
			}
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short unchanged", in: "fever", max: 10, want: "fever"},
		{name: "exact unchanged", in: "fever", max: 5, want: "fever"},
		{name: "ascii cut", in: "fever and chills", max: 5, want: "fever..."},
		{name: "rune boundary", in: "発熱と咳", max: 4, want: "発..."},
		{name: "mid rune backs up", in: "発熱と咳", max: 5, want: "発..."},
		{name: "all multibyte cut", in: "ää", max: 3, want: "ä..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8: %q", tt.in, tt.max, got)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `{"a":1}`, want: `{"a":1}`},
		{in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: "  {\"a\":1}  ", want: `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
