package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/medicine"
	"github.com/doshi-kevin/medrec/internal/domain/symptom"
)

// columnAliases maps each canonical column to the header spellings accepted
// for it. The merged reference CSVs in the wild carry suffixed headers
// (name_248k, use0), so both the clean and the raw names resolve.
var columnAliases = map[string][]string{
	"id":                {"id", "identifier", "medicine_id"},
	"name":              {"name", "medicine_name", "name_248k"},
	"therapeutic_class": {"therapeutic_class", "class", "therapeutic_class_248k"},
	"uses":              {"uses", "indications", "use0"},
	"side_effects":      {"side_effects", "sideeffects", "sideeffect0"},
	"substitutes":       {"substitutes", "alternatives", "substitute0"},
	"manufacturer":      {"manufacturer", "manufacturer_name"},
	"composition":       {"composition", "salt_composition"},
}

// requiredColumns must all be present in the header; a missing one is a
// startup-fatal dataset error. Composition is optional.
var requiredColumns = []string{
	"id", "name", "therapeutic_class", "uses",
	"side_effects", "substitutes", "manufacturer",
}

// Repo holds the reference medicine records and the derived lookup
// structures. Built once at startup, immutable afterwards, safe for
// concurrent reads.
type Repo struct {
	records      []medicine.Record
	byID         map[string]int
	recordTokens [][]string
	index        map[string][]int // canonical token -> record positions
	classes      []string
	classCode    map[string]int
	skipped      int
}

// Load reads the reference dataset from a CSV file and builds the symptom
// index against the vocabulary. maxRecords caps the rows loaded (0 means
// unlimited). Any error wraps domain.ErrDatasetLoad.
func Load(path string, vocab symptom.Vocabulary, maxRecords int) (*Repo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrDatasetLoad, path, err)
	}
	defer f.Close()

	repo, err := parse(f, vocab, maxRecords)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return repo, nil
}

func parse(r io.Reader, vocab symptom.Vocabulary, maxRecords int) (*Repo, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // merged exports have ragged rows; tolerate and guard per-field

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrDatasetLoad, err)
	}

	cols, missing := resolveColumns(header)
	if len(missing) > 0 {
		return nil, domain.NewMissingColumns(missing)
	}

	repo := &Repo{
		byID:      make(map[string]int),
		index:     make(map[string][]int),
		classCode: make(map[string]int),
	}
	classSet := make(map[string]bool)

	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrDatasetLoad, line, err)
		}
		if maxRecords > 0 && len(repo.records) >= maxRecords {
			break
		}

		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		id, name := field("id"), field("name")
		if id == "" || name == "" {
			repo.skipped++
			continue
		}
		if _, dup := repo.byID[id]; dup {
			repo.skipped++
			continue
		}

		rec := medicine.Reconstruct(
			id,
			name,
			field("composition"),
			field("therapeutic_class"),
			field("uses"),
			splitList(field("side_effects")),
			splitList(field("substitutes")),
			field("manufacturer"),
		)

		pos := len(repo.records)
		repo.records = append(repo.records, rec)
		repo.byID[id] = pos

		tokens := symptom.Extract(vocab, rec.Uses())
		repo.recordTokens = append(repo.recordTokens, tokens)
		for _, tok := range tokens {
			repo.index[tok] = append(repo.index[tok], pos)
		}

		if class := rec.TherapeuticClass(); class != "" {
			classSet[class] = true
		}
	}

	if len(repo.records) == 0 {
		return nil, fmt.Errorf("%w: no usable records", domain.ErrDatasetLoad)
	}

	repo.classes = make([]string, 0, len(classSet))
	for class := range classSet {
		repo.classes = append(repo.classes, class)
	}
	sort.Strings(repo.classes)
	for i, class := range repo.classes {
		repo.classCode[class] = i + 1 // 0 stays "unknown class"
	}

	return repo, nil
}

// resolveColumns maps canonical column names to header positions and
// reports the required columns that could not be resolved.
func resolveColumns(header []string) (map[string]int, []string) {
	byHeader := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if _, taken := byHeader[h]; !taken {
			byHeader[h] = i
		}
	}

	cols := make(map[string]int)
	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			if idx, ok := byHeader[alias]; ok {
				cols[canonical] = idx
				break
			}
		}
	}

	var missing []string
	for _, canonical := range requiredColumns {
		if _, ok := cols[canonical]; !ok {
			missing = append(missing, canonical)
		}
	}
	return cols, missing
}

// splitList splits a packed list cell on the separators the merged exports
// use (pipe, semicolon, comma) and drops empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ';' || r == ','
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Count returns the number of loaded records.
func (r *Repo) Count() int { return len(r.records) }

// Skipped returns the number of rows dropped during load (missing id or
// name, duplicate id).
func (r *Repo) Skipped() int { return r.skipped }

// Get returns a record by id.
func (r *Repo) Get(id string) (medicine.Record, error) {
	pos, ok := r.byID[id]
	if !ok {
		return medicine.Record{}, fmt.Errorf("%w: %s", domain.ErrMedicineNotFound, id)
	}
	return r.records[pos], nil
}

// All returns the loaded records in dataset order. Callers must not mutate
// the returned slice.
func (r *Repo) All() []medicine.Record { return r.records }

// TokensOf returns the canonical symptoms found in a record's uses text at
// load time. Nil for unknown ids.
func (r *Repo) TokensOf(id string) []string {
	pos, ok := r.byID[id]
	if !ok {
		return nil
	}
	return r.recordTokens[pos]
}

// MatchCounts returns, for every record whose uses text mentions at least
// one of the given canonical symptoms, how many of them it mentions.
func (r *Repo) MatchCounts(tokens []string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range tokens {
		for _, pos := range r.index[tok] {
			counts[r.records[pos].ID()]++
		}
	}
	return counts
}

// Classes returns the distinct therapeutic classes, sorted.
func (r *Repo) Classes() []string { return r.classes }

// ClassCode returns the stable ordinal for a therapeutic class. Codes start
// at 1; unknown classes report (0, false).
func (r *Repo) ClassCode(class string) (int, bool) {
	code, ok := r.classCode[class]
	return code, ok
}
