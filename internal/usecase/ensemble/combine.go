package ensemble

import "sort"

// combined is one candidate's merged score before hydration into a
// Prediction.
type combined struct {
	id         string
	confidence float64
	best       float64
	perModel   map[string]float64
}

// combineScores merges per-model confidences into one combined confidence
// per candidate: a weighted average with the weights renormalized over the
// models that actually contributed, so a skipped model shifts weight onto
// the rest instead of silently dragging every candidate down.
//
// Pure function of its inputs. Ordering is total: descending combined
// confidence, then descending best single-model confidence, then ascending
// medicine id, so identical inputs produce identical output on every call.
func combineScores(
	candidates []string,
	perModel map[string]map[string]float64,
	weights map[string]float64,
) []combined {
	if len(candidates) == 0 || len(perModel) == 0 {
		return nil
	}

	totalWeight := 0.0
	for name := range perModel {
		totalWeight += weightOf(weights, name)
	}
	if totalWeight <= 0 {
		return nil
	}

	out := make([]combined, 0, len(candidates))
	for _, id := range candidates {
		scores := make(map[string]float64, len(perModel))
		sum := 0.0
		best := 0.0
		for name, modelScores := range perModel {
			s := modelScores[id]
			scores[name] = s
			sum += weightOf(weights, name) * s
			if s > best {
				best = s
			}
		}
		out = append(out, combined{
			id:         id,
			confidence: clamp01(sum / totalWeight),
			best:       best,
			perModel:   scores,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].confidence != out[j].confidence {
			return out[i].confidence > out[j].confidence
		}
		if out[i].best != out[j].best {
			return out[i].best > out[j].best
		}
		return out[i].id < out[j].id
	})

	return out
}

// weightOf returns a model's manifest weight, defaulting to 1 so models
// missing from the manifest still count equally.
func weightOf(weights map[string]float64, name string) float64 {
	if w, ok := weights[name]; ok && w > 0 {
		return w
	}
	return 1
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
