// Package confidence turns a candidate entity (plus optional verification
// signal) into a single confidence score in [0,1], and maps that score
// through the configured thresholds into a persistence decision.
package confidence

import (
	"strings"

	"github.com/tarsy-labs/extrakt/pkg/models"
	"github.com/tarsy-labs/extrakt/pkg/verify"
)

// Weights mirror the name/description/properties split the pre-verified
// pipeline uses to build its confidence upstream; the single-pass heuristic
// reuses the same weighting since no other scheme is given.
const (
	nameWeight        = 0.40
	descriptionWeight = 0.30
	propertiesWeight  = 0.30
)

// Score computes a final confidence in [0,1] for one candidate entity.
// If candidate.Confidence is already set, it is a pre-verified score and is
// used verbatim (clamped). Otherwise a heuristic score is computed and, if
// verifyResults has an entry for the entity's normalized name, adjusted.
func Score(candidate models.CandidateEntity, verifyResults map[string]verify.Result) float64 {
	if candidate.Confidence != nil {
		return clamp(*candidate.Confidence)
	}

	score := heuristicScore(candidate)

	if v, ok := verifyResults[verify.NormalizeName(candidate.Name)]; ok {
		switch {
		case v.Verified:
			score += min(0.10, v.Confidence*0.10)
		case v.Confidence < 0.30:
			score -= min(0.30, (0.30-v.Confidence)*0.50)
		}
	}

	return clamp(score)
}

// heuristicScore rewards a non-empty name, a substantive description, and
// populated properties, weighted 40/30/30.
func heuristicScore(candidate models.CandidateEntity) float64 {
	var score float64

	if strings.TrimSpace(candidate.Name) != "" {
		score += nameWeight
	}

	desc := strings.TrimSpace(candidate.Description)
	switch {
	case len(desc) >= 20:
		score += descriptionWeight
	case desc != "":
		score += descriptionWeight * 0.5
	}

	if len(candidate.Properties) > 0 {
		score += propertiesWeight
	}

	return score
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
