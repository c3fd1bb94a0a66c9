package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tarsy-labs/extrakt/pkg/models"
	"github.com/tarsy-labs/extrakt/pkg/verify"
)

func ptr(f float64) *float64 { return &f }

func TestScoreUsesPreVerifiedConfidenceVerbatim(t *testing.T) {
	c := models.CandidateEntity{Confidence: ptr(0.92)}
	assert.Equal(t, 0.92, Score(c, nil))
}

func TestScoreClampsPreVerifiedConfidence(t *testing.T) {
	c := models.CandidateEntity{Confidence: ptr(1.5)}
	assert.Equal(t, 1.0, Score(c, nil))
}

func TestScoreHeuristicFullCredit(t *testing.T) {
	c := models.CandidateEntity{
		Name:        "Ada Lovelace",
		Description: "A 19th century mathematician and writer.",
		Properties:  map[string]interface{}{"role": "mathematician"},
	}
	assert.InDelta(t, 1.0, Score(c, nil), 0.001)
}

func TestScoreHeuristicNameOnly(t *testing.T) {
	c := models.CandidateEntity{Name: "Ada Lovelace"}
	assert.InDelta(t, 0.40, Score(c, nil), 0.001)
}

func TestScoreVerificationBoostsConfirmedEntity(t *testing.T) {
	c := models.CandidateEntity{Name: "Ada", Description: "x", Properties: map[string]interface{}{"a": 1}}
	base := Score(c, nil)
	boosted := Score(c, map[string]verify.Result{"ada": {Verified: true, Confidence: 0.9}})
	assert.Greater(t, boosted, base)
	assert.InDelta(t, 0.94, boosted, 0.001)
}

func TestScoreVerificationPenalizesLowConfidence(t *testing.T) {
	c := models.CandidateEntity{Name: "Ada", Description: "x", Properties: map[string]interface{}{"a": 1}}
	base := Score(c, nil)
	penalized := Score(c, map[string]verify.Result{"ada": {Verified: false, Confidence: 0.1}})
	assert.Less(t, penalized, base)
}

func TestScoreVerificationNoAdjustmentInMidRange(t *testing.T) {
	c := models.CandidateEntity{Name: "Ada"}
	base := Score(c, nil)
	unchanged := Score(c, map[string]verify.Result{"ada": {Verified: false, Confidence: 0.5}})
	assert.Equal(t, base, unchanged)
}
