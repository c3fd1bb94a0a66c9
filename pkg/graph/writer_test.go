package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarsy-labs/extrakt/pkg/confidence"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

func TestCreateObjectStampsAuditPropertiesAndReviewLabel(t *testing.T) {
	svc := newFakeGraphService()
	w := New(svc)

	llmConf := 0.6
	candidate := models.CandidateEntity{
		TypeName:    "Person",
		Name:        "Ada Lovelace",
		Description: "mathematician",
		Properties:  map[string]interface{}{"role": "mathematician"},
		Confidence:  &llmConf,
	}

	id, err := w.CreateObject(context.Background(), candidate, 0.6, confidence.BandReview, "proj-1", "org-1", "doc-1", "job-1")
	require.NoError(t, err)

	obj := svc.objects[id]
	require.NotNil(t, obj)
	assert.Equal(t, models.ObjectStatus("draft"), obj.Status)
	assert.Equal(t, []string{models.LabelRequiresReview}, obj.Labels)
	assert.Equal(t, 0.6, obj.Properties[models.PropExtractionConfidence])
	assert.Equal(t, 0.6, obj.Properties[models.PropExtractionLLMConfidence])
	assert.Equal(t, "doc-1", obj.Properties[models.PropExtractionSourceID])
	assert.Equal(t, "job-1", obj.Properties[models.PropExtractionJobID])
}

func TestCreateObjectAcceptedBandNoLabel(t *testing.T) {
	svc := newFakeGraphService()
	w := New(svc)
	candidate := models.CandidateEntity{TypeName: "Person", Name: "Ada"}

	id, err := w.CreateObject(context.Background(), candidate, 0.9, confidence.BandAuto, "proj-1", "org-1", "doc-1", "job-1")
	require.NoError(t, err)

	obj := svc.objects[id]
	assert.Equal(t, models.ObjectStatus("accepted"), obj.Status)
	assert.Empty(t, obj.Labels)
}

func TestMergeObjectPreservesFirstSourceID(t *testing.T) {
	svc := newFakeGraphService()
	svc.objects["obj-1"] = &models.GraphObject{
		ID: "obj-1",
		Properties: map[string]interface{}{
			"name":                     "Ada",
			"tags":                     []interface{}{"math"},
			models.PropExtractionSourceID: "doc-original",
		},
	}
	w := New(svc)

	candidate := models.CandidateEntity{
		Name:       "Ada Lovelace",
		Properties: map[string]interface{}{"tags": []interface{}{"math", "computing"}},
	}

	err := w.MergeObject(context.Background(), "obj-1", candidate, 0.7, "job-2")
	require.NoError(t, err)

	merged := svc.merged["obj-1"]
	assert.Equal(t, "doc-original", merged[models.PropExtractionSourceID])
	assert.ElementsMatch(t, []interface{}{"math", "computing"}, merged["tags"])
	assert.Equal(t, "job-2", merged[models.PropExtractionJobID])
}

func TestLinkChunksWritesWeightedLinks(t *testing.T) {
	svc := newFakeGraphService()
	w := New(svc)

	err := w.LinkChunks(context.Background(), "obj-1", []string{"chunk-1", "chunk-2"}, "job-1")
	require.NoError(t, err)
	require.Len(t, svc.links, 2)
	assert.Equal(t, 0.8, svc.links[0].Weight)
	assert.Equal(t, "job-1", svc.links[0].JobID)
}
