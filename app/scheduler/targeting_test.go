package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openpromo/hermes/models"
	"github.com/openpromo/hermes/utils"
)

func testSignals() models.AudienceSignals {
	return models.AudienceSignals{
		{Category: "location", Value: "Berlin"},
		{Category: "skill", Value: "golang"},
		{Category: "keyword", Value: "backend"},
		{Category: "industry", Value: "fintech"},
		{Category: "seniority", Value: "senior"},
	}
}

func TestMapTargeting(t *testing.T) {
	targeting := MapTargeting(testSignals(), utils.ToPtr(0.9))

	assert.Equal(t, []string{"Berlin"}, targeting.Locations)
	assert.Equal(t, []string{"golang", "backend"}, targeting.Keywords)
	assert.Equal(t, []string{"fintech"}, targeting.Industries)
	assert.Equal(t, []string{"senior"}, targeting.Seniorities)
	assert.False(t, targeting.Broad())
}

func TestMapTargetingLowConfidenceProducesBroadDefault(t *testing.T) {
	targeting := MapTargeting(testSignals(), utils.ToPtr(0.2))
	assert.True(t, targeting.Broad())
}

func TestMapTargetingConfidenceExactlyAtThreshold(t *testing.T) {
	// The gate is strictly below the threshold; exactly 0.25 is trusted.
	targeting := MapTargeting(testSignals(), utils.ToPtr(ClusterConfidenceThreshold))
	assert.False(t, targeting.Broad())
}

func TestMapTargetingNilConfidenceIsTrusted(t *testing.T) {
	targeting := MapTargeting(testSignals(), nil)
	assert.False(t, targeting.Broad())
}

func TestMapTargetingDropsUnknownCategories(t *testing.T) {
	signals := models.AudienceSignals{
		{Category: "zodiac_sign", Value: "aries"},
		{Category: "skill", Value: "golang"},
	}
	targeting := MapTargeting(signals, nil)

	assert.Equal(t, []string{"golang"}, targeting.Keywords)
	assert.Empty(t, targeting.Locations)
	assert.Empty(t, targeting.Industries)
	assert.Empty(t, targeting.Seniorities)
}

func TestMapTargetingIsDeterministic(t *testing.T) {
	first := MapTargeting(testSignals(), utils.ToPtr(0.5))
	second := MapTargeting(testSignals(), utils.ToPtr(0.5))
	assert.Equal(t, first, second)
}

func TestMapTargetingEmptySignals(t *testing.T) {
	targeting := MapTargeting(nil, utils.ToPtr(0.9))
	assert.True(t, targeting.Broad())
}
