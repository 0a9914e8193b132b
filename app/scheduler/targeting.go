package scheduler

import (
	"github.com/openpromo/hermes/models"
)

// ClusterConfidenceThreshold is the minimum cluster assignment confidence at
// which derived signals are trusted. Below it the mapper produces the broad
// default targeting: a low-confidence segment must widen reach, not narrow it.
const ClusterConfidenceThreshold = 0.25

// Signal categories recognized by the mapper. Signals with any other category
// are dropped, not errored.
const (
	SignalCategoryLocation  = "location"
	SignalCategorySkill     = "skill"
	SignalCategoryKeyword   = "keyword"
	SignalCategoryIndustry  = "industry"
	SignalCategorySeniority = "seniority"
)

// MapTargeting projects segmentation signals onto platform-agnostic
// targeting. Pure: identical input yields identical output, and the output
// field ordering follows the input signal ordering. When confidence is
// present and below the threshold the signals are ignored entirely and the
// broad default is returned, so platform translators fall back to deriving
// keywords from the ad's own text.
func MapTargeting(signals models.AudienceSignals, confidence *float64) models.Targeting {
	if confidence != nil && *confidence < ClusterConfidenceThreshold {
		return models.Targeting{}
	}

	var t models.Targeting
	for _, s := range signals {
		switch s.Category {
		case SignalCategoryLocation:
			t.Locations = append(t.Locations, s.Value)
		case SignalCategorySkill, SignalCategoryKeyword:
			t.Keywords = append(t.Keywords, s.Value)
		case SignalCategoryIndustry:
			t.Industries = append(t.Industries, s.Value)
		case SignalCategorySeniority:
			t.Seniorities = append(t.Seniorities, s.Value)
		}
	}
	return t
}
