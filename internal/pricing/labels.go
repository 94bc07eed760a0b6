package pricing

import "github.com/erazemk/prodaja/internal/model"

var conditionLabels = map[model.Platform]map[model.Condition]string{
	model.PlatformX: {
		model.ConditionNew:       "New",
		model.ConditionGood:      "Good",
		model.ConditionScrap:     "Scrap",
		model.ConditionAsNew:     "Good",
		model.ConditionExcellent: "Good",
		model.ConditionUsable:    "Scrap",
	},
	model.PlatformY: {
		model.ConditionNew:       "3 stars (Excellent)",
		model.ConditionGood:      "2 stars (Good)",
		model.ConditionScrap:     "1 star (Usable)",
		model.ConditionAsNew:     "3 stars (Excellent)",
		model.ConditionExcellent: "3 stars (Excellent)",
		model.ConditionUsable:    "1 star (Usable)",
	},
	model.PlatformZ: {
		model.ConditionNew:       "New",
		model.ConditionGood:      "Good",
		model.ConditionScrap:     "Good",
		model.ConditionAsNew:     "As New",
		model.ConditionExcellent: "As New",
		model.ConditionUsable:    "Good",
	},
}

// ConditionLabel returns how platform advertises a phone in condition.
// Conditions a platform has no grade for are advertised as Good.
func ConditionLabel(condition model.Condition, platform model.Platform) string {
	labels, ok := conditionLabels[platform]
	if !ok {
		return string(condition)
	}
	if label, ok := labels[condition]; ok {
		return label
	}
	return labels[model.ConditionGood]
}
