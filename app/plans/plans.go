// Package plans defines subscription tiers, the features each tier unlocks
// and the mapping from billing price ids to tiers.
package plans

import (
	"fmt"
	"math/bits"
	"strings"
)

// Tier is a subscription level.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ParseTier accepts a tier name in any case. Unknown names are an error.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierFree:
		return TierFree, nil
	case TierPro:
		return TierPro, nil
	case TierEnterprise:
		return TierEnterprise, nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// IsPremium reports whether the tier is exempt from daily quotas.
func (t Tier) IsPremium() bool {
	return t == TierPro || t == TierEnterprise
}

// DisplayName is the human-readable tier name used in upgrade messaging.
func (t Tier) DisplayName() string {
	switch t {
	case TierPro:
		return "Pro"
	case TierEnterprise:
		return "Enterprise"
	default:
		return "Free"
	}
}

// Feature is a gated capability of the application.
type Feature uint8

const (
	FeatureParaphrase Feature = iota
	FeatureSummary
	FeatureTranslation
	FeatureGrammar
	FeatureOCR
	FeatureTranscription
	FeatureExport
	FeatureAdvancedModes
	FeatureHumanizer
	FeatureBatchProcessing
	FeatureAPIAccess
	FeatureAnalytics

	featureCount
)

var featureNames = [featureCount]string{
	FeatureParaphrase:      "paraphrase",
	FeatureSummary:         "summary",
	FeatureTranslation:     "translation",
	FeatureGrammar:         "grammar",
	FeatureOCR:             "ocr",
	FeatureTranscription:   "transcription",
	FeatureExport:          "export",
	FeatureAdvancedModes:   "advanced_modes",
	FeatureHumanizer:       "humanizer",
	FeatureBatchProcessing: "batch_processing",
	FeatureAPIAccess:       "api_access",
	FeatureAnalytics:       "analytics",
}

func (f Feature) String() string {
	if f < featureCount {
		return featureNames[f]
	}
	return fmt.Sprintf("feature(%d)", uint8(f))
}

// MarshalText lets features appear by name in JSON payloads and map keys.
func (f Feature) MarshalText() ([]byte, error) {
	if f >= featureCount {
		return nil, fmt.Errorf("invalid feature %d", uint8(f))
	}
	return []byte(featureNames[f]), nil
}

func (f *Feature) UnmarshalText(b []byte) error {
	parsed, err := ParseFeature(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFeature resolves a feature by name. Hyphens are accepted in place of
// underscores so that URL segments like "batch-processing" work.
func ParseFeature(name string) (Feature, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for i, n := range featureNames {
		if n == normalized {
			return Feature(i), nil
		}
	}
	return 0, fmt.Errorf("unknown feature %q", name)
}

// AllFeatures lists every feature in declaration order.
func AllFeatures() []Feature {
	out := make([]Feature, 0, featureCount)
	for f := Feature(0); f < featureCount; f++ {
		out = append(out, f)
	}
	return out
}

// FeatureSet is a bitmask of features.
type FeatureSet uint32

// NewFeatureSet builds a set from the given features.
func NewFeatureSet(features ...Feature) FeatureSet {
	var s FeatureSet
	for _, f := range features {
		s |= 1 << f
	}
	return s
}

func (s FeatureSet) Has(f Feature) bool {
	return f < featureCount && s&(1<<f) != 0
}

// Union returns the features present in either set.
func (s FeatureSet) Union(other FeatureSet) FeatureSet {
	return s | other
}

func (s FeatureSet) Len() int {
	return bits.OnesCount32(uint32(s))
}

// Features lists the members of the set in declaration order.
func (s FeatureSet) Features() []Feature {
	out := make([]Feature, 0, s.Len())
	for f := Feature(0); f < featureCount; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

var (
	freeFeatures = NewFeatureSet(
		FeatureParaphrase,
		FeatureSummary,
		FeatureTranslation,
		FeatureGrammar,
	)
	proFeatures = freeFeatures.Union(NewFeatureSet(
		FeatureOCR,
		FeatureTranscription,
		FeatureExport,
		FeatureAdvancedModes,
	))
	enterpriseOnly = NewFeatureSet(
		FeatureHumanizer,
		FeatureBatchProcessing,
		FeatureAPIAccess,
		FeatureAnalytics,
	)
	enterpriseFeatures = proFeatures.Union(enterpriseOnly)

	meteredOperations = NewFeatureSet(
		FeatureParaphrase,
		FeatureSummary,
		FeatureTranslation,
		FeatureGrammar,
		FeatureOCR,
		FeatureTranscription,
		FeatureHumanizer,
	)
)

// TierFeatures returns the capability set unlocked by a tier. Unknown tiers
// get the free set.
func TierFeatures(t Tier) FeatureSet {
	switch t {
	case TierPro:
		return proFeatures
	case TierEnterprise:
		return enterpriseFeatures
	default:
		return freeFeatures
	}
}

// TierHasFeature checks if a tier includes a specific feature.
func TierHasFeature(t Tier, f Feature) bool {
	return TierFeatures(t).Has(f)
}

// IsEnterpriseOnly reports whether only the enterprise tier unlocks f.
func IsEnterpriseOnly(f Feature) bool {
	return enterpriseOnly.Has(f)
}

// RequiredTier is the lowest paid tier to advertise when f is denied.
func RequiredTier(f Feature) Tier {
	if IsEnterpriseOnly(f) {
		return TierEnterprise
	}
	return TierPro
}

// IsMetered reports whether f counts against the daily quota.
func IsMetered(f Feature) bool {
	return meteredOperations.Has(f)
}

// MeteredOperations lists the quota-counted operations.
func MeteredOperations() []Feature {
	return meteredOperations.Features()
}
