package config

import (
	"os"
	"strconv"
	"sync"
)

// FeatureFlags manages runtime feature toggles of the insight engine.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]bool
}

// Predefined feature flag names.
const (
	// FeatureDiffFuzzyMatch enables fuzzy concept matching when labels
	// change between graph versions.
	FeatureDiffFuzzyMatch = "diff.fuzzy_match"

	// FeatureTemplateWarnings enables teacher-style warnings derived
	// from the exam blueprint.
	FeatureTemplateWarnings = "template.style_warnings"

	// FeatureSessionJournal enables the local run journal.
	FeatureSessionJournal = "session.journal"
)

// featureDefaults holds the shipped state of every flag.
var featureDefaults = map[string]bool{
	FeatureDiffFuzzyMatch:   true,
	FeatureTemplateWarnings: true,
	FeatureSessionJournal:   true,
}

// LoadFeatureFlags loads feature flags from environment variables.
// Переменная FEATURE_<NAME> с точками, заменёнными на подчёркивания,
// переопределяет значение по умолчанию: FEATURE_DIFF_FUZZY_MATCH=false.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]bool, len(featureDefaults))}
	for name, enabled := range featureDefaults {
		if val := os.Getenv(envName(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				enabled = b
			}
		}
		ff.features[name] = enabled
	}
	return ff
}

// NewFeatureFlagsForTesting returns flags with shipped defaults and no
// environment overrides.
func NewFeatureFlagsForTesting() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]bool, len(featureDefaults))}
	for name, enabled := range featureDefaults {
		ff.features[name] = enabled
	}
	return ff
}

// IsEnabled reports whether a flag is on. Unknown flags are off.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.features[name]
}

// Set overrides a flag at runtime.
func (ff *FeatureFlags) Set(name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ff.features[name] = enabled
}

func envName(feature string) string {
	out := make([]byte, 0, len(feature)+8)
	out = append(out, "FEATURE_"...)
	for i := 0; i < len(feature); i++ {
		c := feature[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-('a'-'A'))
		case c == '.':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
