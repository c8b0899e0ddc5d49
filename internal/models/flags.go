package models

// FeatureFlag is one entry in a service's flag configuration.
type FeatureFlag struct {
	Enabled bool `json:"enabled"`
	// Rollout is the percentage of traffic the flag applies to, 0–100.
	Rollout int `json:"rollout"`
}

// FeatureFlagSet is the typed schema of a flag ConfigMap payload. Flag
// mutation is always a deserialize → mutate → serialize round trip against
// this schema, never text substitution on the raw JSON.
type FeatureFlagSet struct {
	Flags map[string]FeatureFlag `json:"flags"`
}

// DisableAll turns every flag off and zeroes its rollout.
func (s *FeatureFlagSet) DisableAll() {
	for name, f := range s.Flags {
		f.Enabled = false
		f.Rollout = 0
		s.Flags[name] = f
	}
}

// Disable turns off a single flag. It reports whether the flag existed.
func (s *FeatureFlagSet) Disable(name string) bool {
	f, ok := s.Flags[name]
	if !ok {
		return false
	}
	f.Enabled = false
	f.Rollout = 0
	s.Flags[name] = f
	return true
}
