package model

/*

Settings is the app-wide singleton configuration record.

Features maps feature name (the section names, plus any action flags) to a
boolean. Absence of a key defaults to enabled, so a freshly created
deployment has everything turned on.

*/

type Settings struct {
	Theme       string          `json:"theme"`
	Language    string          `json:"language"`
	Features    map[string]bool `json:"features"`
	LastUpdated int64           `json:"lastUpdated,omitempty"`
}

const (
	DefaultTheme    = "light"
	DefaultLanguage = "ar"
)

// DefaultSettings returns the settings used when the singleton record is
// absent from the store.
func DefaultSettings() *Settings {
	return &Settings{
		Theme:    DefaultTheme,
		Language: DefaultLanguage,
		Features: map[string]bool{},
	}
}

// FeatureEnabled implements the absence-defaults-to-enabled rule.
func (s *Settings) FeatureEnabled(name string) bool {
	if s == nil || s.Features == nil {
		return true
	}
	enabled, ok := s.Features[name]
	if !ok {
		return true
	}
	return enabled
}
