package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// modelIdentifierPattern is the grammar for model override identifiers.
var modelIdentifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// UserSettings holds per-user preferences read by the orchestrator.
// Written only through the explicit settings-update path.
type UserSettings struct {
	UserID string `json:"user_id"`
	Mode   Mode   `json:"mode"`
	// Model optionally overrides the agent model identifier.
	Model string `json:"model,omitempty"`
	// Language is a normalized language code like "en" or "pt-BR".
	Language string `json:"language,omitempty"`
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged;
// an explicit empty string clears the field.
type SettingsPatch struct {
	Mode     *string `json:"mode,omitempty"`
	Model    *string `json:"model,omitempty"`
	Language *string `json:"language,omitempty"`
}

// DefaultSettings returns the settings a user starts with.
func DefaultSettings(userID string) UserSettings {
	return UserSettings{UserID: userID, Mode: ModeGoAll}
}

// ValidateModel checks a model override against the identifier grammar.
// The empty string clears the override and is always valid.
func ValidateModel(model string) error {
	if model == "" {
		return nil
	}
	if !modelIdentifierPattern.MatchString(model) {
		return fmt.Errorf("%w: model %q", ErrInvalidSettings, model)
	}
	return nil
}

// NormalizeLanguage lower-cases the primary subtag while preserving the
// region tag ("PT-br" -> "pt-BR"). Path separators are rejected outright
// since language codes end up in provider request paths.
func NormalizeLanguage(lang string) (string, error) {
	if lang == "" {
		return "", nil
	}
	if strings.ContainsAny(lang, "/\\") {
		return "", fmt.Errorf("%w: language %q", ErrInvalidSettings, lang)
	}
	parts := strings.SplitN(lang, "-", 2)
	out := strings.ToLower(parts[0])
	if len(parts) == 2 {
		out += "-" + strings.ToUpper(parts[1])
	}
	return out, nil
}
