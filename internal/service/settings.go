package service

import (
	"context"
	"fmt"

	"github.com/mindgate/mindgate/internal/domain"
)

// GetSettings returns the user's settings, defaults included.
func (s *Service) GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	return s.store.GetSettings(ctx, userID)
}

// UpdateSettings validates and applies a partial settings update, returning
// the resulting settings.
func (s *Service) UpdateSettings(ctx context.Context, userID string, patch domain.SettingsPatch) (*domain.UserSettings, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if patch.Mode != nil {
		mode, err := domain.ParseMode(*patch.Mode)
		if err != nil {
			return nil, err
		}
		settings.Mode = mode
	}
	if patch.Model != nil {
		if err := domain.ValidateModel(*patch.Model); err != nil {
			return nil, err
		}
		settings.Model = *patch.Model
	}
	if patch.Language != nil {
		lang, err := domain.NormalizeLanguage(*patch.Language)
		if err != nil {
			return nil, err
		}
		settings.Language = lang
	}

	if err := s.store.UpdateSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	return settings, nil
}
