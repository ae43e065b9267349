package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindgate/mindgate/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestUpdateSettingsValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Unknown mode is rejected before it can reach any session.
	_, err := env.service.UpdateSettings(ctx, "u1", domain.SettingsPatch{Mode: strPtr("yolo")})
	require.ErrorIs(t, err, domain.ErrUnknownMode)

	// Model identifiers follow a strict grammar.
	_, err = env.service.UpdateSettings(ctx, "u1", domain.SettingsPatch{Model: strPtr("bad model!")})
	require.ErrorIs(t, err, domain.ErrInvalidSettings)

	// Language codes must not smuggle path separators.
	_, err = env.service.UpdateSettings(ctx, "u1", domain.SettingsPatch{Language: strPtr("en/../../etc")})
	require.ErrorIs(t, err, domain.ErrInvalidSettings)

	// A failed update leaves settings untouched.
	settings, err := env.service.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeGoAll, settings.Mode)
	assert.Empty(t, settings.Model)
}

func TestUpdateSettingsPartialPatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	updated, err := env.service.UpdateSettings(ctx, "u1", domain.SettingsPatch{
		Mode:  strPtr("approve"),
		Model: strPtr("sonnet-4.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeApprove, updated.Mode)
	assert.Equal(t, "sonnet-4.5", updated.Model)

	// Patching one field leaves the others alone.
	updated, err = env.service.UpdateSettings(ctx, "u1", domain.SettingsPatch{Language: strPtr("PT-br")})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeApprove, updated.Mode)
	assert.Equal(t, "sonnet-4.5", updated.Model)
	assert.Equal(t, "pt-BR", updated.Language)

	// An explicit empty string clears the override.
	updated, err = env.service.UpdateSettings(ctx, "u1", domain.SettingsPatch{Model: strPtr("")})
	require.NoError(t, err)
	assert.Empty(t, updated.Model)
}
