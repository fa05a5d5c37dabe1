package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/icedl/icedl/internal/domain"
	"github.com/icedl/icedl/internal/ports"
)

// SettingsService lit et valide les réglages persistés. Les valeurs hors
// bornes sont ramenées dans la plage plutôt que refusées.
type SettingsService struct {
	repo   ports.SettingsRepository
	logger zerolog.Logger
}

func NewSettingsService(repo ports.SettingsRepository, logger zerolog.Logger) *SettingsService {
	return &SettingsService{repo: repo, logger: logger.With().Str("component", "settings").Logger()}
}

func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	st, err := s.repo.Get(ctx)
	if err != nil {
		return domain.DefaultSettings(), err
	}
	return clampSettings(st), nil
}

func (s *SettingsService) Put(ctx context.Context, st domain.Settings) (domain.Settings, error) {
	st = clampSettings(st)
	updated, err := s.repo.Put(ctx, st)
	if err != nil {
		return domain.Settings{}, err
	}
	s.logger.Info().Str("downloadDir", updated.DownloadDir).Msg("réglages mis à jour")
	return updated, nil
}

func clampSettings(st domain.Settings) domain.Settings {
	if st.WatchedPercentIndex < 0 {
		st.WatchedPercentIndex = 0
	}
	if st.WatchedPercentIndex >= len(domain.WatchedThresholds) {
		st.WatchedPercentIndex = len(domain.WatchedThresholds) - 1
	}
	if st.BufferDelaySeconds < 0 {
		st.BufferDelaySeconds = 0
	}
	return st
}
