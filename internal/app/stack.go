package app

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/icedl/icedl/internal/domain"
	"github.com/icedl/icedl/internal/ports"
	"github.com/icedl/icedl/internal/resolver"
)

var reSourceIndex = regexp.MustCompile(`Source #(\d+)`)

// PlaylistEntry est une part résolue prête à jouer. LastPart est vrai sur
// la dernière entrée, détecté en sondant la part suivante avant de
// résoudre la courante.
type PlaylistEntry struct {
	Part     int    `json:"part"`
	Link     string `json:"link"`
	LastPart bool   `json:"lastPart"`
}

// StackService enchaîne les parts d'une source empilée: lecture de la
// table source<N>parts, résolution part par part, arrêt au premier trou.
type StackService struct {
	store    ports.SessionStore
	registry *resolver.Registry
	settings *SettingsService
	logger   zerolog.Logger
}

func NewStackService(store ports.SessionStore, registry *resolver.Registry, settings *SettingsService, logger zerolog.Logger) *StackService {
	return &StackService{
		store:    store,
		registry: registry,
		settings: settings,
		logger:   logger.With().Str("component", "stack").Logger(),
	}
}

// GetPart rend l'URL d'hébergeur de la part demandée, ErrNotFound au-delà
// de la dernière.
func (s *StackService) GetPart(ctx context.Context, sourceIndex, part int) (string, error) {
	parts, err := loadParts(ctx, s.store, sourceIndex)
	if err != nil {
		return "", err
	}
	u, ok := parts[part]
	if !ok {
		return "", ports.ErrNotFound
	}
	return u, nil
}

// SourceIndexFromName retrouve le numéro de source dans un libellé du
// type "Source #3 | MU | Multiple Parts".
func SourceIndexFromName(name string) (int, error) {
	m := reSourceIndex.FindStringSubmatch(name)
	if m == nil {
		return 0, &CodedError{Code: "invalid_params", Message: "source name carries no index"}
	}
	return strconv.Atoi(m[1])
}

// Watched rejoue une session de lecture multi-part et dit si la position
// finale franchit le seuil configuré. position est relative à la dernière
// part déclarée.
func (s *StackService) Watched(ctx context.Context, partDurations []float64, position float64) (bool, float64, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return false, 0, err
	}
	session := domain.NewPlaybackSession(st.WatchedPercentIndex)
	for _, d := range partDurations {
		session.AddPart(d)
	}
	session.Advance(position)
	return session.Watched(), session.Threshold, nil
}

// Resolve déroule la playlist d'une source. Pour une source simple c'est
// une entrée unique; pour une source empilée chaque part est résolue dans
// l'ordre et la suivante sondée pour marquer la fin. Un échec soft d'un
// resolver (attente annulée) tronque la playlist sans erreur.
func (s *StackService) Resolve(ctx context.Context, name, rawURL string, stacked bool) ([]PlaylistEntry, error) {
	if !stacked {
		res, err := s.registry.Resolve(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if res.Link == "" {
			return nil, nil
		}
		return []PlaylistEntry{{Part: 1, Link: res.Link, LastPart: true}}, nil
	}

	sourceIndex, err := SourceIndexFromName(name)
	if err != nil {
		return nil, err
	}

	var entries []PlaylistEntry
	for part := 1; ; part++ {
		partURL, err := s.GetPart(ctx, sourceIndex, part)
		if errors.Is(err, ports.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}

		_, nextErr := s.GetPart(ctx, sourceIndex, part+1)
		last := errors.Is(nextErr, ports.ErrNotFound)

		res, err := s.registry.Resolve(ctx, partURL)
		if err != nil {
			return entries, err
		}
		if res.Link == "" {
			s.logger.Info().Int("part", part).Msg("résolution interrompue, playlist tronquée")
			return entries, nil
		}
		entries = append(entries, PlaylistEntry{Part: part, Link: res.Link, LastPart: last})
		if last {
			break
		}
	}
	return entries, nil
}
