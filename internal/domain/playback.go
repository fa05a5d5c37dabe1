package domain

// WatchedThresholds sont les fractions sélectionnables par le setting
// watched-percent (index 0..2).
var WatchedThresholds = []float64{0.7, 0.8, 0.9}

// PlaybackSession suit la position de lecture à travers les parts d'une
// source stacked. La position globale est la somme des durées des parts
// déjà lues plus la position dans la part courante.
type PlaybackSession struct {
	Threshold     float64
	TotalDuration float64
	priorParts    float64
	position      float64
}

func NewPlaybackSession(thresholdIndex int) PlaybackSession {
	if thresholdIndex < 0 || thresholdIndex >= len(WatchedThresholds) {
		thresholdIndex = 0
	}
	return PlaybackSession{Threshold: WatchedThresholds[thresholdIndex]}
}

// AddPart enregistre la durée d'une nouvelle part; la lecture de la part
// suivante reprend à la fin des précédentes.
func (p *PlaybackSession) AddPart(duration float64) {
	if duration < 0 {
		duration = 0
	}
	p.priorParts = p.TotalDuration
	p.TotalDuration += duration
}

// Advance positionne la lecture dans la part courante.
func (p *PlaybackSession) Advance(position float64) {
	if position < 0 {
		position = 0
	}
	p.position = p.priorParts + position
}

func (p PlaybackSession) Position() float64 { return p.position }

// Watched dit si la position globale a franchi le seuil configuré.
// Fonction pure de (position, durée totale, seuil); évaluée quand la
// lecture de la dernière part se termine ou s'arrête.
func (p PlaybackSession) Watched() bool {
	if p.TotalDuration <= 0 {
		return false
	}
	return p.position/p.TotalDuration >= p.Threshold
}
