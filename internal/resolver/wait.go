package resolver

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Outcome int

const (
	Completed Outcome = iota
	Cancelled
)

func (o Outcome) String() string {
	if o == Cancelled {
		return "cancelled"
	}
	return "completed"
}

// TickFunc reçoit les secondes écoulées et restantes à chaque tick.
type TickFunc func(elapsed, remaining int)

// Waiter exécute les comptes à rebours imposés par les hébergeurs
// gratuits avant l'activation d'un lien. Bloquant par conception: la
// résolution ne peut pas continuer tant que le délai court.
type Waiter struct {
	logger   zerolog.Logger
	interval time.Duration
}

func NewWaiter(logger zerolog.Logger, interval time.Duration) *Waiter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Waiter{logger: logger, interval: interval}
}

// Wait décompte seconds en tickant une fois par seconde. L'annulation du
// contexte est observée au tick près et renvoie Cancelled sans tick
// supplémentaire. Une durée nulle ou négative vaut une seconde.
func (w *Waiter) Wait(ctx context.Context, seconds int, onTick TickFunc) Outcome {
	if seconds <= 0 {
		seconds = 1
	}
	w.logger.Info().Int("seconds", seconds).Msg("host-imposed wait")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	elapsed := 0
	for elapsed < seconds {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("wait cancelled")
			return Cancelled
		case <-ticker.C:
			elapsed++
			if onTick != nil {
				onTick(elapsed, seconds-elapsed)
			}
		}
	}
	return Completed
}
