package app

import (
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/noshowrisk/internal/application/services"
	"github.com/zatekoja/noshowrisk/internal/domain/providers"
	"github.com/zatekoja/noshowrisk/pkg/config"
)

// specialtyRater is implemented by scorers that carry the observed no-show
// rate per specialty of the history they were trained on
type specialtyRater interface {
	SpecialtyNoShowRates() map[string]float64
}

// RiskServiceOptions builds scoring options from configuration. Rates carried
// by the scorer feed the overbooking ceilings; without them the service
// derives rates from the loaded history.
func RiskServiceOptions(cfg *config.Config, scorer providers.RiskScorer) services.RiskServiceOptions {
	opts := services.RiskServiceOptions{
		Workers:    cfg.Scoring.Workers,
		TopDetails: cfg.Scoring.TopDetails,
	}
	if rater, ok := scorer.(specialtyRater); ok {
		if rates := rater.SpecialtyNoShowRates(); len(rates) > 0 {
			opts.SpecialtyNoShowRates = rates
			log.Debug().Int("specialties", len(rates)).Msg("Using specialty no-show rates from the model")
		}
	}
	return opts
}
