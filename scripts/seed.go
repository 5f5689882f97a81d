package main

import (
	"flag"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/noshowrisk/internal/adapters/dataset"
	"github.com/zatekoja/noshowrisk/internal/fixtures"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/observability"
	"github.com/zatekoja/noshowrisk/pkg/config"
)

func main() {
	defaults := fixtures.DefaultOptions()
	patients := flag.Int("patients", defaults.Patients, "number of synthetic patients")
	seed := flag.Int64("seed", defaults.Seed, "generator seed")
	scheduledStart := flag.String("scheduled-start", defaults.ScheduledStart.Format("2006-01-02"), "first day of the open schedule")
	scheduledDays := flag.Int("scheduled-days", defaults.ScheduledDays, "days of open schedule")
	partitionSize := flag.Int("partition-size", 1000, "appointments per parquet partition")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("noshow-seed", cfg.Environment, cfg.Logging)

	start, err := time.Parse("2006-01-02", *scheduledStart)
	if err != nil {
		log.Fatal().Err(err).Str("scheduled_start", *scheduledStart).Msg("Invalid schedule start")
	}

	opts := defaults
	opts.Patients = *patients
	opts.Seed = *seed
	opts.ScheduledStart = start
	opts.ScheduledDays = *scheduledDays
	ds := fixtures.Generate(opts)

	written, err := dataset.Export(dataset.NewLoader(cfg.Dataset.BasePath), cfg.Dataset, dataset.Snapshot{
		Appointments:      ds.Appointments,
		FacilityLocations: ds.FacilityLocations,
		Specialties:       ds.Specialties,
		Diagnoses:         ds.Diagnoses,
		HouseholdIncome:   ds.HouseholdIncome,
	}, *partitionSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write dataset")
	}

	for _, path := range written {
		log.Debug().Str("file", path).Msg("Wrote partition")
	}
	log.Info().
		Str("path", cfg.Dataset.BasePath).
		Int("appointments", len(ds.Appointments)).
		Int("facilities", len(ds.FacilityLocations)).
		Int("files", len(written)).
		Msg("Seeding complete")
}
