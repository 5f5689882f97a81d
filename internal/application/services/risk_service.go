package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/noshowrisk/internal/cohort"
	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/domain/providers"
	"github.com/zatekoja/noshowrisk/internal/domain/repositories"
	"github.com/zatekoja/noshowrisk/internal/features"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/observability"
	"github.com/zatekoja/noshowrisk/internal/policy"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

// RiskAssessor is the scoring surface exposed to callers
type RiskAssessor interface {
	ScorePatient(ctx context.Context, patientID string) (*entities.PatientAssessment, error)
	ScoreRange(ctx context.Context, start, end string) (*entities.RangeAssessment, error)
	ModelVersion() string
}

// RiskServiceOptions tunes range scoring
type RiskServiceOptions struct {
	// Workers bounds how many days are scored concurrently.
	Workers int
	// TopDetails is the number of highest-risk appointments kept in a range assessment.
	TopDetails int
	// SpecialtyNoShowRates are the observed historical rates feeding the
	// overbooking ceiling. When nil they are derived from the history.
	SpecialtyNoShowRates map[string]float64
}

// RiskService scores patients and schedule ranges with a read-only scorer
type RiskService struct {
	appointments repositories.AppointmentRepository
	reference    repositories.ReferenceRepository
	profiles     providers.PatientProfileProvider
	scorer       providers.RiskScorer
	pipeline     *features.Pipeline
	aggregator   *cohort.Aggregator
	policy       *policy.Engine
	opts         RiskServiceOptions
	metrics      *observability.Metrics
}

var _ RiskAssessor = (*RiskService)(nil)

// NewRiskService creates a new risk service. profiles and metrics may be nil.
func NewRiskService(
	appointments repositories.AppointmentRepository,
	reference repositories.ReferenceRepository,
	profiles providers.PatientProfileProvider,
	scorer providers.RiskScorer,
	pipeline *features.Pipeline,
	engine *policy.Engine,
	opts RiskServiceOptions,
	metrics *observability.Metrics,
) *RiskService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &RiskService{
		appointments: appointments,
		reference:    reference,
		profiles:     profiles,
		scorer:       scorer,
		pipeline:     pipeline,
		aggregator:   cohort.NewAggregator(engine.Thresholds()),
		policy:       engine,
		opts:         opts,
		metrics:      metrics,
	}
}

// ModelVersion identifies the scorer behind every assessment
func (s *RiskService) ModelVersion() string {
	return s.scorer.Version()
}

// ScorePatient scores the patient's most recent open appointment, or their
// most recent appointment when none is open, and decides the intervention.
func (s *RiskService) ScorePatient(ctx context.Context, patientID string) (*entities.PatientAssessment, error) {
	ctx, span := observability.StartSpan(ctx, "RiskService.ScorePatient", attribute.String("patient.id", patientID))
	defer span.End()
	started := time.Now()

	records, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	target := selectTarget(records)
	if target == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient %s has no appointments", patientID))
	}

	ref, err := s.reference.ReferenceData(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}

	// history is per patient, so the patient's own records are enough
	rows := s.pipeline.BuildForScoring(records, []*entities.AppointmentRecord{target}, ref)
	score, err := s.scorer.Score(rows[0])
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to score appointment %s: %w", target.ID, err)
	}

	attrs := entities.PatientAttributes{
		DistanceKm: rows[0].Numeric[entities.FeatureDistanceKm],
		RiskFlag:   target.RiskFlag,
	}
	if s.profiles != nil {
		income, err := s.profiles.HouseholdIncome(ctx, patientID)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("patient_id", patientID).
				Msg("Household income unavailable, subsidy will not be granted")
		} else {
			attrs.HouseholdIncome = income
		}
	}

	decision := s.policy.Decide(score, attrs)
	observability.RecordScores(ctx, s.metrics, "patient", map[entities.RiskTier]int{decision.Tier: 1}, time.Since(started))

	observability.LoggerFromContext(ctx).Debug().
		Str("patient_id", patientID).
		Str("appointment_id", target.ID).
		Float64("probability", score.Probability).
		Str("tier", string(decision.Tier)).
		Msg("Scored patient")

	return &entities.PatientAssessment{
		PatientID:     patientID,
		AppointmentID: target.ID,
		ScheduledAt:   target.ScheduledAt,
		Score:         score,
		Decision:      decision,
		ModelVersion:  s.scorer.Version(),
	}, nil
}

// selectTarget picks the latest open appointment, else the latest one
func selectTarget(records []*entities.AppointmentRecord) *entities.AppointmentRecord {
	var latest, open *entities.AppointmentRecord
	for _, r := range records {
		if r == nil {
			continue
		}
		if latest == nil || !r.ScheduledAt.Before(latest.ScheduledAt) {
			latest = r
		}
		if r.Outcome == entities.OutcomeScheduled && (open == nil || !r.ScheduledAt.Before(open.ScheduledAt)) {
			open = r
		}
	}
	if open != nil {
		return open
	}
	return latest
}

// ParseRange validates a YYYY-MM-DD range and returns its days in order
func ParseRange(start, end string) ([]time.Time, error) {
	from, err := time.ParseInLocation(entities.DateLayout, start, time.UTC)
	if err != nil {
		return nil, apperrors.NewInvalidRangeError(fmt.Sprintf("malformed start date %q", start), err)
	}
	to, err := time.ParseInLocation(entities.DateLayout, end, time.UTC)
	if err != nil {
		return nil, apperrors.NewInvalidRangeError(fmt.Sprintf("malformed end date %q", end), err)
	}
	if to.Before(from) {
		return nil, apperrors.NewInvalidRangeError(fmt.Sprintf("end %s is before start %s", end, start), nil)
	}

	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

type dayResult struct {
	done   bool
	cohort *entities.RiskCohort
	scored []entities.ScoredAppointment
}

// ScoreRange scores every non-cancelled appointment between start and end
// inclusive. Days are scored in parallel and reduced in calendar order. When
// ctx is cancelled the days finished so far are returned, flagged
// Incomplete, together with the context error.
func (s *RiskService) ScoreRange(ctx context.Context, start, end string) (*entities.RangeAssessment, error) {
	days, err := ParseRange(start, end)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "RiskService.ScoreRange",
		attribute.String("range.start", start),
		attribute.String("range.end", end),
		attribute.Int("range.days", len(days)),
	)
	defer span.End()
	started := time.Now()

	history, err := s.appointments.ListHistory(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to load appointment history: %w", err)
	}
	ref, err := s.reference.ReferenceData(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	index := features.NewHistoryIndex(history)

	results := make([]dayResult, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, day := range days {
		if gctx.Err() != nil {
			break
		}
		i, day := i, day
		g.Go(func() error {
			res, err := s.scoreDay(gctx, index, ref, day)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	if waitErr != nil && ctx.Err() == nil {
		observability.RecordError(span, waitErr)
		return nil, waitErr
	}

	assessment := s.reduce(ctx, start, end, days, results, history, ref)
	if waitErr != nil {
		assessment.Incomplete = true
		observability.LoggerFromContext(ctx).Warn().Err(waitErr).
			Str("start", start).
			Str("end", end).
			Int("days_completed", len(assessment.Days)).
			Int("days_requested", len(days)).
			Msg("Range scoring interrupted, returning completed days")
	}

	tiers := map[entities.RiskTier]int{
		entities.RiskTierLow:    assessment.Aggregate.Low,
		entities.RiskTierMedium: assessment.Aggregate.Medium,
		entities.RiskTierHigh:   assessment.Aggregate.High,
	}
	observability.RecordScores(ctx, s.metrics, "range", tiers, time.Since(started))
	observability.RecordDaysScored(ctx, s.metrics, len(assessment.Days), assessment.Incomplete)

	if waitErr != nil {
		return assessment, waitErr
	}
	return assessment, nil
}

func (s *RiskService) scoreDay(ctx context.Context, index *features.HistoryIndex, ref *entities.ReferenceData, day time.Time) (dayResult, error) {
	if err := ctx.Err(); err != nil {
		return dayResult{}, err
	}

	records, err := s.appointments.ScheduledFor(ctx, day)
	if err != nil {
		return dayResult{}, fmt.Errorf("failed to load appointments for %s: %w", day.Format(entities.DateLayout), err)
	}
	targets := make([]*entities.AppointmentRecord, 0, len(records))
	for _, r := range records {
		if r != nil && r.Outcome != entities.OutcomeCancelled {
			targets = append(targets, r)
		}
	}

	rows := s.pipeline.BuildWithIndex(index, targets, ref)
	scores, err := s.scorer.ScoreBatch(rows)
	if err != nil {
		return dayResult{}, fmt.Errorf("failed to score %s: %w", day.Format(entities.DateLayout), err)
	}
	if err := ctx.Err(); err != nil {
		return dayResult{}, err
	}

	scored := make([]entities.ScoredAppointment, len(rows))
	for i, row := range rows {
		scored[i] = entities.ScoredAppointment{
			AppointmentID: row.AppointmentID,
			PatientID:     row.PatientID,
			ScheduledAt:   row.ScheduledAt,
			Categorical:   row.Categorical,
			Score:         scores[i],
		}
	}

	return dayResult{
		done:   true,
		cohort: s.aggregator.Aggregate(scored, entities.FeatureSpecialty),
		scored: scored,
	}, nil
}

func (s *RiskService) reduce(ctx context.Context, start, end string, days []time.Time, results []dayResult, history []*entities.AppointmentRecord, ref *entities.ReferenceData) *entities.RangeAssessment {
	aggregate := &entities.RiskCohort{
		GroupBy: entities.FeatureSpecialty,
		Groups:  make(map[string]*entities.RiskCohort),
	}
	assessment := &entities.RangeAssessment{
		Start:        start,
		End:          end,
		Days:         make([]entities.DayAssessment, 0, len(days)),
		Aggregate:    aggregate,
		ModelVersion: s.scorer.Version(),
	}

	var scored []entities.ScoredAppointment
	for i, res := range results {
		if !res.done {
			continue
		}
		assessment.Days = append(assessment.Days, entities.DayAssessment{
			Date:   days[i].Format(entities.DateLayout),
			Cohort: res.cohort,
		})
		aggregate.Merge(res.cohort)
		scored = append(scored, res.scored...)
	}

	rates := s.opts.SpecialtyNoShowRates
	if rates == nil {
		rates = features.NoShowRateBySpecialty(s.pipeline.BuildTraining(history, ref))
		observability.LoggerFromContext(ctx).Debug().
			Int("specialties", len(rates)).
			Msg("Derived specialty no-show rates from history")
	}
	assessment.Overbooking = s.policy.RecommendOverbooking(rates, aggregate)
	assessment.TopRisks = s.topRisks(scored)
	return assessment
}

// topRisks returns the highest-probability appointments, ties broken by id
func (s *RiskService) topRisks(scored []entities.ScoredAppointment) []entities.RiskDetail {
	sort.SliceStable(scored, func(i, j int) bool {
		pi, pj := scored[i].Score.Probability, scored[j].Score.Probability
		if pi != pj {
			return pi > pj
		}
		return scored[i].AppointmentID < scored[j].AppointmentID
	})

	n := len(scored)
	if s.opts.TopDetails >= 0 && n > s.opts.TopDetails {
		n = s.opts.TopDetails
	}
	thresholds := s.aggregator.Thresholds()
	out := make([]entities.RiskDetail, n)
	for i := 0; i < n; i++ {
		a := scored[i]
		out[i] = entities.RiskDetail{
			AppointmentID: a.AppointmentID,
			PatientID:     a.PatientID,
			Date:          a.ScheduledAt.Format(entities.DateLayout),
			Specialty:     a.Categorical[entities.FeatureSpecialty],
			Probability:   a.Score.Probability,
			Tier:          thresholds.Tier(a.Score.Probability),
		}
	}
	return out
}

// IsIncomplete reports whether err came with a partial range assessment
func IsIncomplete(assessment *entities.RangeAssessment, err error) bool {
	return assessment != nil && assessment.Incomplete && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
