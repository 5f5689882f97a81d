package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/domain/providers"
	"github.com/zatekoja/noshowrisk/internal/domain/repositories"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

// ReferenceAdapter reads facility locations and clinical catalogs. It also
// serves patient profiles, which live in the same schema.
type ReferenceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

var (
	_ repositories.ReferenceRepository = (*ReferenceAdapter)(nil)
	_ providers.PatientProfileProvider = (*ReferenceAdapter)(nil)
)

// NewReferenceAdapter creates a new reference adapter
func NewReferenceAdapter(client *postgres.Client) *ReferenceAdapter {
	return &ReferenceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ReferenceData returns facility locations and clinical catalogs
func (a *ReferenceAdapter) ReferenceData(ctx context.Context) (*entities.ReferenceData, error) {
	locations, err := a.facilityLocations(ctx)
	if err != nil {
		return nil, err
	}
	specialties, err := a.catalog(ctx, "procedures", "code", "specialty")
	if err != nil {
		return nil, err
	}
	diagnoses, err := a.catalog(ctx, "diagnoses", "code", "category")
	if err != nil {
		return nil, err
	}

	return &entities.ReferenceData{
		Facilities:          entities.LatestFacilityLocations(locations),
		Specialties:         specialties,
		DiagnosisCategories: diagnoses,
	}, nil
}

func (a *ReferenceAdapter) facilityLocations(ctx context.Context) ([]entities.FacilityLocation, error) {
	query, args, err := a.db.Select("facility_id", "latitude", "longitude", "year", "month").
		From("facility_locations").
		Where(goqu.C("latitude").IsNotNull(), goqu.C("longitude").IsNotNull()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query facility locations", err)
	}
	defer rows.Close()

	var locations []entities.FacilityLocation
	for rows.Next() {
		var loc entities.FacilityLocation
		if err := rows.Scan(&loc.FacilityID, &loc.Coordinates.Latitude, &loc.Coordinates.Longitude, &loc.Year, &loc.Month); err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility location", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating facility locations", err)
	}
	return locations, nil
}

func (a *ReferenceAdapter) catalog(ctx context.Context, table, keyColumn, valueColumn string) (map[string]string, error) {
	query, args, err := a.db.Select(keyColumn, valueColumn).From(table).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query "+table, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, apperrors.NewInternalError("failed to scan "+table, err)
		}
		if value.Valid && value.String != "" {
			out[key] = value.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating "+table, err)
	}
	return out, nil
}

// HouseholdIncome returns the monthly household income, or nil when unknown
func (a *ReferenceAdapter) HouseholdIncome(ctx context.Context, patientID string) (*float64, error) {
	query, args, err := a.db.Select("household_income").
		From("patient_profiles").
		Where(goqu.Ex{"patient_id": patientID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var income sql.NullFloat64
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&income)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient profile", err)
	}
	if !income.Valid {
		return nil, nil
	}
	return &income.Float64, nil
}
