// Package fixtures generates deterministic synthetic scheduling data for
// tests, demos and the seed script. It is never used to score real patients.
package fixtures

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

// Options controls the size and shape of a generated dataset
type Options struct {
	Seed                 int64
	Patients             int
	MinVisits            int
	MaxVisits            int
	HistoryStart         time.Time
	HistoryDays          int
	ScheduledStart       time.Time
	ScheduledDays        int
	ScheduledPerDay      int
	UnknownFacilityShare float64
}

// DefaultOptions returns a dataset of a few thousand historical appointments
// followed by two weeks of open schedule.
func DefaultOptions() Options {
	return Options{
		Seed:                 42,
		Patients:             300,
		MinVisits:            4,
		MaxVisits:            14,
		HistoryStart:         time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		HistoryDays:          540,
		ScheduledStart:       time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		ScheduledDays:        14,
		ScheduledPerDay:      25,
		UnknownFacilityShare: 0.05,
	}
}

// Dataset is a complete synthetic scheduling snapshot
type Dataset struct {
	Appointments      []*entities.AppointmentRecord
	FacilityLocations []entities.FacilityLocation
	Specialties       map[string]string
	Diagnoses         map[string]string
	HouseholdIncome   map[string]float64
}

// Reference returns the dataset's lookup tables
func (d *Dataset) Reference() *entities.ReferenceData {
	return &entities.ReferenceData{
		Facilities:          entities.LatestFacilityLocations(d.FacilityLocations),
		Specialties:         d.Specialties,
		DiagnosisCategories: d.Diagnoses,
	}
}

// Procedure and diagnosis catalogs
var (
	procedureCatalog = map[string]string{
		"0701010010": "Cardiologia",
		"0701010020": "Clinica Geral",
		"0701010030": "Ortopedia",
		"0701010040": "Endocrinologia",
		"0701010050": "Psiquiatria",
	}
	diagnosisCatalog = map[string]string{
		"I10": "Hipertensao essencial",
		"E11": "Diabetes mellitus tipo 2",
		"M54": "Dorsalgia",
		"F32": "Episodios depressivos",
		"Z00": "Exame geral",
	}
	procedureCodes = []string{"0701010010", "0701010020", "0701010030", "0701010040", "0701010050"}
	diagnosisCodes = []string{"I10", "E11", "M54", "F32", "Z00", "R69"}
	ageBands       = []string{"18-29", "30-39", "40-49", "50-59", "60-69", "70-79", "80+"}
	riskFlags      = []string{"VERDE", "AMARELO", "VERMELHO", "AZUL"}
	facilities     = []entities.Coordinates{
		{Latitude: -22.9068, Longitude: -43.1729},
		{Latitude: -22.9711, Longitude: -43.1822},
		{Latitude: -22.8825, Longitude: -43.2916},
		{Latitude: -23.0045, Longitude: -43.3650},
		{Latitude: -22.8122, Longitude: -43.2505},
		{Latitude: -22.9519, Longitude: -43.2105},
	}
)

// UnknownFacilityID has no location snapshot in generated datasets
const UnknownFacilityID = "9999999"

// FacilityID returns the CNES-like identifier of the i-th generated facility
func FacilityID(i int) string {
	return fmt.Sprintf("%07d", 2270000+i)
}

type patient struct {
	id         string
	sex        string
	ageBand    string
	propensity float64
	home       int
}

// Generate builds a dataset. The same options always produce the same data.
func Generate(opts Options) *Dataset {
	rng := rand.New(rand.NewSource(opts.Seed))

	ds := &Dataset{
		Specialties:     copyCatalog(procedureCatalog),
		Diagnoses:       copyCatalog(diagnosisCatalog),
		HouseholdIncome: make(map[string]float64),
	}

	for i, c := range facilities {
		// an older snapshot with stale coordinates, then the current one
		ds.FacilityLocations = append(ds.FacilityLocations,
			entities.FacilityLocation{FacilityID: FacilityID(i), Coordinates: entities.Coordinates{Latitude: c.Latitude + 0.5, Longitude: c.Longitude}, Year: 2023, Month: 1},
			entities.FacilityLocation{FacilityID: FacilityID(i), Coordinates: c, Year: 2024, Month: 3},
		)
	}

	patients := make([]patient, opts.Patients)
	for i := range patients {
		band := ageBands[rng.Intn(len(ageBands))]
		propensity := rng.NormFloat64() * 0.6
		switch band {
		case "18-29":
			propensity += 0.8
		case "70-79", "80+":
			propensity += 0.3
		}
		sex := "F"
		if rng.Intn(2) == 0 {
			sex = "M"
		}
		patients[i] = patient{
			id:         fmt.Sprintf("P%05d", i+1),
			sex:        sex,
			ageBand:    band,
			propensity: propensity,
			home:       rng.Intn(len(facilities)),
		}
		ds.HouseholdIncome[patients[i].id] = math.Round(800 + rng.ExpFloat64()*2200)
	}

	seq := 0
	for _, p := range patients {
		visits := opts.MinVisits
		if opts.MaxVisits > opts.MinVisits {
			visits += rng.Intn(opts.MaxVisits - opts.MinVisits + 1)
		}
		for v := 0; v < visits; v++ {
			seq++
			day := opts.HistoryStart.AddDate(0, 0, rng.Intn(opts.HistoryDays))
			rec := newRecord(rng, opts, p, seq, day)

			lead := rec.ScheduledAt.Sub(*rec.RequestedAt).Hours() / 24
			logit := -2.2 + 0.035*lead + p.propensity
			if ds.Specialties[rec.ProcedureCode] == "Psiquiatria" {
				logit += 0.6
			}
			switch {
			case rng.Float64() < 0.05:
				rec.Outcome = entities.OutcomeCancelled
				rec.RawStatus = "AGENDAMENTO / CANCELADO / EXECUTANTE"
			case rng.Float64() < 1/(1+math.Exp(-logit)):
				rec.Outcome = entities.OutcomeNoShow
				rec.RawStatus = "AGENDAMENTO / FALTA / EXECUTANTE"
			default:
				rec.Outcome = entities.OutcomeAttended
				rec.RawStatus = "AGENDAMENTO / CONFIRMADO / EXECUTANTE"
			}
			ds.Appointments = append(ds.Appointments, rec)
		}
	}

	for d := 0; d < opts.ScheduledDays; d++ {
		day := opts.ScheduledStart.AddDate(0, 0, d)
		for k := 0; k < opts.ScheduledPerDay; k++ {
			seq++
			p := patients[rng.Intn(len(patients))]
			rec := newRecord(rng, opts, p, seq, day)
			rec.Outcome = entities.OutcomeScheduled
			rec.RawStatus = "AGENDAMENTO / PENDENTE / EXECUTANTE"
			ds.Appointments = append(ds.Appointments, rec)
		}
	}

	return ds
}

func newRecord(rng *rand.Rand, opts Options, p patient, seq int, day time.Time) *entities.AppointmentRecord {
	scheduled := day.Add(time.Duration(7+rng.Intn(11))*time.Hour + time.Duration(rng.Intn(4)*15)*time.Minute)
	requested := scheduled.AddDate(0, 0, -rng.Intn(61)).Add(-time.Duration(rng.Intn(8)) * time.Hour)

	executing := FacilityID(rng.Intn(len(facilities)))
	if rng.Float64() < opts.UnknownFacilityShare {
		executing = UnknownFacilityID
	}

	return &entities.AppointmentRecord{
		ID:                   fmt.Sprintf("A%07d", seq),
		PatientID:            p.id,
		RequestedAt:          &requested,
		ScheduledAt:          scheduled,
		RequestingFacilityID: FacilityID(p.home),
		ExecutingFacilityID:  executing,
		ProcedureCode:        procedureCodes[rng.Intn(len(procedureCodes))],
		DiagnosisCode:        diagnosisCodes[rng.Intn(len(diagnosisCodes))],
		PatientSex:           p.sex,
		PatientAgeBand:       p.ageBand,
		RiskFlag:             riskFlags[rng.Intn(len(riskFlags))],
	}
}

func copyCatalog(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
