package entities

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// FacilityLocation is one monthly snapshot of a facility's coordinates
type FacilityLocation struct {
	FacilityID  string      `json:"facility_id" db:"facility_id"`
	Coordinates Coordinates `json:"coordinates" db:"-"`
	Year        int         `json:"year" db:"year"`
	Month       int         `json:"month" db:"month"`
}

// IsNewerThan reports whether the snapshot is more recent than other
func (f FacilityLocation) IsNewerThan(other FacilityLocation) bool {
	if f.Year != other.Year {
		return f.Year > other.Year
	}
	return f.Month > other.Month
}

// ReferenceData holds the lookup tables joined onto appointments during
// feature engineering.
type ReferenceData struct {
	// Facilities maps a facility id to its most recent known coordinates.
	Facilities map[string]Coordinates
	// Specialties maps a procedure code to its specialty.
	Specialties map[string]string
	// DiagnosisCategories maps a diagnosis code to its category description.
	DiagnosisCategories map[string]string
}

// LatestFacilityLocations reduces monthly snapshots to the most recent
// coordinates per facility.
func LatestFacilityLocations(snapshots []FacilityLocation) map[string]Coordinates {
	latest := make(map[string]FacilityLocation, len(snapshots))
	for _, s := range snapshots {
		if cur, ok := latest[s.FacilityID]; !ok || s.IsNewerThan(cur) {
			latest[s.FacilityID] = s
		}
	}

	out := make(map[string]Coordinates, len(latest))
	for id, s := range latest {
		out[id] = s.Coordinates
	}
	return out
}
