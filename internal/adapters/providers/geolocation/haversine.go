package geolocation

import (
	"math"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/domain/providers"
)

const earthRadiusKm = 6371.0

// HaversineCalculator computes great-circle distances on a spherical earth
type HaversineCalculator struct{}

// NewHaversineCalculator creates a new haversine distance calculator
func NewHaversineCalculator() providers.DistanceCalculator {
	return HaversineCalculator{}
}

// DistanceKm calculates the distance between two points using the haversine formula
func (HaversineCalculator) DistanceKm(from, to entities.Coordinates) float64 {
	lat1Rad := toRadians(from.Latitude)
	lat2Rad := toRadians(to.Latitude)
	deltaLat := toRadians(to.Latitude - from.Latitude)
	deltaLon := toRadians(to.Longitude - from.Longitude)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
