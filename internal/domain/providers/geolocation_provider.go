package providers

import (
	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

// DistanceCalculator computes great-circle distances between coordinates
type DistanceCalculator interface {
	// DistanceKm returns the distance between two points in kilometers
	DistanceKm(from, to entities.Coordinates) float64
}
