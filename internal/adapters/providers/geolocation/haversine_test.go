package geolocation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

func TestHaversineCalculator_DistanceKm(t *testing.T) {
	calc := NewHaversineCalculator()

	rio := entities.Coordinates{Latitude: -22.9068, Longitude: -43.1729}
	saoPaulo := entities.Coordinates{Latitude: -23.5505, Longitude: -46.6333}

	assert.InDelta(t, 360.7, calc.DistanceKm(rio, saoPaulo), 1.0)
	assert.InDelta(t, calc.DistanceKm(rio, saoPaulo), calc.DistanceKm(saoPaulo, rio), 1e-9)
	assert.Equal(t, 0.0, calc.DistanceKm(rio, rio))
}

func TestHaversineCalculator_QuarterMeridian(t *testing.T) {
	calc := NewHaversineCalculator()
	d := calc.DistanceKm(entities.Coordinates{}, entities.Coordinates{Latitude: 90})
	assert.InDelta(t, 10007.5, d, 0.1)
}
