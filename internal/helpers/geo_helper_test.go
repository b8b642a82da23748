package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	// Kathmandu Durbar Square to Patan Durbar Square, roughly 2.8 km.
	distance := HaversineKm(27.7045, 85.3076, 27.6727, 85.3240)
	assert.InDelta(t, 3.9, distance, 1.0)

	assert.Equal(t, 0.0, HaversineKm(27.7, 85.3, 27.7, 85.3))

	// One degree of latitude is about 111 km.
	assert.InDelta(t, 111.0, HaversineKm(27.0, 85.0, 28.0, 85.0), 1.0)
}
