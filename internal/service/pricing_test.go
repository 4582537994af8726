package service

import (
	"testing"

	"roadside-portal/internal/storage"
)

func TestPricingConfig_EstimatePrice(t *testing.T) {
	pricing := DefaultPricingConfig()

	tests := []struct {
		name     string
		service  string
		distance *float64
		want     *float64
	}{
		{"flat rate ignores distance", "battery", floatPtr(12), floatPtr(349)},
		{"towing charges per km", "towing", floatPtr(10), floatPtr(799 + 350)},
		{"towing without distance", "towing", nil, floatPtr(799)},
		{"fuel rounds to rupees", "fuel", floatPtr(2.44), floatPtr(273)},
		{"unknown service leaves price unset", "spaceship", floatPtr(1), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &storage.Job{ServiceType: tt.service, EstimatedDistance: tt.distance}
			pricing.EstimatePrice(job)

			if tt.want == nil {
				if job.EstimatedPrice != nil {
					t.Errorf("Expected no price, got %v", *job.EstimatedPrice)
				}
				return
			}
			if job.EstimatedPrice == nil {
				t.Fatal("Expected a price, got nil")
			}
			if *job.EstimatedPrice != *tt.want {
				t.Errorf("Expected price %.2f, got %.2f", *tt.want, *job.EstimatedPrice)
			}
		})
	}
}

func TestCalculateDistance(t *testing.T) {
	// MG Road to Koramangala, roughly 4-5 km
	d := calculateDistance(12.9756, 77.6066, 12.9352, 77.6245)
	if d < 4 || d > 6 {
		t.Errorf("Expected distance between 4 and 6 km, got %.2f", d)
	}

	if calculateDistance(12.97, 77.59, 12.97, 77.59) != 0 {
		t.Error("Expected zero distance for identical points")
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
