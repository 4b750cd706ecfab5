package pricing

import (
	"testing"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestConfig returns a test configuration
func getTestConfig() Config {
	return Config{
		BaseFare: map[ride.VehicleType]float64{
			ride.VehicleEconomy: 50.0,
			ride.VehiclePremium: 100.0,
			ride.VehicleLuxury:  200.0,
		},
		PerKMRate: map[ride.VehicleType]float64{
			ride.VehicleEconomy: 10.0,
			ride.VehiclePremium: 15.0,
			ride.VehicleLuxury:  25.0,
		},
		MinimumFare: 60.0,
	}
}

var (
	mgRoad   = ride.Location{Address: "MG Road", Latitude: 12.9756, Longitude: 77.6050}
	whitefld = ride.Location{Address: "Whitefield", Latitude: 12.9698, Longitude: 77.7500}
)

// TestQuoteFare_BaseCalculation tests base plus distance pricing
func TestQuoteFare_BaseCalculation(t *testing.T) {
	service := NewService(getTestConfig())

	quote, err := service.QuoteFare(ride.VehicleEconomy, mgRoad, whitefld)
	require.NoError(t, err)

	assert.Equal(t, 50.0, quote.BaseFare)
	assert.InDelta(t, 15.7, quote.DistanceKM, 0.2)
	assert.InDelta(t, 50.0+quote.DistanceKM*10, quote.Total, 0.1)
}

// TestQuoteFare_MinimumFare tests minimum fare is enforced
func TestQuoteFare_MinimumFare(t *testing.T) {
	service := NewService(getTestConfig())

	quote, err := service.QuoteFare(ride.VehicleEconomy, mgRoad, mgRoad)
	require.NoError(t, err)

	assert.Equal(t, 0.0, quote.DistanceKM)
	assert.Equal(t, 60.0, quote.Total, "Zero distance should charge the minimum fare")
}

// TestQuoteFare_DifferentVehicleTypes tests all vehicle types
func TestQuoteFare_DifferentVehicleTypes(t *testing.T) {
	service := NewService(getTestConfig())

	economy, err := service.QuoteFare(ride.VehicleEconomy, mgRoad, whitefld)
	require.NoError(t, err)
	premium, err := service.QuoteFare(ride.VehiclePremium, mgRoad, whitefld)
	require.NoError(t, err)
	luxury, err := service.QuoteFare(ride.VehicleLuxury, mgRoad, whitefld)
	require.NoError(t, err)

	assert.Less(t, economy.Total, premium.Total, "Economy should be cheaper than Premium")
	assert.Less(t, premium.Total, luxury.Total, "Premium should be cheaper than Luxury")
}

// TestQuoteFare_UnknownVehicleType tests rejection of unpriced vehicle types
func TestQuoteFare_UnknownVehicleType(t *testing.T) {
	service := NewService(getTestConfig())

	_, err := service.QuoteFare("helicopter", mgRoad, whitefld)
	assert.ErrorIs(t, err, ride.ErrInvalidRide)
}

// TestCalculateDistance_Haversine tests distance calculation
func TestCalculateDistance_Haversine(t *testing.T) {
	assert.InDelta(t, 0.0, CalculateDistance(12.97, 77.59, 12.97, 77.59), 1e-9)
	// One degree of latitude is roughly 111 km
	assert.InDelta(t, 111.19, CalculateDistance(0, 0, 1, 0), 0.1)
}

// BenchmarkQuoteFare benchmarks fare calculation
func BenchmarkQuoteFare(b *testing.B) {
	service := NewService(getTestConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = service.QuoteFare(ride.VehicleEconomy, mgRoad, whitefld)
	}
}
