package pricing

import (
	"fmt"
	"math"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
)

// Service quotes the fixed fare attached to a ride at request time
type Service struct {
	config Config
}

// Config holds pricing configuration
type Config struct {
	BaseFare  map[ride.VehicleType]float64
	PerKMRate map[ride.VehicleType]float64
	// MinimumFare applies after the distance component is added.
	MinimumFare float64
}

// Quote represents the breakdown of a quoted fare
type Quote struct {
	BaseFare     float64 `json:"base_fare"`
	DistanceKM   float64 `json:"distance_km"`
	DistanceFare float64 `json:"distance_fare"`
	Total        float64 `json:"total"`
}

// NewService creates a new pricing service
func NewService(config Config) *Service {
	return &Service{config: config}
}

// QuoteFare computes the fare between two points for a vehicle type.
// The result is rounded to two decimals and never negative.
func (s *Service) QuoteFare(vehicleType ride.VehicleType, pickup, destination ride.Location) (*Quote, error) {
	baseFare, ok := s.config.BaseFare[vehicleType]
	if !ok {
		return nil, fmt.Errorf("%w: no fare table for vehicle type %q", ride.ErrInvalidRide, vehicleType)
	}
	perKM := s.config.PerKMRate[vehicleType]

	distanceKM := CalculateDistance(pickup.Latitude, pickup.Longitude, destination.Latitude, destination.Longitude)
	distanceFare := distanceKM * perKM

	total := baseFare + distanceFare
	if total < s.config.MinimumFare {
		total = s.config.MinimumFare
	}
	if total < 0 {
		total = 0
	}

	return &Quote{
		BaseFare:     baseFare,
		DistanceKM:   round2(distanceKM),
		DistanceFare: round2(distanceFare),
		Total:        round2(total),
	}, nil
}

// CalculateDistance calculates haversine distance between two points in kilometers
func CalculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371

	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
