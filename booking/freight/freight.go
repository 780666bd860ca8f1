package freight

import (
	"context"
	"errors"
	"math"
)

var ErrUnavailable = errors.New("distance service unavailable")

// Rates are the tiered freight constants.
type Rates struct {
	ComboFreeKm       float64 `split_words:"true" default:"60"`
	ComboExcessPerKm  float64 `split_words:"true" default:"3.5"`
	FreeUnderKm       float64 `split_words:"true" default:"20"`
	BaseFee           float64 `split_words:"true" default:"15"`
	PerKm             float64 `split_words:"true" default:"3.5"`
	MinFee            float64 `split_words:"true" default:"25"`
	RoundTripMultiple float64 `split_words:"true" default:"2"`
}

var DefaultRates = Rates{
	ComboFreeKm:       60,
	ComboExcessPerKm:  3.5,
	FreeUnderKm:       20,
	BaseFee:           15,
	PerKm:             3.5,
	MinFee:            25,
	RoundTripMultiple: 2,
}

// Quote prices delivery for a distance. Carts with a combo ride free up to
// ComboFreeKm and pay only the excess; other carts pay a round trip once
// they reach FreeUnderKm.
func Quote(distanceKm float64, hasCombo bool, r Rates) float64 {
	if hasCombo {
		if distanceKm <= r.ComboFreeKm {
			return 0
		}
		return (distanceKm - r.ComboFreeKm) * r.ComboExcessPerKm
	}
	if distanceKm < r.FreeUnderKm {
		return 0
	}
	fee := math.Max(r.BaseFee+math.Ceil(distanceKm)*r.PerKm, r.MinFee)
	return fee * r.RoundTripMultiple
}

type Distance struct {
	Km   float64
	Text string
}

// Provider measures driving distance from the depot to an address.
type Provider interface {
	Distance(ctx context.Context, destination string) (Distance, error)
}
