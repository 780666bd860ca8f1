package freight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"
)

type MapsConfig struct {
	APIKey  string        `envconfig:"API_KEY" required:"true"`
	Origin  string        `split_words:"true" required:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

var ErrNoRoute = errors.New("no route to address")

// MapsProvider measures driving distance with the Google Directions API.
type MapsProvider struct {
	client  *maps.Client
	origin  string
	timeout time.Duration
}

func NewMapsProvider(cfg MapsConfig, opts ...maps.ClientOption) (*MapsProvider, error) {
	origin := strings.TrimSpace(cfg.Origin)
	if origin == "" {
		return nil, errors.New("depot origin address is required")
	}
	opts = append([]maps.ClientOption{maps.WithAPIKey(strings.TrimSpace(cfg.APIKey))}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MapsProvider{client: client, origin: origin, timeout: timeout}, nil
}

func (p *MapsProvider) Distance(ctx context.Context, destination string) (Distance, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	routes, _, err := p.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      p.origin,
		Destination: destination,
		Mode:        maps.TravelModeDriving,
		Region:      "br",
	})
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") || strings.Contains(err.Error(), "NOT_FOUND") {
			return Distance{}, fmt.Errorf("%w: %s", ErrNoRoute, destination)
		}
		return Distance{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Distance{}, fmt.Errorf("%w: %s", ErrNoRoute, destination)
	}

	leg := routes[0].Legs[0]
	return Distance{
		Km:   float64(leg.Distance.Meters) / 1000,
		Text: leg.Distance.HumanReadable,
	}, nil
}
