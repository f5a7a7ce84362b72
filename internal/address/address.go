// Package address proxies place autocomplete and detail lookups to an
// external geocoding provider so browser clients never see the API key.
package address

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

var (
	ErrBadQuery    = errors.New("address: query too short")
	ErrUnavailable = errors.New("address: provider unavailable")
)

// Suggestion is a single autocomplete candidate.
type Suggestion struct {
	PlaceID     string `json:"placeId"`
	Description string `json:"description"`
}

// Details is the resolved place broken into the components the actor
// forms consume.
type Details struct {
	PlaceID      string  `json:"placeId"`
	Street       string  `json:"street"`
	ExteriorNum  string  `json:"exteriorNumber"`
	Neighborhood string  `json:"neighborhood"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	PostalCode   string  `json:"postalCode"`
	Country      string  `json:"country"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Provider is the lookup contract. The HTTP implementation talks to the
// Google Places web service; tests supply a stub.
type Provider interface {
	Autocomplete(ctx context.Context, text string) ([]Suggestion, error)
	PlaceDetails(ctx context.Context, placeID string) (*Details, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Country string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	cfg := Config{
		BaseURL: "https://maps.googleapis.com/maps/api/place",
		Country: "mx",
		Timeout: 5 * time.Second,
	}
	if v := os.Getenv("PLACES_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("PLACES_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("PLACES_COUNTRY"); v != "" {
		cfg.Country = v
	}
	return cfg
}

type httpProvider struct {
	cfg    Config
	client *http.Client
}

func NewProvider(cfg Config) Provider {
	return &httpProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *httpProvider) Autocomplete(ctx context.Context, text string) ([]Suggestion, error) {
	if len(text) < 3 {
		return nil, ErrBadQuery
	}
	q := url.Values{}
	q.Set("input", text)
	q.Set("key", p.cfg.APIKey)
	q.Set("components", "country:"+p.cfg.Country)
	var body struct {
		Predictions []struct {
			PlaceID     string `json:"place_id"`
			Description string `json:"description"`
		} `json:"predictions"`
		Status string `json:"status"`
	}
	if err := p.get(ctx, "/autocomplete/json", q, &body); err != nil {
		return nil, err
	}
	if body.Status != "OK" && body.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("%w: status %s", ErrUnavailable, body.Status)
	}
	out := make([]Suggestion, 0, len(body.Predictions))
	for _, pr := range body.Predictions {
		out = append(out, Suggestion{PlaceID: pr.PlaceID, Description: pr.Description})
	}
	return out, nil
}

func (p *httpProvider) PlaceDetails(ctx context.Context, placeID string) (*Details, error) {
	if placeID == "" {
		return nil, ErrBadQuery
	}
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("key", p.cfg.APIKey)
	q.Set("fields", "address_component,geometry")
	var body struct {
		Result struct {
			Components []struct {
				LongName  string   `json:"long_name"`
				ShortName string   `json:"short_name"`
				Types     []string `json:"types"`
			} `json:"address_components"`
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"result"`
		Status string `json:"status"`
	}
	if err := p.get(ctx, "/details/json", q, &body); err != nil {
		return nil, err
	}
	if body.Status != "OK" {
		return nil, fmt.Errorf("%w: status %s", ErrUnavailable, body.Status)
	}
	d := &Details{
		PlaceID:   placeID,
		Latitude:  body.Result.Geometry.Location.Lat,
		Longitude: body.Result.Geometry.Location.Lng,
	}
	for _, c := range body.Result.Components {
		for _, t := range c.Types {
			switch t {
			case "route":
				d.Street = c.LongName
			case "street_number":
				d.ExteriorNum = c.LongName
			case "sublocality", "sublocality_level_1", "neighborhood":
				if d.Neighborhood == "" {
					d.Neighborhood = c.LongName
				}
			case "locality":
				d.City = c.LongName
			case "administrative_area_level_1":
				d.State = c.LongName
			case "postal_code":
				d.PostalCode = c.LongName
			case "country":
				d.Country = c.ShortName
			}
		}
	}
	return d, nil
}

func (p *httpProvider) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
