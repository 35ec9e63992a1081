package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/internal/helpers"
	"github.com/mohammad-safakhou/ragrouter/utils"
)

var (
	ErrDisabled = errors.New("transport tool is disabled")
	ErrNoAPIKey = errors.New("transport api key is not configured")
	ErrNoRoute  = errors.New("no route found")
)

// Transit describes the public transport leg of a step.
type Transit struct {
	Line          string `json:"line"`
	Vehicle       string `json:"vehicle"`
	DepartureStop string `json:"departure_stop"`
	ArrivalStop   string `json:"arrival_stop"`
	NumStops      int    `json:"num_stops"`
	Headsign      string `json:"headsign,omitempty"`
}

type Step struct {
	Instruction string   `json:"instruction"`
	Distance    string   `json:"distance"`
	Duration    string   `json:"duration"`
	TravelMode  string   `json:"travel_mode"`
	Transit     *Transit `json:"transit,omitempty"`
}

type Route struct {
	Summary       string `json:"summary"`
	TotalDistance string `json:"total_distance"`
	TotalDuration string `json:"total_duration"`
	StartAddress  string `json:"start_address"`
	EndAddress    string `json:"end_address"`
	Steps         []Step `json:"steps"`
}

// Directions is the transport tool payload.
type Directions struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Mode        string  `json:"mode"`
	Routes      []Route `json:"routes"`
}

// Client queries the Google Directions API for transit itineraries.
type Client struct {
	apiKey  string
	baseURL string
	region  string
	enabled bool
	http    *utils.HTTPClient
}

func NewClient(cfg config.TransportConfig, timeout time.Duration) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		region:  cfg.Region,
		enabled: cfg.Enabled,
		http:    utils.NewHTTPClient(timeout, 1, 0),
	}
}

type textValue struct {
	Text string `json:"text"`
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Summary string `json:"summary"`
		Legs    []struct {
			Distance     textValue `json:"distance"`
			Duration     textValue `json:"duration"`
			StartAddress string    `json:"start_address"`
			EndAddress   string    `json:"end_address"`
			Steps        []struct {
				HTMLInstructions string    `json:"html_instructions"`
				Distance         textValue `json:"distance"`
				Duration         textValue `json:"duration"`
				TravelMode       string    `json:"travel_mode"`
				TransitDetails   *struct {
					Line struct {
						Name      string `json:"name"`
						ShortName string `json:"short_name"`
						Vehicle   struct {
							Name string `json:"name"`
						} `json:"vehicle"`
					} `json:"line"`
					DepartureStop struct {
						Name string `json:"name"`
					} `json:"departure_stop"`
					ArrivalStop struct {
						Name string `json:"name"`
					} `json:"arrival_stop"`
					NumStops int    `json:"num_stops"`
					Headsign string `json:"headsign"`
				} `json:"transit_details"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// Directions fetches transit routes (with alternatives) from origin to
// destination. Only the first leg of each route is kept.
func (c *Client) Directions(ctx context.Context, origin, destination string) (Directions, error) {
	if !c.enabled {
		return Directions{}, ErrDisabled
	}
	if c.apiKey == "" {
		return Directions{}, ErrNoAPIKey
	}
	params := url.Values{}
	params.Set("origin", origin)
	params.Set("destination", destination)
	params.Set("mode", "transit")
	params.Set("language", "en")
	params.Set("alternatives", "true")
	if c.region != "" {
		params.Set("region", c.region)
	}
	params.Set("key", c.apiKey)

	var raw directionsResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil, nil, &raw); err != nil {
		return Directions{}, fmt.Errorf("directions: %w", err)
	}
	switch raw.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return Directions{}, fmt.Errorf("%w: %s to %s", ErrNoRoute, origin, destination)
	default:
		return Directions{}, fmt.Errorf("google maps api error: %s - %s", raw.Status, raw.ErrorMessage)
	}

	out := Directions{Origin: origin, Destination: destination, Mode: "transit"}
	for _, r := range raw.Routes {
		if len(r.Legs) == 0 {
			continue
		}
		leg := r.Legs[0]
		route := Route{
			Summary:       r.Summary,
			TotalDistance: leg.Distance.Text,
			TotalDuration: leg.Duration.Text,
			StartAddress:  leg.StartAddress,
			EndAddress:    leg.EndAddress,
		}
		for _, s := range leg.Steps {
			step := Step{
				Instruction: helpers.SanitizeHTMLStrict(s.HTMLInstructions),
				Distance:    s.Distance.Text,
				Duration:    s.Duration.Text,
				TravelMode:  s.TravelMode,
			}
			if td := s.TransitDetails; td != nil {
				line := td.Line.ShortName
				if line == "" {
					line = td.Line.Name
				}
				step.Transit = &Transit{
					Line:          line,
					Vehicle:       td.Line.Vehicle.Name,
					DepartureStop: td.DepartureStop.Name,
					ArrivalStop:   td.ArrivalStop.Name,
					NumStops:      td.NumStops,
					Headsign:      td.Headsign,
				}
			}
			route.Steps = append(route.Steps, step)
		}
		out.Routes = append(out.Routes, route)
	}
	if len(out.Routes) == 0 {
		return Directions{}, fmt.Errorf("%w: %s to %s", ErrNoRoute, origin, destination)
	}
	return out, nil
}

// Text renders every route as a numbered itinerary.
func (d Directions) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transit directions from %s to %s\n", d.Origin, d.Destination)
	for i, r := range d.Routes {
		fmt.Fprintf(&b, "\nRoute %d", i+1)
		if r.Summary != "" {
			fmt.Fprintf(&b, " (%s)", r.Summary)
		}
		fmt.Fprintf(&b, ": %s, %s\n", r.TotalDuration, r.TotalDistance)
		if r.StartAddress != "" || r.EndAddress != "" {
			fmt.Fprintf(&b, "From %s to %s\n", r.StartAddress, r.EndAddress)
		}
		for j, s := range r.Steps {
			fmt.Fprintf(&b, "  %d. %s (%s, %s)", j+1, s.Instruction, s.Duration, s.Distance)
			if t := s.Transit; t != nil {
				fmt.Fprintf(&b, " [%s %s: %s → %s, %d stops", t.Vehicle, t.Line, t.DepartureStop, t.ArrivalStop, t.NumStops)
				if t.Headsign != "" {
					fmt.Fprintf(&b, ", towards %s", t.Headsign)
				}
				b.WriteString("]")
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
