package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/utils"
)

var (
	ErrDisabled         = errors.New("weather tool is disabled")
	ErrLocationNotFound = errors.New("location not found")
)

// Current holds the observed conditions.
type Current struct {
	Time            string  `json:"time"`
	TemperatureC    float64 `json:"temperature_c"`
	ApparentC       float64 `json:"apparent_c"`
	HumidityPct     float64 `json:"humidity_pct"`
	WindKPH         float64 `json:"wind_kph"`
	PrecipitationMM float64 `json:"precipitation_mm"`
	Condition       string  `json:"condition"`
}

// Day is one day of the daily forecast.
type Day struct {
	Date          string  `json:"date"`
	MaxC          float64 `json:"max_c"`
	MinC          float64 `json:"min_c"`
	PrecipProbPct float64 `json:"precip_prob_pct"`
	Condition     string  `json:"condition"`
}

// Hour is one hourly forecast slot.
type Hour struct {
	Time          string  `json:"time"`
	TemperatureC  float64 `json:"temperature_c"`
	PrecipProbPct float64 `json:"precip_prob_pct"`
	Condition     string  `json:"condition"`
}

// Report is the weather tool payload. Afternoon is set only for the
// afternoon-window variant.
type Report struct {
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Current   Current `json:"current"`
	Daily     []Day   `json:"daily,omitempty"`
	Afternoon []Hour  `json:"afternoon,omitempty"`
}

// Client queries Open-Meteo geocoding and forecast endpoints.
type Client struct {
	forecastURL string
	geocodeURL  string
	enabled     bool
	http        *utils.HTTPClient
}

func NewClient(cfg config.WeatherConfig, timeout time.Duration) *Client {
	return &Client{
		forecastURL: cfg.ForecastURL,
		geocodeURL:  cfg.GeocodeURL,
		enabled:     cfg.Enabled,
		http:        utils.NewHTTPClient(timeout, 1, 0),
	}
}

type place struct {
	Name      string  `json:"name"`
	Admin1    string  `json:"admin1"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// geocode resolves location, retrying with the leading segment of a
// "District, Region" string when the full form is unknown.
func (c *Client) geocode(ctx context.Context, location string) (place, error) {
	candidates := []string{strings.TrimSpace(location)}
	if i := strings.Index(location, ","); i > 0 {
		candidates = append(candidates, strings.TrimSpace(location[:i]))
	}
	for _, name := range candidates {
		params := url.Values{}
		params.Set("name", name)
		params.Set("count", "1")
		params.Set("language", "en")
		var raw struct {
			Results []place `json:"results"`
		}
		if err := c.http.DoJSON(ctx, http.MethodGet, c.geocodeURL+"?"+params.Encode(), nil, nil, &raw); err != nil {
			return place{}, fmt.Errorf("geocode %q: %w", name, err)
		}
		if len(raw.Results) > 0 {
			return raw.Results[0], nil
		}
	}
	return place{}, fmt.Errorf("%w: %s", ErrLocationNotFound, location)
}

type forecastResponse struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Time                string  `json:"time"`
		Temperature2m       float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		RelativeHumidity2m  float64 `json:"relative_humidity_2m"`
		WindSpeed10m        float64 `json:"wind_speed_10m"`
		Precipitation       float64 `json:"precipitation"`
		WeatherCode         int     `json:"weather_code"`
	} `json:"current"`
	Hourly struct {
		Time                     []string  `json:"time"`
		Temperature2m            []float64 `json:"temperature_2m"`
		PrecipitationProbability []float64 `json:"precipitation_probability"`
		WeatherCode              []int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Time                        []string  `json:"time"`
		Temperature2mMax            []float64 `json:"temperature_2m_max"`
		Temperature2mMin            []float64 `json:"temperature_2m_min"`
		PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
		WeatherCode                 []int     `json:"weather_code"`
	} `json:"daily"`
}

func (c *Client) fetch(ctx context.Context, location string) (Report, forecastResponse, error) {
	if !c.enabled {
		return Report{}, forecastResponse{}, ErrDisabled
	}
	p, err := c.geocode(ctx, location)
	if err != nil {
		return Report{}, forecastResponse{}, err
	}
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", p.Latitude))
	params.Set("longitude", fmt.Sprintf("%.4f", p.Longitude))
	params.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,wind_speed_10m,precipitation,weather_code")
	params.Set("hourly", "temperature_2m,precipitation_probability,weather_code")
	params.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max")
	params.Set("timezone", "auto")
	params.Set("forecast_days", "3")

	var raw forecastResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, c.forecastURL+"?"+params.Encode(), nil, nil, &raw); err != nil {
		return Report{}, forecastResponse{}, fmt.Errorf("forecast: %w", err)
	}
	label := p.Name
	if p.Admin1 != "" && p.Admin1 != p.Name {
		label += ", " + p.Admin1
	}
	if p.Country != "" {
		label += ", " + p.Country
	}
	rep := Report{
		Location:  label,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timezone:  raw.Timezone,
		Current: Current{
			Time:            raw.Current.Time,
			TemperatureC:    raw.Current.Temperature2m,
			ApparentC:       raw.Current.ApparentTemperature,
			HumidityPct:     raw.Current.RelativeHumidity2m,
			WindKPH:         raw.Current.WindSpeed10m,
			PrecipitationMM: raw.Current.Precipitation,
			Condition:       Condition(raw.Current.WeatherCode),
		},
	}
	return rep, raw, nil
}

// Forecast returns current conditions plus the three-day outlook.
func (c *Client) Forecast(ctx context.Context, location string) (Report, error) {
	rep, raw, err := c.fetch(ctx, location)
	if err != nil {
		return Report{}, err
	}
	d := raw.Daily
	for i := range d.Time {
		rep.Daily = append(rep.Daily, Day{
			Date:          d.Time[i],
			MaxC:          at(d.Temperature2mMax, i),
			MinC:          at(d.Temperature2mMin, i),
			PrecipProbPct: at(d.PrecipitationProbabilityMax, i),
			Condition:     Condition(atInt(d.WeatherCode, i)),
		})
	}
	return rep, nil
}

// AfternoonForecast returns current conditions plus today's 12:00–18:00
// hourly slots in the location's own timezone.
func (c *Client) AfternoonForecast(ctx context.Context, location string) (Report, error) {
	rep, raw, err := c.fetch(ctx, location)
	if err != nil {
		return Report{}, err
	}
	today := raw.Current.Time
	if len(today) >= 10 {
		today = today[:10]
	}
	h := raw.Hourly
	for i, ts := range h.Time {
		// Open-Meteo local timestamps look like 2024-06-03T14:00
		if len(ts) < 13 || ts[:10] != today {
			continue
		}
		hour := ts[11:13]
		if hour < "12" || hour > "18" {
			continue
		}
		rep.Afternoon = append(rep.Afternoon, Hour{
			Time:          ts,
			TemperatureC:  at(h.Temperature2m, i),
			PrecipProbPct: at(h.PrecipitationProbability, i),
			Condition:     Condition(atInt(h.WeatherCode, i)),
		})
	}
	return rep, nil
}

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}

func atInt(xs []int, i int) int {
	if i < len(xs) {
		return xs[i]
	}
	return -1
}

var wmoConditions = map[int]string{
	0: "Clear sky", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
	45: "Fog", 48: "Depositing rime fog",
	51: "Light drizzle", 53: "Moderate drizzle", 55: "Dense drizzle",
	61: "Slight rain", 63: "Moderate rain", 65: "Heavy rain",
	71: "Slight snow", 73: "Moderate snow", 75: "Heavy snow",
	80: "Slight rain showers", 81: "Moderate rain showers", 82: "Violent rain showers",
	95: "Thunderstorm", 96: "Thunderstorm with slight hail", 99: "Thunderstorm with heavy hail",
}

// Condition maps a WMO weather code to text.
func Condition(code int) string {
	if s, ok := wmoConditions[code]; ok {
		return s
	}
	return "Unknown"
}
