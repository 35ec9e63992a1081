package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forecastJSON = `{
 "timezone":"Asia/Hong_Kong",
 "current":{"time":"2024-06-03T10:00","temperature_2m":29.4,"apparent_temperature":33.1,"relative_humidity_2m":82,"wind_speed_10m":12.5,"precipitation":0,"weather_code":2},
 "hourly":{
  "time":["2024-06-03T11:00","2024-06-03T12:00","2024-06-03T15:00","2024-06-03T18:00","2024-06-03T19:00","2024-06-04T13:00"],
  "temperature_2m":[29.8,30.5,31.2,29.0,28.1,30.0],
  "precipitation_probability":[10,20,60,40,30,5],
  "weather_code":[2,3,95,61,3,1]},
 "daily":{
  "time":["2024-06-03","2024-06-04"],
  "temperature_2m_max":[31.5,30.2],
  "temperature_2m_min":[26.1,25.9],
  "precipitation_probability_max":[60,20],
  "weather_code":[95,2]}
}`

func newTestClient(t *testing.T, geocode http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/geocode", geocode)
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "22.2800", r.URL.Query().Get("latitude"))
		_, _ = w.Write([]byte(forecastJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(config.WeatherConfig{
		Enabled:     true,
		ForecastURL: srv.URL + "/forecast",
		GeocodeURL:  srv.URL + "/geocode",
	}, time.Second)
}

func hongKong(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`{"results":[{"name":"Hong Kong","country":"China","latitude":22.28,"longitude":114.17}]}`))
}

func TestForecast(t *testing.T) {
	c := newTestClient(t, hongKong)
	rep, err := c.Forecast(context.Background(), "Hong Kong")
	require.NoError(t, err)
	assert.Equal(t, "Hong Kong, China", rep.Location)
	assert.Equal(t, "Partly cloudy", rep.Current.Condition)
	require.Len(t, rep.Daily, 2)
	assert.Equal(t, "Thunderstorm", rep.Daily[0].Condition)
	assert.Empty(t, rep.Afternoon)

	text := rep.Text()
	assert.True(t, strings.HasPrefix(text, "Weather for Hong Kong, China (Asia/Hong_Kong)"))
	assert.Contains(t, text, "Partly cloudy, 29.4°C (feels like 33.1°C), humidity 82%, wind 12.5 km/h")
	assert.Contains(t, text, "- 2024-06-03: Thunderstorm, 26.1–31.5°C, 60% chance of rain")
}

func TestAfternoonForecastKeepsTodayNoonToSix(t *testing.T) {
	c := newTestClient(t, hongKong)
	rep, err := c.AfternoonForecast(context.Background(), "Hong Kong")
	require.NoError(t, err)
	require.Len(t, rep.Afternoon, 3)
	assert.Equal(t, "2024-06-03T12:00", rep.Afternoon[0].Time)
	assert.Equal(t, "2024-06-03T18:00", rep.Afternoon[2].Time)
	assert.Empty(t, rep.Daily)
	assert.Contains(t, rep.Text(), "- 15:00: Thunderstorm, 31.2°C, 60% chance of rain")
}

func TestGeocodeFallsBackToLeadingSegment(t *testing.T) {
	var asked []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		asked = append(asked, name)
		if name == "Sha Tin" {
			_, _ = w.Write([]byte(`{"results":[{"name":"Sha Tin","admin1":"New Territories","country":"Hong Kong","latitude":22.28,"longitude":114.19}]}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	rep, err := c.Forecast(context.Background(), "Sha Tin, Hong Kong")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sha Tin, Hong Kong", "Sha Tin"}, asked)
	assert.Equal(t, "Sha Tin, New Territories, Hong Kong", rep.Location)
}

func TestUnknownLocation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.Forecast(context.Background(), "Atlantis")
	require.ErrorIs(t, err, ErrLocationNotFound)
}

func TestDisabled(t *testing.T) {
	c := NewClient(config.WeatherConfig{}, time.Second)
	_, err := c.Forecast(context.Background(), "Hong Kong")
	require.ErrorIs(t, err, ErrDisabled)
}

func TestCondition(t *testing.T) {
	assert.Equal(t, "Clear sky", Condition(0))
	assert.Equal(t, "Unknown", Condition(-1))
}
