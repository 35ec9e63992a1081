package worldclock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/mohammad-safakhou/ragrouter/config"
)

var (
	ErrDisabled     = errors.New("time tool is disabled")
	ErrUnknownPlace = errors.New("unknown location for time lookup")
)

// zones maps lower-cased place names (EN and ZH) to IANA zones.
var zones = map[string]string{
	"hong kong": "Asia/Hong_Kong", "hk": "Asia/Hong_Kong", "香港": "Asia/Hong_Kong",
	"macau": "Asia/Macau", "macao": "Asia/Macau", "澳門": "Asia/Macau",
	"taipei": "Asia/Taipei", "taiwan": "Asia/Taipei", "台北": "Asia/Taipei", "台灣": "Asia/Taipei",
	"beijing": "Asia/Shanghai", "shanghai": "Asia/Shanghai", "shenzhen": "Asia/Shanghai",
	"china": "Asia/Shanghai", "北京": "Asia/Shanghai", "上海": "Asia/Shanghai", "深圳": "Asia/Shanghai",
	"tokyo": "Asia/Tokyo", "japan": "Asia/Tokyo", "東京": "Asia/Tokyo", "日本": "Asia/Tokyo",
	"seoul": "Asia/Seoul", "首爾": "Asia/Seoul",
	"singapore": "Asia/Singapore", "新加坡": "Asia/Singapore",
	"bangkok": "Asia/Bangkok", "dubai": "Asia/Dubai",
	"mumbai": "Asia/Kolkata", "delhi": "Asia/Kolkata", "india": "Asia/Kolkata",
	"sydney": "Australia/Sydney", "melbourne": "Australia/Melbourne", "悉尼": "Australia/Sydney",
	"auckland": "Pacific/Auckland",
	"london": "Europe/London", "uk": "Europe/London", "倫敦": "Europe/London",
	"paris": "Europe/Paris", "巴黎": "Europe/Paris", "berlin": "Europe/Berlin", "madrid": "Europe/Madrid",
	"rome": "Europe/Rome", "amsterdam": "Europe/Amsterdam", "zurich": "Europe/Zurich",
	"moscow": "Europe/Moscow",
	"new york": "America/New_York", "紐約": "America/New_York", "toronto": "America/Toronto",
	"chicago": "America/Chicago", "denver": "America/Denver",
	"los angeles": "America/Los_Angeles", "san francisco": "America/Los_Angeles", "洛杉磯": "America/Los_Angeles",
	"vancouver": "America/Vancouver", "sao paulo": "America/Sao_Paulo",
	"utc": "UTC", "gmt": "UTC",
}

// placeNames lists zone keys longest first; substring matching skips the
// short abbreviations, which only match exactly.
var placeNames = func() []string {
	keys := make([]string, 0, len(zones))
	for k := range zones {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// Clock is the time tool payload.
type Clock struct {
	Location  string `json:"location"`
	Zone      string `json:"zone"`
	Local     string `json:"local"`
	Date      string `json:"date"`
	Weekday   string `json:"weekday"`
	UTCOffset string `json:"utc_offset"`
	Unix      int64  `json:"unix"`
}

// Client resolves place names to zones and reads the current time.
type Client struct {
	enabled     bool
	defaultZone string
	now         func() time.Time
}

func NewClient(cfg config.TimeConfig) *Client {
	zone := cfg.DefaultZone
	if zone == "" {
		zone = "Asia/Hong_Kong"
	}
	return &Client{enabled: cfg.Enabled, defaultZone: zone, now: time.Now}
}

// ZoneFor resolves a free-text location. The empty string maps to the
// default zone; an IANA name is accepted verbatim.
func (c *Client) ZoneFor(location string) (label, zone string, err error) {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return c.defaultZone, c.defaultZone, nil
	}
	lower := strings.ToLower(loc)
	if z, ok := zones[lower]; ok {
		return loc, z, nil
	}
	for _, name := range placeNames {
		if len(name) < 4 {
			continue
		}
		if strings.Contains(lower, name) {
			return loc, zones[name], nil
		}
	}
	if strings.Contains(loc, "/") {
		if _, err := time.LoadLocation(loc); err == nil {
			return loc, loc, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnknownPlace, loc)
}

// Now returns the wall clock at location.
func (c *Client) Now(ctx context.Context, location string) (Clock, error) {
	if !c.enabled {
		return Clock{}, ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return Clock{}, err
	}
	label, zone, err := c.ZoneFor(location)
	if err != nil {
		return Clock{}, err
	}
	tz, err := time.LoadLocation(zone)
	if err != nil {
		return Clock{}, fmt.Errorf("load zone %s: %w", zone, err)
	}
	t := c.now().In(tz)
	return Clock{
		Location:  label,
		Zone:      zone,
		Local:     t.Format("15:04:05"),
		Date:      t.Format("2006-01-02"),
		Weekday:   t.Weekday().String(),
		UTCOffset: t.Format("-07:00"),
		Unix:      t.Unix(),
	}, nil
}

func (c Clock) Text() string {
	return fmt.Sprintf("Current time in %s (%s): %s on %s, %s (UTC%s)",
		c.Location, c.Zone, c.Local, c.Weekday, c.Date, c.UTCOffset)
}
