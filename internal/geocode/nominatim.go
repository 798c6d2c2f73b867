package geocode

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// DefaultNominatimURL is the public OpenStreetMap instance. Its usage policy
// allows one request per second.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim resolves points with the OpenStreetMap reverse endpoint.
type Nominatim struct {
	base string
	c    *client
}

// NewNominatim returns a resolver throttled to opt.Interval, defaulting to
// one second.
func NewNominatim(opt Options) *Nominatim {
	if opt.BaseURL == "" {
		opt.BaseURL = DefaultNominatimURL
	}
	if opt.Interval == 0 {
		opt.Interval = time.Second
	}
	return &Nominatim{base: opt.BaseURL, c: newClient(opt)}
}

func (n *Nominatim) Name() string { return "nominatim" }

// Resolve returns the address parts of the point. A response without an
// address (open water, unknown point) is not an error; every part is then
// NotAvailable.
func (n *Nominatim) Resolve(ctx context.Context, c Coordinates) (Location, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Longitude, 'f', -1, 64))

	doc, err := n.c.getJSON(ctx, n.base+"/reverse?"+q.Encode())
	if err != nil {
		return Location{}, err
	}
	addr := doc.Get("address")
	if !addr.Exists() {
		return Location{City: NotAvailable, County: NotAvailable, State: NotAvailable}, nil
	}
	city := addr.Get("city").String()
	if city == "" {
		city = addr.Get("town").String()
	}
	if city == "" {
		city = addr.Get("village").String()
	}
	return Location{
		City:   city,
		County: addr.Get("county").String(),
		State:  addr.Get("state").String(),
	}, nil
}
