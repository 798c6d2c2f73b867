package geocode

import (
	"context"
	"net/url"
	"strconv"
)

// DefaultFCCURL is the FCC Area API host.
const DefaultFCCURL = "https://geo.fcc.gov"

// FCC resolves points to census county and state names. It never reports a
// city.
type FCC struct {
	base string
	c    *client
}

func NewFCC(opt Options) *FCC {
	if opt.BaseURL == "" {
		opt.BaseURL = DefaultFCCURL
	}
	return &FCC{base: opt.BaseURL, c: newClient(opt)}
}

func (f *FCC) Name() string { return "fcc" }

func (f *FCC) Resolve(ctx context.Context, c Coordinates) (Location, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Longitude, 'f', -1, 64))
	q.Set("format", "json")

	doc, err := f.c.getJSON(ctx, f.base+"/api/census/area?"+q.Encode())
	if err != nil {
		return Location{}, err
	}
	first := doc.Get("results.0")
	if !first.Exists() {
		return Location{City: NotAvailable, County: NotAvailable, State: NotAvailable}, nil
	}
	return Location{
		City:   NotAvailable,
		County: first.Get("county_name").String(),
		State:  first.Get("state_name").String(),
	}, nil
}
