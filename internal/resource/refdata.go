package resource

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/geocode"
	"github.com/CThaw90/refocus-dataset/internal/pipeline"
	"github.com/CThaw90/refocus-dataset/internal/records"
	"github.com/CThaw90/refocus-dataset/internal/transform"
)

// Reference tables filled by the census feed and the geocoded feeds.
const (
	countyTable      = "county_location_data"
	coordinatesTable = "county_coordinates_data"
)

var coordinateColumns = []string{"longitude", "latitude", "city", "county_location_data_id"}

// county is one row of county_location_data.
type county struct {
	ID     int64
	County string
	State  string
	GeoID  string
}

// countyIndex answers the lookups geocoded feeds make against the county
// table. Names compare case-insensitively and without accents.
type countyIndex struct {
	all     []county
	byName  map[string]county
	byGeoID map[string]county
	byID    map[int64]county
}

func countyKey(name, state string) string {
	return strings.ToLower(transform.FoldAccents(strings.TrimSpace(name))) + "|" + strings.ToLower(strings.TrimSpace(state))
}

func loadCounties(ctx context.Context, store pipeline.Store) (*countyIndex, error) {
	rows, err := store.Select(ctx, countyTable, []string{"id", "county", "state", "geo_id"}, "", 0)
	if err != nil {
		return nil, fmt.Errorf("load counties: %w", err)
	}
	ix := &countyIndex{
		byName:  make(map[string]county, len(rows)),
		byGeoID: make(map[string]county, len(rows)),
		byID:    make(map[int64]county, len(rows)),
	}
	for _, r := range rows {
		if len(r) < 4 {
			continue
		}
		id, ok := records.Int(cell(r[0]))
		if !ok {
			continue
		}
		c := county{ID: id, County: cell(r[1]), State: cell(r[2]), GeoID: cell(r[3])}
		ix.all = append(ix.all, c)
		ix.byName[countyKey(c.County, c.State)] = c
		if c.GeoID != "" {
			ix.byGeoID[c.GeoID] = c
		}
		ix.byID[id] = c
	}
	return ix, nil
}

// find returns the county with exactly this name in state.
func (ix *countyIndex) find(name, state string) (county, bool) {
	c, ok := ix.byName[countyKey(name, state)]
	return c, ok
}

// findPrefix returns the counties in state whose name starts with name.
func (ix *countyIndex) findPrefix(name, state string) []county {
	prefix := countyKey(name, "")
	prefix = strings.TrimSuffix(prefix, "|")
	st := strings.ToLower(strings.TrimSpace(state))
	var out []county
	for _, c := range ix.all {
		if strings.ToLower(strings.TrimSpace(c.State)) != st {
			continue
		}
		if strings.HasPrefix(strings.TrimSuffix(countyKey(c.County, ""), "|"), prefix) {
			out = append(out, c)
		}
	}
	return out
}

// coordinate is one row of county_coordinates_data.
type coordinate struct {
	Point    geocode.Coordinates
	City     string
	CountyID int64
}

// loadCoordinates reads every geocoded point and seeds cache with its
// location so known points are never resolved again. It returns the rows
// joined with their county.
func loadCoordinates(ctx context.Context, store pipeline.Store, ix *countyIndex, cache *aggregate.PartitionCache) ([]coordinate, error) {
	rows, err := store.Select(ctx, coordinatesTable, []string{"latitude", "longitude", "city", "county_location_data_id"}, "", 0)
	if err != nil {
		return nil, fmt.Errorf("load coordinates: %w", err)
	}
	var out []coordinate
	for _, r := range rows {
		if len(r) < 4 {
			continue
		}
		pt, ok := geocode.ParseCoordinates(cell(r[0]), cell(r[1]))
		if !ok {
			continue
		}
		id, ok := records.Int(cell(r[3]))
		if !ok {
			continue
		}
		c, ok := ix.byID[id]
		if !ok {
			continue
		}
		row := coordinate{Point: pt, City: cell(r[2]), CountyID: id}
		out = append(out, row)
		geocode.Remember(cache, pt, geocode.Location{City: row.City, County: c.County, State: c.State})
	}
	return out, nil
}

// coordinateWriter queues newly geocoded points during a save and writes
// them in one transaction once the save has committed. A point already
// stored, or already queued, is not queued again.
type coordinateWriter struct {
	known   map[string]struct{}
	pending []coordinate
}

func (w *coordinateWriter) reset(stored []coordinate) {
	w.known = make(map[string]struct{}, len(stored))
	for _, c := range stored {
		w.known[c.Point.Key()] = struct{}{}
	}
	w.pending = nil
}

func (w *coordinateWriter) add(pt geocode.Coordinates, city string, countyID int64) {
	if w.known == nil {
		w.known = make(map[string]struct{})
	}
	if _, ok := w.known[pt.Key()]; ok {
		return
	}
	w.known[pt.Key()] = struct{}{}
	w.pending = append(w.pending, coordinate{Point: pt, City: city, CountyID: countyID})
}

func (w *coordinateWriter) flush(ctx context.Context, store pipeline.Store) error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := store.Begin(ctx); err != nil {
		return err
	}
	for _, c := range w.pending {
		vals := []any{c.Point.Longitude, c.Point.Latitude, c.City, c.CountyID}
		if err := store.Insert(ctx, coordinatesTable, coordinateColumns, vals); err != nil {
			_ = store.Rollback()
			return err
		}
	}
	if err := store.Commit(ctx); err != nil {
		return err
	}
	w.pending = nil
	return nil
}

// geoRefs is the reference data shared by the geocoded feeds.
type geoRefs struct {
	counties *countyIndex
	// cities maps a stored coordinate's city and state to its county.
	cities map[string]county
	coords coordinateWriter
}

// load reads both reference tables and seeds cache with the known points.
func (g *geoRefs) load(ctx context.Context, store pipeline.Store, cache *aggregate.PartitionCache) error {
	ix, err := loadCounties(ctx, store)
	if err != nil {
		return err
	}
	stored, err := loadCoordinates(ctx, store, ix, cache)
	if err != nil {
		return err
	}
	g.counties = ix
	g.cities = make(map[string]county, len(stored))
	for _, c := range stored {
		cty := ix.byID[c.CountyID]
		g.cities[countyKey(c.City, cty.State)] = cty
	}
	g.coords.reset(stored)
	return nil
}

// index returns the county index, empty before load.
func (g *geoRefs) index() *countyIndex {
	if g.counties == nil {
		g.counties = &countyIndex{byName: map[string]county{}, byGeoID: map[string]county{}, byID: map[int64]county{}}
	}
	return g.counties
}

// cell renders a selected value as a trimmed string.
func cell(v any) string {
	return records.Record{"v": v}.String("v")
}

// locate reverse-geocodes the point in rec[latField], rec[lonField].
// Unparseable points report false. A resolver failure is logged and the
// point is remembered as unavailable for the rest of the save, so the row
// degrades to N/A instead of failing the save.
func locate(ctx context.Context, r geocode.Resolver, cache *aggregate.PartitionCache, rec records.Record, latField, lonField string, log *slog.Logger) (geocode.Coordinates, geocode.Location, bool) {
	pt, ok := geocode.ParseCoordinates(rec[latField], rec[lonField])
	if !ok || r == nil {
		return pt, geocode.Location{}, false
	}
	loc, err := geocode.Lookup(ctx, r, cache, pt)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("resource: geocode failed", "provider", r.Name(), "point", pt.Key(), "err", err)
		}
		unknown := geocode.Location{City: geocode.NotAvailable, County: geocode.NotAvailable, State: geocode.NotAvailable}
		geocode.Remember(cache, pt, unknown)
		return pt, unknown, true
	}
	return pt, loc, true
}
