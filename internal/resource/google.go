package resource

import (
	"context"
	"iter"

	"github.com/CThaw90/refocus-dataset/internal/feed"
	"github.com/CThaw90/refocus-dataset/internal/pipeline"
	"github.com/CThaw90/refocus-dataset/internal/records"
	"github.com/CThaw90/refocus-dataset/internal/transform"
)

const (
	NameGoogleMobility = "google_mobility"

	googleMobilityURL = "https://www.gstatic.com/covid19/mobility/Region_Mobility_Report_CSVs.zip"
)

// googleMobilityReports are the archive members read, in order.
var googleMobilityReports = []string{
	"2020_US_Region_Mobility_Report.csv",
	"2021_US_Region_Mobility_Report.csv",
	"2022_US_Region_Mobility_Report.csv",
	"2023_US_Region_Mobility_Report.csv",
}

// NewGoogleMobility is Google's community mobility report for US counties.
func NewGoogleMobility(d Deps) pipeline.Feed {
	return newGoogleMobility(d, googleMobilityURL)
}

func newGoogleMobility(d Deps, url string) *source {
	change := func(category string) transform.FieldSpec {
		return transform.Derived(category+"_percent_change_from_baseline", transform.IntOrNull).As(category + "_change")
	}
	return &source{
		name: NameGoogleMobility,
		mapping: transform.Mapping{
			Table: "google_mobility",
			Fields: []transform.FieldSpec{
				transform.Field("sub_region_1").As("state"),
				transform.Field("sub_region_2").As("county"),
				transform.Derived("date", transform.ISODate),
				change("retail_and_recreation"),
				change("grocery_and_pharmacy"),
				change("parks"),
				change("transit_stations"),
				change("workplaces"),
				change("residential"),
			},
			Skip: func(rec records.Record) bool {
				return rec.String("sub_region_1") == "" || rec.String("sub_region_2") == ""
			},
		},
		fetch: func(ctx context.Context) (iter.Seq2[records.Record, error], error) {
			body, err := d.HTTP.Fetch(ctx, url, nil)
			if err != nil {
				return nil, err
			}
			return feed.ZipCSV(body, googleMobilityReports, feed.CSVOptions{}), nil
		},
	}
}
