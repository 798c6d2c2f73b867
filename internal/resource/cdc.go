package resource

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/feed"
	"github.com/CThaw90/refocus-dataset/internal/pipeline"
	"github.com/CThaw90/refocus-dataset/internal/records"
	"github.com/CThaw90/refocus-dataset/internal/transform"
)

const (
	NameCDCHospitalizations = "cdc_hospitalizations"
	NameCDCStateTrends      = "cdc_state_trends"

	cdcHospitalizationsURL = "https://gis.cdc.gov/grasp/covid19_3_api/PostPhase03DataTool"
	cdcStateTrendURL       = "https://covid.cdc.gov/covid-data-tracker/COVIDData/getAjaxData?id=us_trend_by_%s"
)

var cdcDownloadRequest = []byte(`{"appversion":"Public","key":"datadownload","injson":[]}`)

// NewCDCHospitalizations is the COVID-NET weekly hospitalization rates
// download.
func NewCDCHospitalizations(d Deps) pipeline.Feed {
	return newCDCHospitalizations(d, cdcHospitalizationsURL)
}

func newCDCHospitalizations(d Deps, url string) *source {
	return &source{
		name: NameCDCHospitalizations,
		mapping: transform.Mapping{
			Table: "cdc_hospitalizations",
			Fields: []transform.FieldSpec{
				transform.Field("catchment"),
				transform.Field("network"),
				transform.Field("mmwr-year").As("mmwr_year"),
				transform.Field("mmwr-week").As("mmwr_week"),
				transform.Field("age_category"),
				transform.Field("sex_category"),
				transform.Field("race_category"),
				transform.Derived("cumulative-rate", transform.EnsureFloat).As("cumulative_rate"),
				transform.Derived("weekly-rate", transform.EnsureFloat).As("weekly_rate"),
				transform.Derived("", mmwrDate).As("mmwr_date"),
			},
		},
		fetch: func(ctx context.Context) (iter.Seq2[records.Record, error], error) {
			body, err := d.HTTP.FetchPost(ctx, url, cdcDownloadRequest, http.Header{"Content-Type": {"application/json"}})
			if err != nil {
				return nil, err
			}
			return feed.JSONArray(body, "datadownload"), nil
		},
	}
}

// mmwrDate yields the Saturday ending the record's MMWR week.
func mmwrDate(_ context.Context, rec records.Record, _ string, _ *aggregate.PartitionCache) (any, error) {
	year, ok1 := records.Int(rec["mmwr-year"])
	week, ok2 := records.Int(rec["mmwr-week"])
	if !ok1 || !ok2 {
		return nil, nil
	}
	return MMWRWeekEnd(int(year), int(week)).Format("2006-01-02"), nil
}

// MMWRWeekEnd returns the last day (a Saturday) of the given MMWR week.
// Week 1 is the first Sunday-to-Saturday week with at least four days in
// the year, so it ends on the first Saturday on or after January 4.
func MMWRWeekEnd(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	first := jan4.AddDate(0, 0, (int(time.Saturday)-int(jan4.Weekday())+7)%7)
	return first.AddDate(0, 0, (week-1)*7)
}

// NewCDCStateTrends is the CDC data tracker's daily trend per state. It
// fills the same table as kff_state_trends.
func NewCDCStateTrends(d Deps) pipeline.Feed {
	return newCDCStateTrends(d, cdcStateTrendURL, StateAbbreviations())
}

func newCDCStateTrends(d Deps, urlFormat string, states []string) *source {
	return &source{
		name: NameCDCStateTrends,
		mapping: transform.Mapping{
			Table:  "state_trend_data",
			Fields: cdcStateTrendFields(),
		},
		fetch: func(ctx context.Context) (iter.Seq2[records.Record, error], error) {
			seqs := make([]iter.Seq2[records.Record, error], 0, len(states))
			for _, st := range states {
				body, err := d.HTTP.Fetch(ctx, fmt.Sprintf(urlFormat, st), http.Header{"Content-Type": {"application/json"}})
				if err != nil {
					return nil, fmt.Errorf("state %s: %w", st, err)
				}
				seqs = append(seqs, feed.JSONArray(body, "us_trend_by_Geography"))
			}
			return feed.Concat(seqs...), nil
		},
	}
}

func cdcStateTrendFields() []transform.FieldSpec {
	zero := func(col string) transform.FieldSpec { return transform.Derived("", transform.Zero).As(col) }
	return []transform.FieldSpec{
		transform.Field("state"),
		transform.Derived("date", transform.ISODate),
		transform.Field("tot_cases").As("cases"),
		transform.Field("tot_deaths").As("deaths"),
		transform.Derived("new_test_results_reported", transform.CumulativeSum("state", "tests")).As("tests"),
		transform.Field("New_case").As("cases_change"),
		transform.Field("new_death").As("deaths_change"),
		transform.Derived("new_test_results_reported", transform.EnsureInt).As("tests_change"),
		transform.Derived("New_case", transform.RollingMean("state", "cases_7_day_mean", 7)).As("cases_7_day_mean"),
		transform.Derived("new_death", transform.RollingMean("state", "deaths_7_day_mean", 7)).As("deaths_7_day_mean"),
		transform.Derived("new_test_results_reported", transform.RollingMean("state", "tests_7_day_mean", 7)).As("tests_7_day_mean"),
		transform.Derived("new_test_results_reported", transform.Ratio("New_case")).As("positivity_rate"),
		zero("cases_per_million"),
		zero("deaths_per_million"),
		zero("tests_per_million"),
		zero("positivity_rate_7_day_mean"),
		transform.Derived("tot_cases", transform.PercentChange("state", "cases_7", 7)).As("pct_change_weekly_cases_7"),
		transform.Derived("tot_cases", transform.PercentChange("state", "cases_14", 14)).As("pct_change_weekly_cases_14"),
		transform.Derived("tot_deaths", transform.PercentChange("state", "deaths_7", 7)).As("pct_change_weekly_deaths_7"),
		transform.Derived("tot_deaths", transform.PercentChange("state", "deaths_14", 14)).As("pct_change_weekly_deaths_14"),
		zero("pct_change_weekly_tests_7"),
		zero("pct_change_weekly_tests_14"),
		zero("pct_change_positivity_rate_7"),
		zero("pct_change_positivity_rate_14"),
		zero("population"),
		zero("vaccines_distributed"),
		zero("vaccines_administered"),
		zero("vaccines_one_dose"),
		zero("vaccines_two_dose"),
		zero("hotspot"),
	}
}
