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
	NameKFFStateTrends = "kff_state_trends"

	kffStateTrendsURL = "https://raw.githubusercontent.com/KFFData/COVID-19-Data/kff_master/State%20Trend%20Data/State_Trend_Data.csv"
)

// NewKFFStateTrends is the Kaiser Family Foundation state trend export.
func NewKFFStateTrends(d Deps) pipeline.Feed {
	return newKFFStateTrends(d, kffStateTrendsURL)
}

func newKFFStateTrends(d Deps, url string) *source {
	integer := func(src, col string) transform.FieldSpec {
		return transform.Derived(src, transform.EnsureInt).As(col)
	}
	float := func(src, col string) transform.FieldSpec {
		return transform.Derived(src, transform.EnsureFloat).As(col)
	}
	return &source{
		name: NameKFFStateTrends,
		mapping: transform.Mapping{
			Table: "state_trend_data",
			Fields: []transform.FieldSpec{
				transform.Field("state"),
				transform.Field("date"),
				integer("cases", "cases"),
				integer("deaths", "deaths"),
				integer("tests", "tests"),
				integer("casechange", "cases_change"),
				integer("deathchange", "deaths_change"),
				integer("test_change", "tests_change"),
				float("case_means", "cases_7_day_mean"),
				float("death_mean", "deaths_7_day_mean"),
				float("test_means", "tests_7_day_mean"),
				float("case_permill", "cases_per_million"),
				float("death_permill", "deaths_per_million"),
				float("test_permill", "tests_per_million"),
				float("pos_rate", "positivity_rate_7_day_mean"),
				float("rp2", "positivity_rate_7_day_plus_mean"),
				float("pct_change_weekly_cases_7", "pct_change_weekly_cases_7"),
				float("pct_change_weekly_cases_14", "pct_change_weekly_cases_14"),
				float("pct_change_weekly_deaths_7", "pct_change_weekly_deaths_7"),
				float("pct_change_weekly_deaths_14", "pct_change_weekly_deaths_14"),
				float("pct_change_weekly_tests_7", "pct_change_weekly_tests_7"),
				float("pct_change_weekly_tests_14", "pct_change_weekly_tests_14"),
				float("pct_change_positivity_rate_7", "pct_change_positivity_rate_7"),
				float("pct_change_positivity_rate_14", "pct_change_positivity_rate_14"),
				integer("pop", "population"),
				integer("distributed", "vaccines_distributed"),
				integer("administered", "vaccines_administered"),
				integer("one_dose", "vaccines_one_dose"),
				integer("two_dose", "vaccines_two_dose"),
				integer("hotspot", "hotspot"),
			},
			Skip: kffNoCounts,
		},
		fetch: func(ctx context.Context) (iter.Seq2[records.Record, error], error) {
			return fetchCSV(ctx, d.HTTP, url, feed.CSVOptions{})
		},
	}
}

// kffNoCounts drops rows reporting NA for cases, deaths and tests alike.
func kffNoCounts(rec records.Record) bool {
	return rec.String("cases") == "NA" && rec.String("deaths") == "NA" && rec.String("tests") == "NA"
}
