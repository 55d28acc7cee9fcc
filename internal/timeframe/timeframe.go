// Package timeframe provides trailing time windows for analytics queries
// and helpers for building gap-free daily time series from grouped results.
package timeframe

import (
	"fmt"
	"strconv"
	"time"
)

// DateStat is a single point in a daily time series.
type DateStat struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TimeFrame represents a trailing window of whole days ending now.
type TimeFrame struct {
	From time.Time
	To   time.Time
	Days int
}

// NewTrailingDays builds a window covering the last `days` days ending at `now`.
func NewTrailingDays(days int, now time.Time) (*TimeFrame, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	to := now.UTC()
	return &TimeFrame{
		From: to.AddDate(0, 0, -days),
		To:   to,
		Days: days,
	}, nil
}

// ParseDays parses a timeRange query parameter like "30" into a day count.
// Invalid or non-positive values fall back to the provided default.
func ParseDays(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return fallback
	}
	return days
}

// SQLiteDayExpression returns the SQLite expression that buckets a datetime
// column into YYYY-MM-DD strings for GROUP BY.
func SQLiteDayExpression(column string) string {
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
}

func (tf *TimeFrame) Validate() error {
	if tf.From.After(tf.To) {
		return fmt.Errorf("fromTime must be before toTime")
	}
	return nil
}

func (tf *TimeFrame) Duration() time.Duration {
	return tf.To.Sub(tf.From)
}

// DayLabels returns one YYYY-MM-DD label per day of the window, oldest first.
func (tf *TimeFrame) DayLabels() []string {
	labels := make([]string, 0, tf.Days+1)
	current := time.Date(tf.From.Year(), tf.From.Month(), tf.From.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(tf.To.Year(), tf.To.Month(), tf.To.Day(), 0, 0, 0, 0, time.UTC)

	// Cap the label count to keep pathological windows from exploding
	maxPoints := 1000
	for i := 0; !current.After(end) && i < maxPoints; i++ {
		labels = append(labels, current.Format("2006-01-02"))
		current = current.AddDate(0, 0, 1)
	}

	return labels
}

// BuildDailySeries expands sparse grouped results into a gap-free series with
// one point per day of the window. Days without data get a zero count.
func (tf *TimeFrame) BuildDailySeries(groupedResults []DateStat) []DateStat {
	resultsMap := make(map[string]int, len(groupedResults))
	for _, result := range groupedResults {
		resultsMap[result.Date] = result.Count
	}

	labels := tf.DayLabels()
	series := make([]DateStat, len(labels))
	for i, label := range labels {
		series[i] = DateStat{
			Date:  label,
			Count: resultsMap[label],
		}
	}

	return series
}
