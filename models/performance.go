package models

// PagePerformance is the per-page engagement row of the performance report.
type PagePerformance struct {
	Slug           string  `json:"slug"`
	Views          int64   `json:"views"`
	UniqueVisitors int64   `json:"uniqueVisitors"`
	AvgScrollDepth float64 `json:"avgScrollDepth"`
}

// PageCount is a generic page/count aggregation row (entry and exit pages).
type PageCount struct {
	Page  string `json:"page"`
	Count int64  `json:"count"`
}

// PageTiming is the mean session duration for sessions landing on a page.
type PageTiming struct {
	Page        string  `json:"page"`
	AvgDuration float64 `json:"avgDuration"`
	Sessions    int64   `json:"sessions"`
}

// PerformanceReport is the full output of the content performance
// aggregator. Empty windows yield empty slices and zeroed counts, never an
// error.
type PerformanceReport struct {
	PagePerformance  []PagePerformance `json:"pagePerformance"`
	EntryPages       []PageCount       `json:"entryPages"`
	ExitPages        []PageCount       `json:"exitPages"`
	AvgTimeByPage    []PageTiming      `json:"avgTimeByPage"`
	VisitorBreakdown VisitorBreakdown  `json:"visitorBreakdown"`
}
