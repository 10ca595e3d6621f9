package domain

import "time"

// PipelineResult summarises a single end-to-end pipeline run. Failures inside
// the run never surface as Go errors; they are collected into Errors.
type PipelineResult struct {
	ID                     string        `json:"id"`
	Timestamp              time.Time     `json:"timestamp"`
	Enabled                bool          `json:"enabled"`
	NewsScanned            int           `json:"news_scanned"`
	NewsTriggered          int           `json:"news_triggered"`
	EventsFound            int           `json:"events_found"`
	OpportunitiesRaw       int           `json:"opportunities_raw"`
	OpportunitiesConfirmed int           `json:"opportunities_confirmed"`
	Opportunities          []Opportunity `json:"opportunities"`
	Errors                 []string      `json:"errors"`
}
