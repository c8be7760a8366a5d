package models

import "time"

// These structs define the JSON shapes written for run summaries and
// consumed by anything inspecting a finished session.

// DocumentReport is the per-document view of a session: every document's
// terminal status is individually inspectable, not just an aggregate count.
type DocumentReport struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	Pages    []int  `json:"pages"`
	Status   string `json:"status"`
	RemoteID string `json:"remoteId,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunSummary aggregates a whole processing session.
type RunSummary struct {
	RunID      string           `json:"runId"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	PageCount  int              `json:"pageCount"`
	Tier       string           `json:"tier"`
	Counts     map[string]int   `json:"counts"` // terminal status name -> count
	Documents  []DocumentReport `json:"documents"`
}

// Report builds the inspectable view of a processed document.
func (d *ProcessedDocument) Report() DocumentReport {
	r := DocumentReport{
		Key:      d.Key,
		Filename: d.Filename,
		Pages:    append([]int(nil), d.Group...),
		Status:   d.Status.String(),
		RemoteID: d.RemoteID,
		Attempts: d.Attempts,
	}
	if d.Err != nil {
		r.Error = d.Err.Error()
	}
	return r
}
