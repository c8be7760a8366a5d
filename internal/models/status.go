package models

import "fmt"

// Status is the closed set of states a ProcessedDocument moves through.
// Assembly ends in DetailsExtracted or DetailsMissing; delivery ends in
// Delivered, Skipped or FailedFinal. FailedFinal is terminal only until the
// user explicitly re-selects the document for another delivery attempt.
type Status int

const (
	StatusCreated Status = iota
	StatusDetailsExtracted
	StatusDetailsMissing
	StatusDelivered
	StatusSkipped
	StatusFailedFinal
)

var statusNames = map[Status]string{
	StatusCreated:          "Created",
	StatusDetailsExtracted: "DetailsExtracted",
	StatusDetailsMissing:   "DetailsMissing",
	StatusDelivered:        "Delivered",
	StatusSkipped:          "Skipped",
	StatusFailedFinal:      "FailedFinal",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

var statusTransitions = map[Status][]Status{
	StatusCreated:          {StatusDetailsExtracted, StatusDetailsMissing},
	StatusDetailsExtracted: {StatusDelivered, StatusSkipped, StatusFailedFinal},
	StatusDetailsMissing:   {StatusDelivered, StatusSkipped, StatusFailedFinal},
	// Re-selecting an already finished document routes it back through
	// delivery, where the ledger hit lands it in Skipped.
	StatusDelivered: {StatusSkipped},
	StatusSkipped:   {StatusSkipped},
	// An explicit retry request puts a failed document back through delivery.
	StatusFailedFinal: {StatusDelivered, StatusSkipped, StatusFailedFinal},
}

// CanTransition reports whether moving from s to next is a legal state change.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ProcessedDocument is one assembled sub-document ready for delivery.
// The canonical Key is its identity; Filename is presentation only and must
// never participate in deduplication.
type ProcessedDocument struct {
	Key      string
	Filename string
	Content  []byte
	Record   *ExtractedRecord
	Group    DocumentGroup
	Ordinal  int // 1-based group ordinal within the run
	Status   Status
	RemoteID string
	Attempts int
	Err      error
}

// Transition moves the document to next, rejecting illegal state changes.
func (d *ProcessedDocument) Transition(next Status) error {
	if !d.Status.CanTransition(next) {
		return fmt.Errorf("illegal status transition %s -> %s for %s", d.Status, next, d.Key)
	}
	d.Status = next
	return nil
}

// ReleaseContent drops the document binary once it is no longer needed.
func (d *ProcessedDocument) ReleaseContent() {
	d.Content = nil
}

// Deliverable reports whether the document is eligible for automatic
// delivery selection. Documents with missing details stay out of the
// automatic set but remain deliverable when forced.
func (d *ProcessedDocument) Deliverable() bool {
	return d.Status == StatusDetailsExtracted
}
