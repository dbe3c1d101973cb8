// Package models contains shared data models used across the jobsync codebase.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle column a job record sits in.
type Status string

const (
	StatusSaved        Status = "saved"
	StatusApplied      Status = "applied"
	StatusInterviewing Status = "interviewing"
	StatusOffer        Status = "offer"
	StatusRejected     Status = "rejected"
	StatusDeleted      Status = "deleted"
)

// BoardStatuses lists the visible columns in display order. Deleted records are never shown.
var BoardStatuses = []Status{StatusSaved, StatusApplied, StatusInterviewing, StatusOffer, StatusRejected}

var validStatuses = map[Status]bool{
	StatusSaved:        true,
	StatusApplied:      true,
	StatusInterviewing: true,
	StatusOffer:        true,
	StatusRejected:     true,
	StatusDeleted:      true,
}

// Valid reports whether s is one of the six known statuses.
func (s Status) Valid() bool {
	return validStatuses[s]
}

// IsActivePipeline reports whether s is a status past "saved" that a saved record may only
// enter once an artifact exists.
func (s Status) IsActivePipeline() bool {
	switch s {
	case StatusApplied, StatusInterviewing, StatusOffer, StatusRejected:
		return true
	}
	return false
}

// ParseStatus converts a raw string into a Status, rejecting unknown values.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown job status %q", raw)
	}
	return s, nil
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TimelineEntry is a server-computed history item. The client never derives these itself.
type TimelineEntry struct {
	Status Status    `json:"status"`
	At     Timestamp `json:"at"`
	Note   string    `json:"note,omitempty"`
}

// JobRecord is one tracked job application, owned by the user identified by UserID.
type JobRecord struct {
	JobID          string          `json:"jobID"`
	JobTitle       string          `json:"jobTitle"`
	CompanyName    string          `json:"companyName"`
	JobDescription string          `json:"jobDescription"`
	JobLink        string          `json:"joblink"`
	CurrentStatus  Status          `json:"currentStatus"`
	DateAdded      string          `json:"dateAdded"`
	CreatedAt      Timestamp       `json:"createdAt"`
	UpdatedAt      Timestamp       `json:"updatedAt"`
	Attachments    []string        `json:"attachments,omitempty"`
	UserID         string          `json:"userID"`
	Timeline       []TimelineEntry `json:"timeline,omitempty"`
}

// AttachmentsNewestFirst returns the attachment URLs in the order users see them.
// The wire order appends new URLs at the end.
func (j JobRecord) AttachmentsNewestFirst() []string {
	out := make([]string, len(j.Attachments))
	for i, u := range j.Attachments {
		out[len(j.Attachments)-1-i] = u
	}
	return out
}

// HasAttachments reports whether at least one artifact URL is recorded for the job.
func (j JobRecord) HasAttachments() bool {
	return len(j.Attachments) > 0
}

// Touch stamps UpdatedAt with now, never moving it backwards.
func Touch(j *JobRecord, now time.Time) {
	if now.After(j.UpdatedAt.Time) {
		j.UpdatedAt = Timestamp{Time: now.UTC()}
	}
}

// CloneRecords returns a deep-enough copy of records so callers can't mutate shared slices.
func CloneRecords(records []JobRecord) []JobRecord {
	if records == nil {
		return nil
	}
	out := make([]JobRecord, len(records))
	for i, r := range records {
		if r.Attachments != nil {
			r.Attachments = append([]string(nil), r.Attachments...)
		}
		if r.Timeline != nil {
			r.Timeline = append([]TimelineEntry(nil), r.Timeline...)
		}
		out[i] = r
	}
	return out
}

// Matches reports whether the title or company contains q, ignoring case. An empty query
// matches everything.
func (j JobRecord) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(j.JobTitle), q) ||
		strings.Contains(strings.ToLower(j.CompanyName), q)
}

// SortByRecent orders records most recently touched first. Ties fall back to CreatedAt and
// then keep their original order. DateAdded is never consulted.
func SortByRecent(records []JobRecord) {
	sort.SliceStable(records, func(a, b int) bool {
		ua, ub := records[a].UpdatedAt.Time, records[b].UpdatedAt.Time
		if !ua.Equal(ub) {
			return ua.After(ub)
		}
		return records[a].CreatedAt.After(records[b].CreatedAt.Time)
	})
}
