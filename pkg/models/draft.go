package models

import (
	"fmt"
	"strings"
)

// Image is a file pasted into a job description, uploaded after the job is created.
type Image struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// Draft is the "add job" form content.
type Draft struct {
	JobTitle       string  `json:"jobTitle"`
	CompanyName    string  `json:"companyName"`
	JobDescription string  `json:"jobDescription"`
	JobLink        string  `json:"joblink"`
	Images         []Image `json:"images,omitempty"`
}

// JobEdit carries the editable descriptive fields. Nil fields are left unchanged.
type JobEdit struct {
	JobTitle       *string  `json:"jobTitle,omitempty"`
	CompanyName    *string  `json:"companyName,omitempty"`
	JobDescription *string  `json:"jobDescription,omitempty"`
	JobLink        *string  `json:"joblink,omitempty"`
	AttachmentURLs []string `json:"attachmentUrls,omitempty"`
}

// IsEmpty reports whether the edit would change nothing.
func (e JobEdit) IsEmpty() bool {
	return e.JobTitle == nil && e.CompanyName == nil && e.JobDescription == nil &&
		e.JobLink == nil && len(e.AttachmentURLs) == 0
}

// Validate checks the fields the duplicate check keys on.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.JobTitle) == "" {
		return fmt.Errorf("jobTitle is required")
	}
	if strings.TrimSpace(d.CompanyName) == "" {
		return fmt.Errorf("companyName is required")
	}
	return nil
}
