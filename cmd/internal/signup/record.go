package signup

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a signup record.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusVerified   Status = "verified"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnverified, StatusVerified, StatusCompleted:
		return true
	default:
		return false
	}
}

// ParseStatus maps a stored value onto a Status. Matching is case-insensitive.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Record is one beta application.
type Record struct {
	ID                string
	Email             string
	Why               string
	SourceAddress     string
	BotScore          float64
	VerificationToken string
	Status            Status

	ProblemCategory  *string
	OtherProblemText *string
	PainLevel        *string

	SignupDate   time.Time
	VerifiedDate *time.Time
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status           *Status
	VerifiedDate     *time.Time
	ProblemCategory  *string
	OtherProblemText *string
	PainLevel        *string
}

// Empty reports whether the patch carries no field.
func (p Patch) Empty() bool {
	return p.Status == nil &&
		p.VerifiedDate == nil &&
		p.ProblemCategory == nil &&
		p.OtherProblemText == nil &&
		p.PainLevel == nil
}

// Apply returns a copy of r with p applied.
func (r Record) Apply(p Patch) Record {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.VerifiedDate != nil {
		v := *p.VerifiedDate
		r.VerifiedDate = &v
	}
	if p.ProblemCategory != nil {
		r.ProblemCategory = strPtr(*p.ProblemCategory)
	}
	if p.OtherProblemText != nil {
		r.OtherProblemText = strPtr(*p.OtherProblemText)
	}
	if p.PainLevel != nil {
		r.PainLevel = strPtr(*p.PainLevel)
	}
	return r
}

func strPtr(s string) *string { return &s }

func statusPtr(s Status) *Status { return &s }

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
