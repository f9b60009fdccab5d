package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"beta/cmd/internal/signup"
)

// Column names in the signup table.
const (
	FieldEmail            = "Email Address"
	FieldWhy              = "Why CloakID"
	FieldSignupDate       = "Signup Date"
	FieldVerifiedDate     = "Verified Date"
	FieldStatus           = "Status"
	FieldToken            = "Verification Token"
	FieldBotScore         = "reCAPTCHA Score"
	FieldSourceAddress    = "IP Address"
	FieldProblemCategory  = "Problem Category"
	FieldOtherProblemText = "Other Problem Text"
	FieldPainLevel        = "Pain Level"

	dateLayout = "2006-01-02"
)

// Store adapts a Client to signup.Store.
type Store struct {
	client *Client
	log    *slog.Logger
}

// NewStore wraps client. A nil logger uses slog.Default.
func NewStore(client *Client, log *slog.Logger) (*Store, error) {
	if client == nil {
		return nil, signup.ErrInvalidInput
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: client, log: log}, nil
}

var _ signup.Store = (*Store)(nil)

// Create writes a new row.
func (s *Store) Create(ctx context.Context, rec signup.Record) (signup.Record, error) {
	if strings.TrimSpace(rec.VerificationToken) == "" {
		return signup.Record{}, signup.ErrInvalidInput
	}
	if rec.SignupDate.IsZero() {
		rec.SignupDate = time.Now().UTC()
	}
	if !rec.Status.Valid() {
		rec.Status = signup.StatusUnverified
	}
	fields := map[string]any{
		FieldEmail:         rec.Email,
		FieldWhy:           rec.Why,
		FieldSignupDate:    rec.SignupDate.UTC().Format(dateLayout),
		FieldStatus:        string(rec.Status),
		FieldToken:         rec.VerificationToken,
		FieldBotScore:      rec.BotScore,
		FieldSourceAddress: rec.SourceAddress,
	}
	row, err := s.client.Create(ctx, fields)
	if err != nil {
		return signup.Record{}, fmt.Errorf("airtable: create signup: %w", err)
	}
	rec.ID = row.ID
	return rec, nil
}

// FindByToken looks the row up by its verification token.
func (s *Store) FindByToken(ctx context.Context, token string) (signup.Record, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return signup.Record{}, signup.ErrInvalidInput
	}
	formula := "{" + FieldToken + "} = " + quoteFormulaString(token)
	rows, err := s.client.List(ctx, formula, 2)
	if err != nil {
		return signup.Record{}, fmt.Errorf("airtable: find signup: %w", err)
	}
	if len(rows) == 0 {
		return signup.Record{}, signup.ErrNotFound
	}
	if len(rows) > 1 {
		s.log.WarnContext(ctx, "airtable.signup.duplicate_token", "first_id", rows[0].ID, "second_id", rows[1].ID)
	}
	return toRecord(rows[0]), nil
}

// Patch writes the non-nil fields of p.
func (s *Store) Patch(ctx context.Context, id string, p signup.Patch) error {
	if p.Empty() {
		return nil
	}
	fields := map[string]any{}
	if p.Status != nil {
		fields[FieldStatus] = string(*p.Status)
	}
	if p.VerifiedDate != nil {
		fields[FieldVerifiedDate] = p.VerifiedDate.UTC().Format(dateLayout)
	}
	if p.ProblemCategory != nil {
		fields[FieldProblemCategory] = *p.ProblemCategory
	}
	if p.OtherProblemText != nil {
		fields[FieldOtherProblemText] = *p.OtherProblemText
	}
	if p.PainLevel != nil {
		fields[FieldPainLevel] = *p.PainLevel
	}
	if _, err := s.client.Update(ctx, id, fields); err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return signup.ErrNotFound
		}
		return fmt.Errorf("airtable: patch signup: %w", err)
	}
	return nil
}

// toRecord maps a row onto signup.Record. Missing fields keep zero values;
// a row without a status is treated as unverified.
func toRecord(row Record) signup.Record {
	f := row.Fields
	out := signup.Record{
		ID:                row.ID,
		Email:             stringField(f, FieldEmail),
		Why:               stringField(f, FieldWhy),
		SourceAddress:     stringField(f, FieldSourceAddress),
		BotScore:          floatField(f, FieldBotScore),
		VerificationToken: stringField(f, FieldToken),
		ProblemCategory:   optionalField(f, FieldProblemCategory),
		OtherProblemText:  optionalField(f, FieldOtherProblemText),
		PainLevel:         optionalField(f, FieldPainLevel),
	}
	out.Status = signup.StatusUnverified
	if st, ok := signup.ParseStatus(stringField(f, FieldStatus)); ok {
		out.Status = st
	}
	if d, ok := dateField(f, FieldSignupDate); ok {
		out.SignupDate = d
	}
	if d, ok := dateField(f, FieldVerifiedDate); ok {
		out.VerifiedDate = &d
	}
	return out
}

func stringField(f map[string]any, name string) string {
	switch v := f[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func optionalField(f map[string]any, name string) *string {
	if _, ok := f[name]; !ok {
		return nil
	}
	s := stringField(f, name)
	return &s
}

func floatField(f map[string]any, name string) float64 {
	switch v := f[name].(type) {
	case float64:
		return v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func dateField(f map[string]any, name string) (time.Time, bool) {
	raw := strings.TrimSpace(stringField(f, name))
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
