package signupapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type signupRequest struct {
	Email          string `json:"email"`
	RecaptchaToken string `json:"recaptchaToken"`
	Why            string `json:"why"`
	Website        string `json:"website"`
}

type confirmRequest struct {
	Token            string      `json:"token"`
	ProblemCategory  string      `json:"problemCategory"`
	OtherProblemText string      `json:"otherProblemText"`
	PainLevel        looseString `json:"painLevel"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// looseString accepts a JSON string or number. The questionnaire posts a select value,
// which some clients send as a number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("painLevel: expected string or number")
	}
	*s = looseString(n.String())
	return nil
}
