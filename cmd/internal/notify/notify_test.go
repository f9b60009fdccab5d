package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type captureSender struct {
	msgs []Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func newTestNotifier(t *testing.T, s Sender) *Notifier {
	t.Helper()
	n, err := NewNotifier(s, Config{
		From:        "CloakID <noreply@cloakid.app>",
		TeamAddress: "support@cloakid.app",
		ProductName: "CloakID",
		CompanyName: "Example Ltd",
	})
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	return n
}

func TestNewNotifierRequiresAddresses(t *testing.T) {
	if _, err := NewNotifier(nil, Config{From: "a@b.co", TeamAddress: "c@d.co"}); err == nil {
		t.Fatalf("expected error for nil sender")
	}
	if _, err := NewNotifier(&captureSender{}, Config{From: "a@b.co"}); err == nil {
		t.Fatalf("expected error for missing team address")
	}
}

func TestSendVerificationIncludesLink(t *testing.T) {
	s := &captureSender{}
	n := newTestNotifier(t, s)

	link := "https://beta.example.com/verify?token=abc-123"
	if err := n.SendVerification(context.Background(), "user@example.com", link); err != nil {
		t.Fatalf("SendVerification: %v", err)
	}
	if len(s.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(s.msgs))
	}
	msg := s.msgs[0]
	if len(msg.To) != 1 || msg.To[0] != "user@example.com" {
		t.Fatalf("unexpected recipients: %v", msg.To)
	}
	if msg.ReplyTo != "support@cloakid.app" {
		t.Fatalf("unexpected reply-to: %q", msg.ReplyTo)
	}
	if !strings.Contains(msg.Subject, "CloakID") {
		t.Fatalf("subject missing product: %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, `href="https://beta.example.com/verify?token=abc-123"`) {
		t.Fatalf("html missing link: %s", msg.HTML)
	}
	if !strings.Contains(msg.Text, link) {
		t.Fatalf("text missing link: %s", msg.Text)
	}
}

func TestTeamNoticesEscapeUserInput(t *testing.T) {
	s := &captureSender{}
	n := newTestNotifier(t, s)

	err := n.NotifySignup(context.Background(), SignupNotice{
		Email:         "user@example.com",
		Why:           "<script>alert(1)</script> I want privacy",
		BotScore:      0.9,
		SourceAddress: "203.0.113.7",
		At:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NotifySignup: %v", err)
	}
	msg := s.msgs[0]
	if msg.To[0] != "support@cloakid.app" {
		t.Fatalf("team notice went to %v", msg.To)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Fatalf("html was not escaped: %s", msg.HTML)
	}
	for _, want := range []string{"0.90", "203.0.113.7", "2026-01-02T03:04:05Z"} {
		if !strings.Contains(msg.HTML, want) {
			t.Fatalf("html missing %q: %s", want, msg.HTML)
		}
	}
}

func TestNotifyCompletedScore(t *testing.T) {
	score := 0.85
	tests := []struct {
		name  string
		score *float64
		want  string
	}{
		{name: "present", score: &score, want: "0.85"},
		{name: "absent", score: nil, want: "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &captureSender{}
			n := newTestNotifier(t, s)
			err := n.NotifyCompleted(context.Background(), CompletionNotice{
				Email:            "user@example.com",
				Why:              "I am tired of spam in my inbox",
				ProblemCategory:  "other",
				OtherProblemText: "data brokers",
				PainLevel:        "4",
				BotScore:         tt.score,
			})
			if err != nil {
				t.Fatalf("NotifyCompleted: %v", err)
			}
			html := s.msgs[0].HTML
			if !strings.Contains(html, tt.want) {
				t.Fatalf("html missing %q: %s", tt.want, html)
			}
			if !strings.Contains(html, "data brokers") {
				t.Fatalf("html missing other text: %s", html)
			}
		})
	}
}

func TestSendErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	n := newTestNotifier(t, &captureSender{err: boom})
	err := n.NotifyVerified(context.Background(), VerifiedNotice{Email: "user@example.com"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func newTestResendSender(t *testing.T, h http.HandlerFunc) *ResendSender {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	s, err := NewResendSender("re_test", srv.URL)
	if err != nil {
		t.Fatalf("NewResendSender: %v", err)
	}
	return s
}

func TestResendSenderSuccess(t *testing.T) {
	var got struct {
		From    string   `json:"from"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
		HTML    string   `json:"html"`
		ReplyTo string   `json:"reply_to"`
	}
	s := newTestResendSender(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer re_test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	})

	err := s.Send(context.Background(), Message{
		From:    "CloakID <noreply@cloakid.app>",
		To:      []string{"user@example.com"},
		ReplyTo: "support@cloakid.app",
		Subject: "hello",
		HTML:    "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Subject != "hello" || len(got.To) != 1 || got.To[0] != "user@example.com" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.HTML != "<p>hi</p>" || got.ReplyTo != "support@cloakid.app" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestResendSenderFailureStatus(t *testing.T) {
	s := newTestResendSender(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"invalid from"}`))
	})

	err := s.Send(context.Background(), Message{To: []string{"user@example.com"}, Subject: "x"})
	if err == nil || !strings.Contains(err.Error(), "invalid from") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestResendSenderRequiresKey(t *testing.T) {
	s, err := NewResendSender("", "")
	if err != nil {
		t.Fatalf("NewResendSender: %v", err)
	}
	if got := s.client.BaseURL.String(); got != DefaultResendURL {
		t.Fatalf("BaseURL = %q", got)
	}
	if err := s.Send(context.Background(), Message{To: []string{"a@b.co"}}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestLogSenderNeverFails(t *testing.T) {
	if err := (LogSender{}).Send(context.Background(), Message{To: []string{"a@b.co"}, Subject: "s", Text: "t"}); err != nil {
		t.Fatalf("LogSender: %v", err)
	}
}
