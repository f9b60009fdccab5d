// Package notify renders and sends the funnel's transactional email:
// the applicant's verification message and the internal team notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message is a provider-neutral email.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a Message. Implementations report only success or failure of the call.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config controls addresses and branding.
type Config struct {
	// From is the RFC 5322 sender, e.g. `CloakID <noreply@cloakid.app>`.
	From string
	// TeamAddress receives internal notifications.
	TeamAddress string
	// ProductName is used in subjects and copy.
	ProductName string
	// CompanyName appears in the applicant email footer.
	CompanyName string
}

// SignupNotice is the internal "new signup" payload.
type SignupNotice struct {
	Email         string
	Why           string
	BotScore      float64
	SourceAddress string
	At            time.Time
}

// VerifiedNotice is the internal "email verified" payload.
type VerifiedNotice struct {
	Email string
	At    time.Time
}

// CompletionNotice is the internal "application complete" payload.
type CompletionNotice struct {
	Email            string
	Why              string
	ProblemCategory  string
	OtherProblemText string
	PainLevel        string
	// BotScore is nil when the record carries no score.
	BotScore *float64
	At       time.Time
}

// Notifier renders templates and hands messages to a Sender.
type Notifier struct {
	sender Sender
	cfg    Config
}

// NewNotifier validates cfg and returns a Notifier.
func NewNotifier(sender Sender, cfg Config) (*Notifier, error) {
	if sender == nil {
		return nil, errors.New("notify: nil sender")
	}
	cfg.From = strings.TrimSpace(cfg.From)
	cfg.TeamAddress = strings.TrimSpace(cfg.TeamAddress)
	if cfg.From == "" || cfg.TeamAddress == "" {
		return nil, errors.New("notify: from and team address are required")
	}
	if strings.TrimSpace(cfg.ProductName) == "" {
		cfg.ProductName = "CloakID"
	}
	return &Notifier{sender: sender, cfg: cfg}, nil
}

// SendVerification emails the applicant a link that confirms their address.
func (n *Notifier) SendVerification(ctx context.Context, to, link string) error {
	to = strings.TrimSpace(to)
	if to == "" || strings.TrimSpace(link) == "" {
		return errors.New("notify: recipient and link are required")
	}
	data := verificationData{
		Product: n.cfg.ProductName,
		Company: n.cfg.CompanyName,
		Team:    n.cfg.TeamAddress,
		Link:    link,
	}
	html, err := render(verificationHTML, data)
	if err != nil {
		return err
	}
	text, err := renderText(verificationText, data)
	if err != nil {
		return err
	}
	return n.send(ctx, Message{
		From:    n.cfg.From,
		To:      []string{to},
		ReplyTo: n.cfg.TeamAddress,
		Subject: fmt.Sprintf("Confirm your %s beta application", n.cfg.ProductName),
		HTML:    html,
		Text:    text,
	})
}

// NotifySignup tells the team a new application arrived.
func (n *Notifier) NotifySignup(ctx context.Context, in SignupNotice) error {
	html, err := render(teamSignupHTML, in)
	if err != nil {
		return err
	}
	return n.sendTeam(ctx, "New Beta Signup!", html)
}

// NotifyVerified tells the team an applicant confirmed their address.
func (n *Notifier) NotifyVerified(ctx context.Context, in VerifiedNotice) error {
	html, err := render(teamVerifiedHTML, in)
	if err != nil {
		return err
	}
	return n.sendTeam(ctx, "Beta Application Verified!", html)
}

// NotifyCompleted sends the team the full application.
func (n *Notifier) NotifyCompleted(ctx context.Context, in CompletionNotice) error {
	html, err := render(teamCompleteHTML, in)
	if err != nil {
		return err
	}
	return n.sendTeam(ctx, "Beta Application Complete!", html)
}

func (n *Notifier) sendTeam(ctx context.Context, subject, html string) error {
	return n.send(ctx, Message{
		From:    n.cfg.From,
		To:      []string{n.cfg.TeamAddress},
		Subject: subject,
		HTML:    html,
	})
}

func (n *Notifier) send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send %q: %w", msg.Subject, err)
	}
	return nil
}
