package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

type verificationData struct {
	Product string
	Company string
	Team    string
	Link    string
}

var funcs = htmltemplate.FuncMap{
	"iso": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	},
	"score": func(v any) string {
		switch s := v.(type) {
		case float64:
			return fmt.Sprintf("%.2f", s)
		case *float64:
			if s == nil {
				return "N/A"
			}
			return fmt.Sprintf("%.2f", *s)
		default:
			return "N/A"
		}
	},
}

const wrapperStart = `<div style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; padding: 20px;">`

var verificationHTML = htmltemplate.Must(htmltemplate.New("verification").Funcs(funcs).Parse(`
<div style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 40px 20px;">
  <div style="text-align: center; margin-bottom: 30px;">
    <h1 style="color: #0f172a; font-size: 28px; margin-bottom: 10px;">Confirm your email</h1>
    <p style="color: #64748b; font-size: 16px;">One more step to apply for the {{.Product}} beta</p>
  </div>
  <div style="background: #f8fafc; border-radius: 12px; padding: 30px; margin-bottom: 30px;">
    <p style="color: #4b5563; font-size: 16px; line-height: 1.6; margin: 0;">
      Thanks for applying for early access to {{.Product}}. Please confirm your address to continue your application.
    </p>
    <p style="text-align: center; margin: 30px 0 0 0;">
      <a href="{{.Link}}" style="background: #0f172a; color: #ffffff; padding: 14px 28px; border-radius: 8px; text-decoration: none; font-weight: 600;">Verify my email</a>
    </p>
    <p style="color: #64748b; font-size: 13px; line-height: 1.6; margin-top: 24px; margin-bottom: 0;">
      If the button does not work, paste this link into your browser:<br>{{.Link}}
    </p>
  </div>
  <div style="text-align: center; color: #64748b; font-size: 14px;">
    {{if .Company}}<p style="margin: 0;">{{.Company}}</p>{{end}}
    <p style="margin: 5px 0 0 0;">Questions? Reply to this email or contact {{.Team}}</p>
  </div>
</div>`))

var verificationText = texttemplate.Must(texttemplate.New("verification_text").Parse(
	`Thanks for applying for early access to {{.Product}}.

Confirm your email to continue your application:
{{.Link}}

Questions? Reply to this email or contact {{.Team}}.
`))

var teamSignupHTML = htmltemplate.Must(htmltemplate.New("team_signup").Funcs(funcs).Parse(wrapperStart + `
  <h2 style="color: #0f172a;">New Beta Signup</h2>
  <p style="color: #64748b; font-weight: 600;">Awaiting email verification</p>
  <p style="color: #4b5563; font-size: 16px;">
    <strong>Email:</strong> {{.Email}}<br>
    <strong>Why:</strong> {{.Why}}<br>
    <strong>reCAPTCHA Score:</strong> {{score .BotScore}}<br>
    <strong>IP:</strong> {{.SourceAddress}}<br>
    <strong>Time:</strong> {{iso .At}}
  </p>
</div>`))

var teamVerifiedHTML = htmltemplate.Must(htmltemplate.New("team_verified").Funcs(funcs).Parse(wrapperStart + `
  <h2 style="color: #0f172a;">Email Verified</h2>
  <p style="color: #00C853; font-weight: 600;">&#10003; Email verified</p>
  <p style="color: #4b5563; font-size: 16px;">
    <strong>Email:</strong> {{.Email}}<br>
    <strong>Time:</strong> {{iso .At}}
  </p>
</div>`))

var teamCompleteHTML = htmltemplate.Must(htmltemplate.New("team_complete").Funcs(funcs).Parse(wrapperStart + `
  <h2 style="color: #0f172a;">Complete Beta Application</h2>
  <p style="color: #00C853; font-weight: 600;">&#10003; Application complete - ready for review</p>
  <div style="background: #f8fafc; border-radius: 12px; padding: 20px; margin-top: 15px;">
    <p style="color: #4b5563; font-size: 16px; margin: 0;">
      <strong>Email:</strong> {{.Email}}<br><br>
      <strong>Why:</strong> {{.Why}}<br><br>
      <strong>Problem:</strong> {{.ProblemCategory}}{{if .OtherProblemText}} - {{.OtherProblemText}}{{end}}<br><br>
      <strong>Pain Level:</strong> {{.PainLevel}}<br><br>
      <strong>reCAPTCHA Score:</strong> {{score .BotScore}}
    </p>
  </div>
</div>`))

func render(t *htmltemplate.Template, data any) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", t.Name(), err)
	}
	return b.String(), nil
}

func renderText(t *texttemplate.Template, data any) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
