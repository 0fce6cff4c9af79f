package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var (
	verifyTmpl = template.Must(template.New("verify").Parse(`<p>Hi {{.Username}},</p>
<p>Welcome to PostVault. Confirm your email address to activate your account:</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>The link expires in 24 hours. If you did not sign up, ignore this message.</p>
`))

	resetTmpl = template.Must(template.New("reset").Parse(`<p>Hi {{.Username}},</p>
<p>Someone asked to reset the password of your PostVault account.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>The link expires in one hour and stops working once the password is changed.
If this was not you, ignore this message.</p>
`))
)

// Email is a rendered message ready for Send.
type Email struct {
	Subject string
	HTML    string
}

type linkData struct {
	Username string
	Link     string
}

// VerificationEmail renders the account verification message.
func VerificationEmail(username, link string) (Email, error) {
	body, err := render(verifyTmpl, linkData{username, link})
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: "Verify your PostVault email", HTML: body}, nil
}

// ResetEmail renders the password reset message.
func ResetEmail(username, link string) (Email, error) {
	body, err := render(resetTmpl, linkData{username, link})
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: "Reset your PostVault password", HTML: body}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mailer: rendering %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
