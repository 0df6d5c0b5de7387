package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// CredentialsData fills the account credential templates.
type CredentialsData struct {
	FullName     string
	Code         string
	Email        string
	TempPassword string
	Role         string
}

const (
	welcomeSubject = "Your university account"
	resetSubject   = "Your password has been reset"
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif">
<p>Hello {{.FullName}},</p>
<p>An account has been created for you with the role <strong>{{.Role}}</strong>.</p>
<table>
<tr><td>Code</td><td><strong>{{.Code}}</strong></td></tr>
<tr><td>Login email</td><td><strong>{{.Email}}</strong></td></tr>
<tr><td>Temporary password</td><td><code>{{.TempPassword}}</code></td></tr>
</table>
<p>Please sign in and change your password immediately.</p>
</body></html>`))

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif">
<p>Hello {{.FullName}},</p>
<p>An administrator has reset the password of your account <strong>{{.Email}}</strong>.</p>
<p>Temporary password: <code>{{.TempPassword}}</code></p>
<p>Please sign in and change your password immediately.</p>
</body></html>`))

// WelcomeEmail renders the subject and body sent to newly provisioned users.
func WelcomeEmail(data CredentialsData) (string, string, error) {
	body, err := render(welcomeTemplate, data)
	return welcomeSubject, body, err
}

// PasswordResetEmail renders the subject and body sent after a reset.
func PasswordResetEmail(data CredentialsData) (string, string, error) {
	body, err := render(resetTemplate, data)
	return resetSubject, body, err
}

func render(tpl *template.Template, data CredentialsData) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", tpl.Name(), err)
	}
	return buf.String(), nil
}
