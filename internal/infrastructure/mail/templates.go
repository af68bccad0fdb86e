package mail

import (
	"bytes"
	"html/template"
)

var (
	confirmHTML = template.Must(template.New("confirm").Parse(
		`<p>Welcome to Communities.</p>
<p><a href="{{.}}">Confirm your email address</a></p>
<p>If you did not create an account you can ignore this message.</p>`))

	resetHTML = template.Must(template.New("reset").Parse(
		`<p>A password reset was requested for your Communities account.</p>
<p><a href="{{.}}">Choose a new password</a></p>
<p>If you did not ask for this, ignore this message. Your password is unchanged.</p>`))
)

func confirmationEmail(to, link string) Email {
	return Email{
		To:      to,
		Subject: "Confirm your email address",
		Body: "Welcome to Communities.\n\nConfirm your email address by opening:\n" + link +
			"\n\nIf you did not create an account you can ignore this message.\n",
		HTMLBody: render(confirmHTML, link),
	}
}

func passwordResetEmail(to, link string) Email {
	return Email{
		To:      to,
		Subject: "Reset your password",
		Body: "A password reset was requested for your Communities account.\n\nChoose a new password here:\n" + link +
			"\n\nIf you did not ask for this, ignore this message. Your password is unchanged.\n",
		HTMLBody: render(resetHTML, link),
	}
}

func render(t *template.Template, link string) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, link); err != nil {
		return ""
	}
	return buf.String()
}
