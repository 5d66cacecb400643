// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/taibuivan/storageup/internal/platform/mailer"
)

var (
	resetHTMLTemplate = htmltemplate.Must(htmltemplate.New("reset_html").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Password reset</h2>
    <p>Hello {{.Name}},</p>
    <p>We received a request to reset the password of your StorageUp account.</p>
    <p><a href="{{.Link}}" style="background:#1f6feb;color:#fff;padding:10px 18px;border-radius:4px;text-decoration:none;">Reset password</a></p>
    <p>This link expires in {{.Minutes}} minutes. If you did not request a reset, you can ignore this email.</p>
  </body>
</html>`))

	resetTextTemplate = texttemplate.Must(texttemplate.New("reset_text").Parse(`Hello {{.Name}},

We received a request to reset the password of your StorageUp account.
Open the link below to choose a new password:

{{.Link}}

This link expires in {{.Minutes}} minutes. If you did not request a reset, you can ignore this email.
`))
)

type resetEmailData struct {
	Name    string
	Link    string
	Minutes int
}

// resetEmail renders the password reset message for user.
func resetEmail(user *User, link string, timeToLive time.Duration) (mailer.Message, error) {
	data := resetEmailData{Name: user.Name, Link: link, Minutes: int(timeToLive.Minutes())}

	var html, text bytes.Buffer
	if err := resetHTMLTemplate.Execute(&html, data); err != nil {
		return mailer.Message{}, fmt.Errorf("auth_reset_email_html_failed: %w", err)
	}
	if err := resetTextTemplate.Execute(&text, data); err != nil {
		return mailer.Message{}, fmt.Errorf("auth_reset_email_text_failed: %w", err)
	}

	return mailer.Message{
		To:      user.Email,
		Subject: resetEmailSubject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
