package mail

import (
	"bytes"
	htmltpl "html/template"
	"net/url"
	"strings"
	texttpl "text/template"
)

type linkData struct {
	AppName string
	Name    string
	Link    string
	Expires string
}

var (
	verifyHTML = htmltpl.Must(htmltpl.New("verify").Parse(
		`<p>Hi {{.Name}},</p><p>Please confirm your email address for {{.AppName}}.</p>` +
			`<p><a href="{{.Link}}">Verify email</a></p><p>This link expires in {{.Expires}}.</p>`))
	verifyText = texttpl.Must(texttpl.New("verify").Parse(
		"Hi {{.Name}},\n\nPlease confirm your email address for {{.AppName}}:\n{{.Link}}\n\nThis link expires in {{.Expires}}.\n"))

	resetHTML = htmltpl.Must(htmltpl.New("reset").Parse(
		`<p>Hi {{.Name}},</p><p>We received a request to reset your {{.AppName}} password.</p>` +
			`<p><a href="{{.Link}}">Reset password</a></p><p>This link expires in {{.Expires}}. ` +
			`If you did not ask for this, you can ignore this email.</p>`))
	resetText = texttpl.Must(texttpl.New("reset").Parse(
		"Hi {{.Name}},\n\nWe received a request to reset your {{.AppName}} password:\n{{.Link}}\n\nThis link expires in {{.Expires}}. If you did not ask for this, you can ignore this email.\n"))
)

// Composer 根据前端地址拼出邮件中的链接
type Composer struct {
	AppName   string
	ClientURL string
}

func (c Composer) link(path, token string) string {
	return strings.TrimRight(c.ClientURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func (c Composer) Verification(to, name, token, expires string) (Message, error) {
	d := linkData{AppName: c.AppName, Name: name, Link: c.link("/verify-email", token), Expires: expires}
	return render(to, "Verify your email", d, verifyHTML, verifyText)
}

func (c Composer) PasswordReset(to, name, token, expires string) (Message, error) {
	d := linkData{AppName: c.AppName, Name: name, Link: c.link("/reset-password", token), Expires: expires}
	return render(to, "Reset your password", d, resetHTML, resetText)
}

func render(to, subject string, d linkData, h *htmltpl.Template, t *texttpl.Template) (Message, error) {
	var hb, tb bytes.Buffer
	if err := h.Execute(&hb, d); err != nil {
		return Message{}, err
	}
	if err := t.Execute(&tb, d); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, HTML: hb.String(), Text: tb.String()}, nil
}
