package mailer

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/go-authgate/accountgate/internal/core"
)

type message struct {
	subject *template.Template
	body    *template.Template
}

var messages = map[core.MailKind]message{
	core.MailVerification: {
		subject: template.Must(template.New("subject").Parse(`Verify your email address`)),
		body: template.Must(template.New("body").Parse(`Hi {{.name}},

Confirm your email address by opening the link below. It expires in one hour.

{{.url}}

If you did not create an account you can ignore this message.
`)),
	},
	core.MailPasswordReset: {
		subject: template.Must(template.New("subject").Parse(`Reset your password`)),
		body: template.Must(template.New("body").Parse(`Hi {{.name}},

Someone asked to reset the password of your account. Open the link below to
choose a new one. It expires in one hour and can be used once.

{{.url}}

If this was not you, no action is needed.
`)),
	},
}

// Render returns the subject and plain text body for mail
func Render(mail core.Mail) (subject, body string, err error) {
	msg, ok := messages[mail.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown mail kind %q", mail.Kind)
	}
	var s, b bytes.Buffer
	if err := msg.subject.Execute(&s, mail.Params); err != nil {
		return "", "", err
	}
	if err := msg.body.Execute(&b, mail.Params); err != nil {
		return "", "", err
	}
	return s.String(), b.String(), nil
}
