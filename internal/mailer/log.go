package mailer

import (
	"context"
	"log"
	"sync"

	"github.com/go-authgate/accountgate/internal/core"
)

var _ core.Mailer = (*LogMailer)(nil)

// LogMailer writes messages to the log instead of delivering them. It is
// the development default and keeps the last message per recipient.
type LogMailer struct {
	mu   sync.Mutex
	last map[string]core.Mail
}

func NewLogMailer() *LogMailer {
	return &LogMailer{last: make(map[string]core.Mail)}
}

func (m *LogMailer) Send(_ context.Context, mail core.Mail) error {
	subject, _, err := Render(mail)
	if err != nil {
		return err
	}
	log.Printf("[Mailer] to=%s subject=%q url=%s", mail.To, subject, mail.Params[core.MailParamURL])

	m.mu.Lock()
	m.last[mail.To] = mail
	m.mu.Unlock()
	return nil
}

// Last returns the most recent message sent to the address
func (m *LogMailer) Last(to string) (core.Mail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mail, ok := m.last[to]
	return mail, ok
}
