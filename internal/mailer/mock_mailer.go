package mailer

import (
	"sync"
)

// Email is a message captured by MockMailer.
type Email struct {
	Recipient    string
	TemplateFile string
	Data         any
}

// MockMailer records messages instead of sending them. Tests use it in place
// of SMTP; without SMTP settings the service sends no mail at all.
type MockMailer struct {
	mu     sync.RWMutex
	emails []Email
	err    error
}

func NewMockMailer() *MockMailer {
	return &MockMailer{
		emails: make([]Email, 0),
	}
}

// FailWith makes every following Send return err without recording.
func (m *MockMailer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
}

func (m *MockMailer) Send(recipient, templateFile string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.emails = append(m.emails, Email{
		Recipient:    recipient,
		TemplateFile: templateFile,
		Data:         data,
	})

	return nil
}

// SentEmails returns a copy of the captured messages.
func (m *MockMailer) SentEmails() []Email {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emails := make([]Email, len(m.emails))
	copy(emails, m.emails)
	return emails
}
