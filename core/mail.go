package core

import "net/mail"

type (
	EmailMessage struct {
		To      []mail.Address
		Subject string
		Body    string // text/plain
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)
