package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	sendMail sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to string, c Confirmation) error {
	subject := fmt.Sprintf("Order confirmation #%d: thank you for your order", c.OrderID)
	body, err := BuildOrderConfirmationBody(c)
	if err != nil {
		return fmt.Errorf("failed to render confirmation for order %d: %w", c.OrderID, err)
	}
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	to = headerValue(to)
	if to == "" {
		return fmt.Errorf("recipient address is required")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		headerValue(s.from), to, headerValue(subject), body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.sendMail(addr, nil, s.from, []string{to}, []byte(msg))
}

// headerValue strips line breaks so a value cannot start a new header.
func headerValue(v string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", "", "\n", "").Replace(v))
}
