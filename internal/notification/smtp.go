package notification

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const (
	subjectEmissionExhaustedFmt = "Emission exhausted for batch %s"
	subjectReportIssuedFmt      = "Report issued for batch %s"
)

// Sender delivers operator notifications. A nil Sender disables delivery.
type Sender interface {
	SendEmissionExhausted(ctx context.Context, toEmail, batchID string, attempts int, lastError string) error
	SendReportIssued(ctx context.Context, toEmail, batchID, contentHash string) error
}

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendEmissionExhausted(ctx context.Context, toEmail, batchID string, attempts int, lastError string) error {
	content, err := renderOperatorAlert(operatorAlertData{
		Title:   "Report emission needs attention",
		Heading: "Report emission needs attention",
		Lines: []string{
			fmt.Sprintf("Batch %s burned all %d emission attempts.", batchID, attempts),
			fmt.Sprintf("Last error: %s", lastError),
			"The entry will not be retried automatically.",
		},
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectEmissionExhaustedFmt, batchID), content)
}

func (s *SMTPSender) SendReportIssued(ctx context.Context, toEmail, batchID, contentHash string) error {
	content, err := renderOperatorAlert(operatorAlertData{
		Title:   "Report issued",
		Heading: "Report issued",
		Lines: []string{
			fmt.Sprintf("The report for batch %s was issued.", batchID),
			fmt.Sprintf("Content hash: %s", contentHash),
		},
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectReportIssuedFmt, batchID), content)
}
