package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/threadbare/storefront/config"
	"github.com/threadbare/storefront/internal/mq"
	"gopkg.in/gomail.v2"
)

// ChannelOutboundEmail is the broker channel carrying outbound email jobs.
const ChannelOutboundEmail = "outbound-email"

const attrEmailType = "email_type"

// EmailJob is the wire payload for one outbound email.
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Queue publishes email jobs to the broker. The API server uses it so
// that requestReset returns without waiting on SMTP.
type Queue struct {
	queue       *mq.MQ
	frontendURL string
}

func NewQueue(queue *mq.MQ, frontendURL string) *Queue {
	return &Queue{queue: queue, frontendURL: frontendURL}
}

// PublishPasswordReset queues the reset email for a user.
func (q *Queue) PublishPasswordReset(ctx context.Context, to, token string) error {
	job := EmailJob{
		To:      to,
		Subject: "Your Password Reset Token",
		HTML:    resetEmailHTML(q.frontendURL, token),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.queue.Publish(ctx, ChannelOutboundEmail, data, map[string]string{
		attrEmailType: "password-reset",
	})
	return err
}

func resetEmailHTML(frontendURL, token string) string {
	link := fmt.Sprintf("%s/reset?resetToken=%s", frontendURL, token)
	return wrapEmail(fmt.Sprintf(
		`Your password reset token is here!
		<br/><br/>
		<a href="%s">Click here to reset your password</a>
		<br/><br/>
		The link is valid for one hour.`,
		link,
	))
}

func wrapEmail(body string) string {
	return fmt.Sprintf(`
	<div style="border: 1px solid black; padding: 20px; font-family: sans-serif; line-height: 2; font-size: 20px;">
		<h2>Hello there!</h2>
		<p>%s</p>
		<p>Threadbare</p>
	</div>`, body)
}

// Sender performs the actual delivery of one email.
type Sender interface {
	Send(job EmailJob) error
}

// SMTPSender delivers email jobs over SMTP.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) Send(job EmailJob) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", job.To)
	m.SetHeader("Subject", job.Subject)
	m.SetBody("text/html", job.HTML)
	return s.dialer.DialAndSend(m)
}
