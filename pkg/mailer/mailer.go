package mailer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

type Config struct {
	Host     string        `split_words:"true" required:"true"`
	Port     int           `split_words:"true" default:"465"`
	Username string        `split_words:"true" required:"true"`
	Password string        `split_words:"true" required:"true"`
	From     string        `split_words:"true"`
	To       []string      `split_words:"true" required:"true"`
	SSL      bool          `envconfig:"SSL" default:"true"`
	Timeout  time.Duration `split_words:"true" default:"30s"`
}

// Mailer sends finished reports to the owners over SMTP.
type Mailer struct {
	client *mail.Client
	from   string
	to     []string
	now    func() time.Time
}

func New(cfg Config) (*Mailer, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("smtp recipients are required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = cfg.Username
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(timeout),
	}
	if cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{client: client, from: from, to: cfg.To, now: time.Now}, nil
}

// SendReport mails the workbook at path as an attachment.
func (m *Mailer) SendReport(ctx context.Context, path string) error {
	msg, err := newReportMessage(m.from, m.to, path, m.now())
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func newReportMessage(from string, to []string, path string, now time.Time) (*mail.Msg, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("report attachment: %w", err)
	}
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(fmt.Sprintf("Financial report: sales (%s)", now.Format("02/01/2006 15:04")))
	msg.SetDateWithValue(now)
	msg.SetBodyString(mail.TypeTextPlain, "Attached is the updated financial report with every booking and cancellation.\n\nSent by the WhatsApp booking bot.")
	msg.AttachFile(path)
	return msg, nil
}
