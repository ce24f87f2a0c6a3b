package notifier

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/user"
	"github.com/NordCoder/Pricewatch/internal/obs/retry"
)

var ErrNoEmail = errors.New("user has no email address")

type Mailer struct {
	dialer     *gomail.Dialer
	from       string
	subjPrefix string

	log *zap.Logger
}

func NewMailer(cfg config.SMTPCfg, log *zap.Logger) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.SSL = cfg.UseTLS
	if cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	}
	return &Mailer{
		dialer:     d,
		from:       cfg.From,
		subjPrefix: cfg.SubjPrefix,
		log:        log.With(zap.String("component", "notifier.mailer")),
	}
}

func (m *Mailer) SendEmail(ctx context.Context, to user.Contact, subject, body string) error {
	if to.Email == "" {
		return retry.Permanent{Err: ErrNoEmail}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	subj := strings.TrimSpace(m.subjPrefix + " " + subject)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	if to.Name != "" {
		msg.SetAddressHeader("To", to.Email, to.Name)
	} else {
		msg.SetHeader("To", to.Email)
	}
	msg.SetHeader("Subject", subj)
	msg.SetBody("text/plain", body)

	start := time.Now()
	log := m.log.With(
		zap.String("smtp_host", m.dialer.Host),
		zap.Bool("tls", m.dialer.SSL),
		zap.String("to", to.Email),
		zap.String("subject", subj),
	)
	if err := m.dialer.DialAndSend(msg); err != nil {
		log.Warn("sendmail failed", zap.Error(err))
		return err
	}
	log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
	return nil
}
