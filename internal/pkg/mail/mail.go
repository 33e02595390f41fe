package mail

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

var ErrNotConfigured = errors.New("SMTP_HOST is not set")

// Config holds the SMTP settings.
type Config struct {
	Host     string `env:"SMTP_HOST"`
	Port     string `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	Sender   string `env:"SMTP_SENDER"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
	}
	return cfg, nil
}

func (c Config) Configured() bool {
	return c.Host != ""
}

// BuildMessage renders an HTML mail. Header values are stripped of line
// breaks so user input cannot add headers.
func BuildMessage(sender, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\nSubject: %s\r\n", headerValue(sender), headerValue(to), headerValue(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func headerValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// SendMail sends an HTML mail via SMTP
func SendMail(to, subject, body string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	return cfg.Send(to, subject, body)
}

func (c Config) Send(to, subject, body string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var auth smtp.Auth
	if c.Username != "" && c.Password != "" {
		auth = smtp.PlainAuth("", c.Username, c.Password, c.Host)
	}

	addr := fmt.Sprintf("%s:%s", c.Host, c.Port)
	if err := smtp.SendMail(addr, auth, c.Sender, []string{to}, BuildMessage(c.Sender, to, subject, body)); err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return err
	}
	log.Infof("[Mail] Email sent to %s via %s", to, addr)
	return nil
}
