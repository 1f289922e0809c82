package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/doseline/doseline/internal/timeutil"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTP(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendDoseReminder(ctx context.Context, reminder DoseReminder) error {
	if strings.TrimSpace(reminder.Email) == "" {
		return fmt.Errorf("reminder for user %s has no email address", reminder.UserID)
	}

	loc := timeutil.ResolveLocation(reminder.Timezone, "")
	localTime := reminder.ScheduledAt.In(loc).Format("15:04")

	subject := fmt.Sprintf("Reminder: %s at %s", reminder.MedicationName, localTime)
	dosage := ""
	if reminder.DosageAmount > 0 {
		dosage = fmt.Sprintf(" (%g %s)", reminder.DosageAmount, reminder.DosageUnit)
	}
	htmlBody := fmt.Sprintf(
		"<p>It's almost time to take <strong>%s</strong>%s, scheduled for %s.</p>",
		reminder.MedicationName, dosage, localTime,
	)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n%s\r\n%s",
		reminder.Email, subject, mime, htmlBody))

	return smtp.SendMail(addr, auth, s.cfg.From, []string{reminder.Email}, msg)
}
