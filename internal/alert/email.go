package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"suapreport/internal/components/telemetry"

	"github.com/jordan-wright/email"
)

const report_email_alert = "email.alert"

type SmtpConfig struct {
	Enabled      bool     `json:"enabled"`
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

type Email struct {
	config SmtpConfig
	tel    telemetry.API
}

func NewEmail(config SmtpConfig, tel telemetry.API) Email {
	return Email{config: config, tel: telemetry.NewScopedAPI("alert", tel)}
}

func (e Email) compose(msg Message) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Relatório SUAP <%s>", e.config.EmailAddress)
	mail.To = e.config.To
	mail.Subject = msg.Subject
	if mail.Subject == "" {
		mail.Subject = "Alerta"
	}

	body := Message{Lines: msg.Lines, Fields: msg.Fields}
	mail.Text = []byte(body.String())
	return mail
}

func (e Email) Alert(ctx context.Context, msg Message) error {
	if !e.config.Enabled || len(e.config.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := e.compose(msg)
	addr := fmt.Sprintf("%s:%d", e.config.Server, e.config.Port)
	err := mail.Send(addr, smtp.PlainAuth("", e.config.EmailAddress, e.config.Password, e.config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		e.tel.ReportWarning(report_email_alert, err, addr)
		return err
	}
	return nil
}
