package alert

import (
	"context"
	"fmt"
	"time"

	"suapreport/internal/components/telemetry"
)

const report_escalating_report_broken = "escalating.report-broken"

// Escalating forwards every report to the wrapped API and also alerts on
// ReportBroken.
type Escalating struct {
	telemetry.API
	notifier Notifier
	timeout  time.Duration
}

func Escalate(tel telemetry.API, n Notifier) Escalating {
	return Escalating{API: tel, notifier: n, timeout: 30 * time.Second}
}

func (e Escalating) ReportBroken(id string, params ...any) {
	e.API.ReportBroken(id, params...)

	msg := Message{
		Subject: "Componente quebrado",
		Fields:  []Field{{Key: "componente", Value: id}},
	}
	for _, p := range params {
		msg.Fields = append(msg.Fields, Field{Key: "detalhe", Value: fmt.Sprint(p)})
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if err := e.notifier.Alert(ctx, msg); err != nil {
			e.API.ReportWarning(report_escalating_report_broken, err, id)
		}
	}()
}
