package notification

import (
	"context"

	"compliance_portal_backend/internal/events"
	"compliance_portal_backend/platform/config"
	"compliance_portal_backend/platform/logger"
)

// Module wires operator email delivery to the event bus. When email is
// disabled or no operator address is configured every event is a no-op.
type Module struct {
	sender   Sender
	operator string
	log      *logger.Logger
}

func NewModule(cfg config.EmailConfig, bus events.Bus, log *logger.Logger) *Module {
	m := &Module{operator: cfg.GetOperatorEmail(), log: log}
	if cfg.GetEmailEnabled() {
		m.sender = NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		)
	}

	bus.Subscribe("report.emission.exhausted", events.HandlerFunc(m.onEmissionExhausted))
	bus.Subscribe("report.issued", events.HandlerFunc(m.onReportIssued))
	return m
}

func (m *Module) onEmissionExhausted(ctx context.Context, event events.Event) error {
	evt, ok := event.(events.EmissionExhausted)
	if !ok {
		return nil
	}
	if m.sender == nil || m.operator == "" {
		m.log.Warn("emission exhausted but operator email is not configured", "batch_id", evt.BatchID.String())
		return nil
	}
	return m.sender.SendEmissionExhausted(ctx, m.operator, evt.BatchID.String(), evt.Attempts, evt.LastError)
}

func (m *Module) onReportIssued(ctx context.Context, event events.Event) error {
	evt, ok := event.(events.ReportIssued)
	if !ok {
		return nil
	}
	if m.sender == nil || m.operator == "" {
		return nil
	}
	return m.sender.SendReportIssued(ctx, m.operator, evt.BatchID.String(), evt.ContentHash)
}
