package notification

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"compliance_portal_backend/internal/events"
	"compliance_portal_backend/platform/logger"
)

type recordingSender struct {
	exhausted int
	issued    int
	lastTo    string
}

func (r *recordingSender) SendEmissionExhausted(_ context.Context, to, _ string, _ int, _ string) error {
	r.exhausted++
	r.lastTo = to
	return nil
}

func (r *recordingSender) SendReportIssued(_ context.Context, to, _, _ string) error {
	r.issued++
	r.lastTo = to
	return nil
}

func TestExhaustedEventReachesOperator(t *testing.T) {
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)

	sender := &recordingSender{}
	m := &Module{sender: sender, operator: "ops@example.com", log: log}
	bus.Subscribe("report.emission.exhausted", events.HandlerFunc(m.onEmissionExhausted))

	err := bus.PublishSync(context.Background(), events.EmissionExhausted{
		BaseEvent: events.NewBaseEvent(),
		BatchID:   uuid.New(),
		Attempts:  3,
		LastError: "renderer timeout",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if sender.exhausted != 1 {
		t.Fatalf("expected one exhausted email, got %d", sender.exhausted)
	}
	if sender.lastTo != "ops@example.com" {
		t.Fatalf("unexpected recipient %q", sender.lastTo)
	}
}

func TestMissingOperatorAddressIsANoOp(t *testing.T) {
	log := logger.New("test")
	sender := &recordingSender{}
	m := &Module{sender: sender, log: log}

	err := m.onEmissionExhausted(context.Background(), events.EmissionExhausted{
		BaseEvent: events.NewBaseEvent(),
		BatchID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if sender.exhausted != 0 {
		t.Fatal("no email expected without an operator address")
	}
}

func TestOperatorAlertTemplateRenders(t *testing.T) {
	html, err := renderOperatorAlert(operatorAlertData{
		Title:   "Report emission needs attention",
		Heading: "Report emission needs attention",
		Lines:   []string{"Batch x burned all 3 emission attempts."},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Report emission needs attention") {
		t.Fatal("heading missing from rendered template")
	}
	if !strings.Contains(html, "burned all 3") {
		t.Fatal("line missing from rendered template")
	}
}
