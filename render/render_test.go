package render

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"

	"admin-alerts/client"
	"admin-alerts/domain"
)

func TestTextRender(t *testing.T) {
	var buf bytes.Buffer
	phone := "555-0100"
	NewText(&buf).Render(client.State{
		Connected: true,
		Orders: []domain.Order{
			{ID: 43, CustomerName: "Bo", CustomerPhone: &phone, TotalAmount: decimal.RequireFromString("5"), Status: domain.StatusDelivered},
			{ID: 42, CustomerName: "Ana", TotalAmount: decimal.RequireFromString("19.5"), Status: domain.StatusPending},
		},
		Notifications: []client.Notification{
			{ID: "0123456789", Kind: client.KindSuccess, Title: "Status updated!", Message: "Order #42 is now: Confirmed."},
		},
	})
	out := buf.String()
	for _, want := range []string{"[live]", "#42", "$19.50", "N/A", "555-0100", "Pending", "Delivered", "Status updated!", "(01234567)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "#43") > strings.Index(out, "#42") {
		t.Fatalf("orders not rendered in list order:\n%s", out)
	}
}

func TestTextRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewText(&buf).Render(client.State{})
	if !strings.Contains(buf.String(), "[offline]") || !strings.Contains(buf.String(), "no orders yet") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

type fakeChanger struct {
	id     int64
	status domain.Status
	err    error
}

func (f *fakeChanger) RequestStatusChange(id int64, status domain.Status) error {
	f.id, f.status = id, status
	return f.err
}

type fakeDismisser struct{ ids []string }

func (f *fakeDismisser) Dismiss(id string) { f.ids = append(f.ids, id) }

func newTestPrompt(ch *fakeChanger, d *fakeDismisser) (*Prompt, *bytes.Buffer) {
	var out bytes.Buffer
	logger, _ := test.NewNullLogger()
	return NewPrompt(ch, d, &out, logger), &out
}

func TestPromptStatus(t *testing.T) {
	ch := &fakeChanger{}
	p, out := newTestPrompt(ch, &fakeDismisser{})
	if p.Exec("status #42 Confirmed") {
		t.Fatalf("status must not quit")
	}
	if ch.id != 42 || ch.status != domain.StatusConfirmed {
		t.Fatalf("unexpected request %d %s", ch.id, ch.status)
	}
	if !strings.Contains(out.String(), "requested order #42") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestPromptRejectsBadInput(t *testing.T) {
	ch := &fakeChanger{}
	p, out := newTestPrompt(ch, &fakeDismisser{})
	p.Exec("status abc confirmed")
	p.Exec("status 1 shipped")
	p.Exec("status 1")
	if ch.id != 0 {
		t.Fatalf("invalid input reached the dispatcher")
	}
	if strings.Count(out.String(), "\n") != 3 {
		t.Fatalf("expected one message per bad line, got %q", out.String())
	}
}

func TestPromptReportsLostRequest(t *testing.T) {
	p, out := newTestPrompt(&fakeChanger{err: errors.New("session not connected")}, &fakeDismisser{})
	p.Exec("status 1 cancelled")
	if !strings.Contains(out.String(), "request not sent") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestPromptRun(t *testing.T) {
	ch := &fakeChanger{}
	d := &fakeDismisser{}
	p, _ := newTestPrompt(ch, d)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	in := strings.NewReader("help\n\ndismiss abc123\nstatus 7 delivered\nquit\nstatus 8 pending\n")
	if err := p.Run(ctx, in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(d.ids) != 1 || d.ids[0] != "abc123" {
		t.Fatalf("unexpected dismissals %v", d.ids)
	}
	if ch.id != 7 {
		t.Fatalf("commands after quit must not run, last id %d", ch.id)
	}
}
