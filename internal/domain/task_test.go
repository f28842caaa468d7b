package domain

import (
	"testing"
	"time"
)

func TestCanTransition_LegalEdges(t *testing.T) {
	legal := []struct {
		from, to TaskStatus
	}{
		{TaskPending, TaskProcessing},
		{TaskPending, TaskFailed},
		{TaskProcessing, TaskCompleted},
		{TaskProcessing, TaskFailed},
		{TaskCompleted, TaskRefunded},
		{TaskFailed, TaskRefunded},
	}
	for _, edge := range legal {
		if !CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be legal", edge.from, edge.to)
		}
	}
}

func TestCanTransition_RejectsIllegalEdges(t *testing.T) {
	statuses := []TaskStatus{TaskPending, TaskProcessing, TaskCompleted, TaskFailed, TaskRefunded}
	legal := map[TaskStatus]map[TaskStatus]bool{
		TaskPending:    {TaskProcessing: true, TaskFailed: true},
		TaskProcessing: {TaskCompleted: true, TaskFailed: true},
		TaskCompleted:  {TaskRefunded: true},
		TaskFailed:     {TaskRefunded: true},
	}
	for _, from := range statuses {
		for _, to := range statuses {
			want := legal[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransition_NothingLeavesRefunded(t *testing.T) {
	for _, to := range []TaskStatus{TaskPending, TaskProcessing, TaskCompleted, TaskFailed, TaskRefunded} {
		if CanTransition(TaskRefunded, to) {
			t.Errorf("refunded must be final, got legal edge to %s", to)
		}
	}
}

func TestTerminal(t *testing.T) {
	if TaskPending.Terminal() || TaskProcessing.Terminal() {
		t.Fatal("pending and processing are not terminal")
	}
	for _, s := range []TaskStatus{TaskCompleted, TaskFailed, TaskRefunded} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestRefundsRemainingToday(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	fresh := CreditAccount{RefundWindowDate: now.AddDate(0, 0, -1), RefundsIssuedToday: DailyRefundCap}
	if got := fresh.RefundsRemainingToday(now); got != DailyRefundCap {
		t.Fatalf("rolled window should reset the cap, got %d", got)
	}

	partial := CreditAccount{RefundWindowDate: now, RefundsIssuedToday: 2}
	if got := partial.RefundsRemainingToday(now); got != DailyRefundCap-2 {
		t.Fatalf("expected %d remaining, got %d", DailyRefundCap-2, got)
	}

	over := CreditAccount{RefundWindowDate: now, RefundsIssuedToday: DailyRefundCap + 1}
	if got := over.RefundsRemainingToday(now); got != 0 {
		t.Fatalf("remaining must clamp at zero, got %d", got)
	}
}

func TestDaysUntilExpiry(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	asset := GeneratedAsset{ExpiresAt: now.AddDate(0, 0, 7)}
	if got := asset.DaysUntilExpiry(now); got != 7 {
		t.Fatalf("expected 7 days, got %d", got)
	}
	expired := GeneratedAsset{ExpiresAt: now.AddDate(0, 0, -1)}
	if got := expired.DaysUntilExpiry(now); got != 0 {
		t.Fatalf("expired asset must report 0, got %d", got)
	}
	if got := (GeneratedAsset{}).DaysUntilExpiry(now); got != 0 {
		t.Fatalf("zero expiry must report 0, got %d", got)
	}
}
