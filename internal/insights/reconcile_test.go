package insights

import (
	"testing"
	"time"

	"chatpulse-insights/internal/graph"
)

var windowStart = time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)

func TestReconcilePrimarySeries(t *testing.T) {
	series := &graph.ThreadSeries{
		Values: []graph.ThreadValue{
			{EndTime: "2024-05-04T07:00:00+0000", Value: 2},
			{EndTime: "2024-05-05T07:00:00+0000", Value: 5},
		},
	}

	rec := Reconcile("page-1", series, nil, windowStart, 7)

	if rec.TotalConversations != 7 {
		t.Fatalf("expected total 7, got %d", rec.TotalConversations)
	}
	if len(rec.Trend) != 2 {
		t.Fatalf("expected 2 trend points, got %d", len(rec.Trend))
	}
	if rec.Trend[0].Date != "2024-05-04" || rec.Trend[0].Count != 2 {
		t.Fatalf("unexpected first trend point: %+v", rec.Trend[0])
	}
	if rec.CompletionRate != 0.9 {
		t.Fatalf("primary path has no completion signal, expected 0.9, got %v", rec.CompletionRate)
	}
	if rec.ResponseTime != 0 {
		t.Fatalf("primary path leaves response time at 0, got %v", rec.ResponseTime)
	}
}

func TestReconcileFallbackGroupsByDay(t *testing.T) {
	conversations := []graph.Conversation{
		{ID: "t_1", LastMessageTime: "2024-05-04T10:00:00+0000"},
		{ID: "t_2", LastMessageTime: "2024-05-04T18:30:00+0000"},
		{ID: "t_3", LastMessageTime: "2024-05-06T09:00:00+0000"},
	}

	rec := Reconcile("page-1", nil, conversations, windowStart, 7)

	if rec.TotalConversations != 3 {
		t.Fatalf("expected total 3, got %d", rec.TotalConversations)
	}
	if len(rec.Trend) != 2 {
		t.Fatalf("expected 2 trend points, got %d", len(rec.Trend))
	}
	sum := 0
	for _, p := range rec.Trend {
		sum += p.Count
	}
	if sum != 3 {
		t.Fatalf("expected trend counts to sum to 3, got %d", sum)
	}
	if rec.Trend[0].Date != "2024-05-04" || rec.Trend[1].Date != "2024-05-06" {
		t.Fatalf("expected trend sorted ascending by date, got %+v", rec.Trend)
	}
	if rec.CompletionRate != 1.0 {
		t.Fatalf("all conversations have messages, expected completion 1.0, got %v", rec.CompletionRate)
	}
}

func TestReconcileFallbackMessagelessConversations(t *testing.T) {
	conversations := []graph.Conversation{
		{ID: "t_1", LastMessageTime: "2024-05-04T10:00:00+0000"},
		{ID: "t_2"}, // no messages: in the total, not in the trend
	}

	rec := Reconcile("page-1", nil, conversations, windowStart, 7)

	if rec.TotalConversations != 2 {
		t.Fatalf("expected total 2, got %d", rec.TotalConversations)
	}
	if len(rec.Trend) != 1 || rec.Trend[0].Count != 1 {
		t.Fatalf("expected one trend point with count 1, got %+v", rec.Trend)
	}
	if rec.CompletionRate != 0.5 {
		t.Fatalf("expected completion 0.5, got %v", rec.CompletionRate)
	}
}

func TestReconcileFallbackSyntheticResponseTime(t *testing.T) {
	conversations := []graph.Conversation{
		{ID: "t_1", LastMessageTime: "2024-05-04T10:00:00+0000"},
	}

	first := Reconcile("page-1", nil, conversations, windowStart, 7)
	second := Reconcile("page-1", nil, conversations, windowStart, 7)

	if first.ResponseTime != second.ResponseTime {
		t.Fatalf("synthetic response time must be stable per page: %v vs %v",
			first.ResponseTime, second.ResponseTime)
	}
	if first.ResponseTime < 30 || first.ResponseTime > 119.1 {
		t.Fatalf("synthetic response time out of range: %v", first.ResponseTime)
	}

	other := Reconcile("another-page", nil, conversations, windowStart, 7)
	if other.ResponseTime < 30 || other.ResponseTime > 119.1 {
		t.Fatalf("synthetic response time out of range: %v", other.ResponseTime)
	}
}

func TestReconcileEmptyPadsFullWindow(t *testing.T) {
	rec := Reconcile("page-1", nil, nil, windowStart, 3)

	if rec.TotalConversations != 0 {
		t.Fatalf("expected zero total, got %d", rec.TotalConversations)
	}
	if rec.CompletionRate != 0.9 {
		t.Fatalf("expected default completion 0.9, got %v", rec.CompletionRate)
	}
	if len(rec.Trend) != 3 {
		t.Fatalf("expected one zero entry per day, got %d", len(rec.Trend))
	}
	wantDates := []string{"2024-05-03", "2024-05-04", "2024-05-05"}
	for i, p := range rec.Trend {
		if p.Date != wantDates[i] || p.Count != 0 {
			t.Fatalf("unexpected padded entry %d: %+v", i, p)
		}
	}
}

func TestReconcileFallbackEmptyListingStillPads(t *testing.T) {
	rec := Reconcile("page-1", nil, []graph.Conversation{}, windowStart, 2)

	if rec.TotalConversations != 0 {
		t.Fatalf("expected zero total, got %d", rec.TotalConversations)
	}
	if rec.CompletionRate != 0.9 {
		t.Fatalf("zero-conversation fallback keeps the 0.9 default, got %v", rec.CompletionRate)
	}
	if len(rec.Trend) != 2 {
		t.Fatalf("expected padded trend of 2 days, got %d", len(rec.Trend))
	}
}
