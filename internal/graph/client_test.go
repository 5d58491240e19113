package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}

func TestActiveThreadsSuccess(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page-1/insights" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"access_token": q.Get("access_token"),
			"metric":       q.Get("metric"),
			"period":       q.Get("period"),
			"since":        q.Get("since"),
			"until":        q.Get("until"),
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"data": [
				{
					"name": "page_messages_active_threads_unique",
					"period": "day",
					"values": [
						{"value": 2, "end_time": "2024-05-04T07:00:00+0000"},
						{"value": 3, "end_time": "2024-05-05T07:00:00+0000"}
					]
				},
				{
					"name": "some_other_metric",
					"period": "day",
					"values": [{"value": 99, "end_time": "2024-05-04T07:00:00+0000"}]
				}
			]
		}`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	since := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	series, err := client.ActiveThreads(context.Background(), "page-1", "tok", since, until)
	if err != nil {
		t.Fatalf("ActiveThreads: %v", err)
	}

	if gotQuery["access_token"] != "tok" {
		t.Fatalf("unexpected access_token: %s", gotQuery["access_token"])
	}
	if gotQuery["metric"] != "page_messages_active_threads_unique" {
		t.Fatalf("unexpected metric: %s", gotQuery["metric"])
	}
	if gotQuery["period"] != "day" {
		t.Fatalf("unexpected period: %s", gotQuery["period"])
	}
	if gotQuery["since"] != "2024-05-03" || gotQuery["until"] != "2024-05-10" {
		t.Fatalf("unexpected window: since=%s until=%s", gotQuery["since"], gotQuery["until"])
	}

	if len(series.Values) != 2 {
		t.Fatalf("expected 2 values from the named metric only, got %d", len(series.Values))
	}
	if series.Values[0].Value != 2 || series.Values[0].EndTime != "2024-05-04T07:00:00+0000" {
		t.Fatalf("unexpected first value: %+v", series.Values[0])
	}
}

func TestActiveThreadsUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	_, err = client.ActiveThreads(context.Background(), "page-1", "bad", time.Now().AddDate(0, 0, -7), time.Now())

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Kind != KindStatus || terr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected error classification: %+v", terr)
	}
	if terr.Body != "Invalid OAuth access token." {
		t.Fatalf("expected structured upstream message, got %q", terr.Body)
	}
}

func TestActiveThreadsTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL:     srv.URL,
		CallTimeout: 20 * time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	_, err = client.ActiveThreads(context.Background(), "page-1", "tok", time.Now().AddDate(0, 0, -7), time.Now())

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !terr.Timeout() {
		t.Fatalf("expected timeout classification, got %+v", terr)
	}
}

func TestActiveThreadsDecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	_, err = client.ActiveThreads(context.Background(), "page-1", "tok", time.Now().AddDate(0, 0, -7), time.Now())

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Kind != KindDecode {
		t.Fatalf("expected decode classification, got %+v", terr)
	}
}

func TestListConversations(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page-1/conversations" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "20" {
			t.Fatalf("unexpected limit: %s", q.Get("limit"))
		}
		if q.Get("fields") != "participants,messages.limit(1){created_time}" {
			t.Fatalf("unexpected fields: %s", q.Get("fields"))
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"data": [
				{"id": "t_1", "messages": {"data": [{"created_time": "2024-05-04T10:00:00+0000"}]}},
				{"id": "t_2", "messages": {"data": []}}
			]
		}`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	conversations, err := client.ListConversations(context.Background(), "page-1", "tok")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}

	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}
	if conversations[0].LastMessageTime != "2024-05-04T10:00:00+0000" {
		t.Fatalf("unexpected last message time: %+v", conversations[0])
	}
	if conversations[1].LastMessageTime != "" {
		t.Fatalf("message-less conversation must have empty timestamp: %+v", conversations[1])
	}
}
