package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Toru2004/PlateVision-BE/internal/circuitbreaker"
	"github.com/Toru2004/PlateVision-BE/internal/domain"
	"github.com/Toru2004/PlateVision-BE/internal/metrics"
)

func testJob() domain.NotificationJob {
	return domain.NotificationJob{
		Tokens: []string{"token-a", "token-b"},
		Title:  "🚨 Cảnh báo xe",
		Body:   "Bạn đang chuẩn bị ra khỏi nhà xe đúng không?",
	}
}

func TestFCMSender_SendSuccess(t *testing.T) {
	var gotAuth string
	var gotPayload fcmPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotPayload)
		w.Write([]byte(`{"success":2,"failure":0}`))
	}))
	defer srv.Close()

	sender := NewFCMSender("server-key").WithEndpoint(srv.URL)

	if err := sender.Send(context.Background(), testJob()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotAuth != "key=server-key" {
		t.Errorf("Authorization = %q, want key=server-key", gotAuth)
	}
	if len(gotPayload.RegistrationIDs) != 2 {
		t.Errorf("registration_ids = %v, want 2 tokens", gotPayload.RegistrationIDs)
	}
	if gotPayload.Notification.Title != "🚨 Cảnh báo xe" {
		t.Errorf("title = %q", gotPayload.Notification.Title)
	}
}

func TestFCMSender_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender := NewFCMSender("bad-key").WithEndpoint(srv.URL)

	if err := sender.Send(context.Background(), testJob()); err == nil {
		t.Error("Send should fail on 401")
	}
}

func TestFCMSender_BreakerSuppressesAfterFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sender := NewFCMSender("server-key").
		WithEndpoint(srv.URL).
		WithBreaker(circuitbreaker.New(2, time.Minute))

	ctx := context.Background()
	sender.Send(ctx, testJob())
	sender.Send(ctx, testJob())

	// Breaker is open now; the endpoint must not be hit again.
	if err := sender.Send(ctx, testJob()); err != circuitbreaker.ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("endpoint calls = %d, want 2", calls)
	}
}

type mockMetrics struct {
	mu      sync.Mutex
	classes []string
}

func (m *mockMetrics) PushAttemptCompleted(statusClass string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes = append(m.classes, statusClass)
}

func TestFCMSender_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":1,"failure":0}`))
	}))
	defer srv.Close()

	sink := &mockMetrics{}
	sender := NewFCMSender("server-key").WithEndpoint(srv.URL).WithMetrics(sink)

	if err := sender.Send(context.Background(), testJob()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.classes) != 1 || sink.classes[0] != metrics.StatusClass2xx {
		t.Errorf("recorded classes = %v, want [2xx]", sink.classes)
	}
}
