// Package dispatcher delivers notification jobs to devices through the FCM
// HTTP endpoint. Delivery is best-effort and at-most-once: a failure is
// returned to the caller for logging and never retried here.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Toru2004/PlateVision-BE/internal/circuitbreaker"
	"github.com/Toru2004/PlateVision-BE/internal/domain"
	"github.com/Toru2004/PlateVision-BE/internal/metrics"
)

// DefaultEndpoint is the FCM legacy HTTP send endpoint.
const DefaultEndpoint = "https://fcm.googleapis.com/fcm/send"

const defaultTimeout = 10 * time.Second

// MetricsSink records dispatch metrics. Methods are fire-and-forget.
type MetricsSink interface {
	PushAttemptCompleted(statusClass string, duration time.Duration)
}

type fcmPayload struct {
	RegistrationIDs []string        `json:"registration_ids"`
	Notification    fcmNotification `json:"notification"`
	Priority        string          `json:"priority"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

type FCMSender struct {
	client    *http.Client
	endpoint  string
	serverKey string
	timeout   time.Duration
	breaker   *circuitbreaker.Breaker // optional, nil = disabled
	metrics   MetricsSink             // optional, nil = disabled
}

func NewFCMSender(serverKey string) *FCMSender {
	return &FCMSender{
		client:    &http.Client{},
		endpoint:  DefaultEndpoint,
		serverKey: serverKey,
		timeout:   defaultTimeout,
	}
}

// WithEndpoint overrides the send endpoint.
func (s *FCMSender) WithEndpoint(endpoint string) *FCMSender {
	s.endpoint = endpoint
	return s
}

// WithBreaker attaches a circuit breaker guarding the endpoint.
func (s *FCMSender) WithBreaker(b *circuitbreaker.Breaker) *FCMSender {
	s.breaker = b
	return s
}

// WithMetrics attaches a metrics sink.
func (s *FCMSender) WithMetrics(sink MetricsSink) *FCMSender {
	s.metrics = sink
	return s
}

// Send posts the job to the push endpoint. At most one attempt per call.
func (s *FCMSender) Send(ctx context.Context, job domain.NotificationJob) error {
	if s.breaker != nil {
		if err := s.breaker.Allow(); err != nil {
			if s.metrics != nil {
				s.metrics.PushAttemptCompleted(metrics.StatusClassSuppressed, 0)
			}
			return err
		}
	}

	start := time.Now()
	err := s.send(ctx, job)
	_ = time.Since(start)

	if s.breaker != nil {
		if err != nil {
			s.breaker.RecordFailure()
		} else {
			s.breaker.RecordSuccess()
		}
	}
	return err
}

func (s *FCMSender) send(ctx context.Context, job domain.NotificationJob) error {
	body, err := json.Marshal(fcmPayload{
		RegistrationIDs: job.Tokens,
		Notification:    fcmNotification{Title: job.Title, Body: job.Body},
		Priority:        "high",
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.observe(0, err, time.Since(start))
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	s.observe(resp.StatusCode, nil, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}

	var result fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Failure > 0 {
		// Per-token failures (stale tokens, unregistered devices) are not a
		// delivery failure for the job as a whole.
		log.Printf("dispatcher: partial delivery, success=%d failure=%d", result.Success, result.Failure)
	}
	return nil
}

func (s *FCMSender) observe(statusCode int, err error, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.PushAttemptCompleted(metrics.ClassifyStatus(statusCode, err), duration)
}
