// Package audit fans security events out to the analytics and search
// sinks. Recording is always best-effort: a sink outage must never fail
// the credential operation that produced the event.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"identity-service/internal/bucketing"
	"identity-service/internal/client"
	"identity-service/internal/config"
	"identity-service/internal/util"
)

const (
	EventSignup             = "account.signup"
	EventSignupCompensated  = "account.signup_compensated"
	EventEmailVerified      = "account.email_verified"
	EventVerificationResent = "account.verification_resent"
	EventLoginOtpSent       = "login.otp_sent"
	EventLoginOtpVerified   = "login.otp_verified"
	EventPasswordLogin      = "login.password"
	EventResetRequested     = "password.reset_requested"
	EventResetConfirmed     = "password.reset_confirmed"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// SecurityEvent is one audit record. Only the hashed email travels to the
// sinks; raw addresses never leave the service boundary.
type SecurityEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	EmailHash  string    `json:"email_hash"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	DateBucket string    `json:"date_bucket"`
}

type Recorder struct {
	producer   *client.KafkaProducer
	clickhouse *client.ClickHouseClient
	es         *client.ESClient
	buckets    *bucketing.Manager
	eventTopic string
	auditIndex string
}

// NewRecorder accepts nil sinks; each missing sink is simply skipped.
func NewRecorder(cfg *config.Config, producer *client.KafkaProducer, clickhouse *client.ClickHouseClient, es *client.ESClient, buckets *bucketing.Manager) *Recorder {
	return &Recorder{
		producer:   producer,
		clickhouse: clickhouse,
		es:         es,
		buckets:    buckets,
		eventTopic: cfg.Kafka.EventTopic,
		auditIndex: cfg.Elasticsearch.AuditIndex,
	}
}

// Record writes the event to every configured sink concurrently. Failures
// are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, eventType, emailHash, outcome, detail string) {
	if r == nil {
		return
	}

	event := &SecurityEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		EmailHash: emailHash,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if r.buckets != nil {
		event.DateBucket = r.buckets.DateBucket(event.CreatedAt)
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(recordCtx)

	if r.producer != nil {
		g.Go(func() error {
			return r.publishKafka(gctx, event)
		})
	}
	if r.clickhouse != nil {
		g.Go(func() error {
			return r.insertClickhouse(gctx, event)
		})
	}
	if r.es != nil {
		g.Go(func() error {
			return r.indexElasticsearch(gctx, event)
		})
	}

	if err := g.Wait(); err != nil {
		util.Warn("Security event delivery incomplete",
			zap.String("event_type", eventType),
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}

func (r *Recorder) publishKafka(ctx context.Context, event *SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.producer.ProduceMessage(ctx, r.eventTopic, []byte(event.EmailHash), payload, map[string]string{
		"event_type": event.EventType,
	})
}

func (r *Recorder) insertClickhouse(ctx context.Context, event *SecurityEvent) error {
	return r.clickhouse.BatchInsert(ctx,
		`INSERT INTO security_events (event_id, event_type, email_hash, outcome, detail, created_at, date_bucket)`,
		[][]interface{}{{
			event.EventID, event.EventType, event.EmailHash,
			event.Outcome, event.Detail, event.CreatedAt, event.DateBucket,
		}})
}

func (r *Recorder) indexElasticsearch(ctx context.Context, event *SecurityEvent) error {
	res, err := r.es.IndexDocument(ctx, r.auditIndex, event.EventID, event)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		util.Warn("Audit index rejected event",
			zap.String("event_id", event.EventID),
			zap.String("status", res.Status()))
	}
	return nil
}
