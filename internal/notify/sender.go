// Package notify hands login codes to the delivery pipeline. The service
// never sends mail itself; it publishes delivery requests and a downstream
// worker owns templating and transport.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"identity-service/internal/client"
	"identity-service/internal/config"
	"identity-service/internal/model"
	"identity-service/internal/util"
)

type OtpSender struct {
	producer    *client.KafkaProducer
	topic       string
	development bool
}

type otpDelivery struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewOtpSender(cfg *config.Config, producer *client.KafkaProducer) *OtpSender {
	return &OtpSender{
		producer:    producer,
		topic:       cfg.Kafka.OtpTopic,
		development: cfg.IsDevelopment(),
	}
}

// Send publishes the delivery request. Delivery is best-effort from the
// caller's point of view: the code is already persisted, so a publish
// failure only delays the user, it does not corrupt state.
func (s *OtpSender) Send(ctx context.Context, record *model.OtpRecord) error {
	if s == nil || s.producer == nil {
		if s != nil && s.development {
			util.Debug("Login code delivery skipped, no producer configured",
				zap.String("code", record.Code))
		}
		return nil
	}

	payload, err := json.Marshal(otpDelivery{
		Email:     record.Email,
		Code:      record.Code,
		ExpiresAt: record.ExpiresAt,
	})
	if err != nil {
		return err
	}

	err = s.producer.ProduceMessage(ctx, s.topic,
		[]byte(util.HashEmail(record.Email)), payload, map[string]string{
			"delivery_channel": "email",
		})
	if err != nil {
		util.Error("Failed to publish login code delivery",
			zap.String("email_hash", util.HashEmail(record.Email)),
			zap.Error(err))
		return err
	}

	return nil
}
