package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/echarter/fleetauth/core"
	"github.com/echarter/fleetauth/internal/config"
	"github.com/echarter/fleetauth/notify"
)

// The worker drains the retry queue, re-sending codes the service could not
// deliver inline.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.AMQPURL == "" {
		log.Fatalf("AMQP_URL must be set for the worker")
	}
	if !cfg.SMTPEnabled() {
		log.Fatalf("SMTP_HOST and SMTP_FROM must be set for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := notify.DialAMQP(notify.AMQPConfig{
		URL:         cfg.AMQPURL,
		Queue:       cfg.AMQPQueue,
		MaxAttempts: cfg.NotifyMaxAttempts,
		RetryDelay:  cfg.RetryDelay(),
		CodeTTL:     cfg.CodeTTL(),
	})
	if err != nil {
		log.Fatalf("connect amqp: %v", err)
	}
	defer q.Close()

	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
		CodeTTL:  cfg.CodeTTL(),
	})

	log.Printf("worker consuming %s", cfg.AMQPQueue)
	err = q.Consume(ctx, func(ctx context.Context, n core.Notification) error {
		return mailer.SendCode(ctx, n.To, n.Code)
	})
	if err != nil {
		log.Fatalf("consume: %v", err)
	}
	log.Printf("worker stopped")
}
