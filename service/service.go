// Package service holds the application logic: it authenticates the
// caller from the context, validates inputs, talks to the stores and
// fans out realtime events.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxa-chat/voxa/minio"
	"github.com/voxa-chat/voxa/postgres"
	"github.com/voxa-chat/voxa/presence"
	"github.com/voxa-chat/voxa/pubsub"
)

type Config struct {
	Postgres          *postgres.Postgres
	Minio             *minio.Minio
	PubSub            pubsub.PubSub
	Presence          *presence.Presence
	Logger            *slog.Logger
	MediaBucket       string
	BaseCtx           context.Context
	BackgroundTimeout time.Duration
}

type Service struct {
	Postgres *postgres.Postgres
	Minio    *minio.Minio
	PubSub   pubsub.PubSub
	Presence *presence.Presence
	Logger   *slog.Logger

	mediaBucket       string
	baseCtx           context.Context
	backgroundTimeout time.Duration
	wg                sync.WaitGroup
	errs              chan error
}

func New(cfg *Config) *Service {
	return &Service{
		Postgres: cfg.Postgres,
		Minio:    cfg.Minio,
		PubSub:   cfg.PubSub,
		Presence: cfg.Presence,
		Logger:   cfg.Logger,

		mediaBucket:       cfg.MediaBucket,
		baseCtx:           cfg.BaseCtx,
		backgroundTimeout: cfg.BackgroundTimeout,
		errs:              make(chan error, 1),
	}
}

func (svc *Service) Errs() <-chan error {
	return svc.errs
}

func (svc *Service) Close() error {
	svc.wg.Wait()
	close(svc.errs)
	return nil
}

func (svc *Service) background(fn func(ctx context.Context) error) {
	svc.wg.Go(func() {
		defer func() {
			if rcv := recover(); rcv != nil {
				select {
				case svc.errs <- fmt.Errorf("service background panic: %v", rcv):
				default:
				}
			}
		}()

		ctx, cancel := context.WithTimeout(svc.baseCtx, svc.backgroundTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			select {
			case svc.errs <- fmt.Errorf("service background error: %w", err):
			default:
			}
		}
	})
}
