package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	pinger
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Redis    pinger
	Consumer runner
}

// Service runs the notification consumer once its dependencies answer.
type Service struct {
	logg     *logger.Logger
	redis    pinger
	consumer runner
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.Redis == nil:
		return nil, errors.New("redis client is required")
	case params.Consumer == nil:
		return nil, errors.New("notification consumer is required")
	}
	return &Service{logg: params.Logger, redis: params.Redis, consumer: params.Consumer}, nil
}

// Run blocks until ctx is cancelled or the consumer stops.
func (s *Service) Run(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		p    pinger
	}{{"redis", s.redis}, {"broker", s.consumer}} {
		if err := dep.p.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")

	if err := s.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "notification consumer stopped unexpectedly", err)
		return err
	}
	return ctx.Err()
}
