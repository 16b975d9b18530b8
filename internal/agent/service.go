package agent

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/karsk/voicectl/internal/booking"
	"github.com/karsk/voicectl/internal/config"
	"github.com/karsk/voicectl/internal/skills"
	"github.com/karsk/voicectl/internal/version"
)

var ErrInvalidHeartbeatInterval = errors.New("agent: invalid heartbeat interval")

// AdminRunner serves the worker admin surface until ctx is done.
type AdminRunner interface {
	Serve(ctx context.Context, addr string) error
}

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

// ServiceStatus is the worker health snapshot served by the admin API.
type ServiceStatus struct {
	WorkerID    string    `json:"worker_id"`
	Version     string    `json:"version"`
	StartedAt   time.Time `json:"started_at"`
	Uptime      string    `json:"uptime"`
	Sessions    int       `json:"sessions"`
	Skills      int       `json:"skills"`
	Subscribers int       `json:"subscribers"`
}

// Service runs the voiced worker lifecycle as a standalone process.
type Service struct {
	cfg      config.AgentConfig
	registry *skills.Registry
	store    *booking.Store
	hub      *EventHub
	manager  *SessionManager

	admin     AdminRunner
	readiness []readinessCheck
	started   time.Time
}

// NewService wires a worker service. No I/O happens until Run.
func NewService(cfg config.AgentConfig, registry *skills.Registry, store *booking.Store) *Service {
	hub := NewEventHub()
	return &Service{
		cfg:      cfg,
		registry: registry,
		store:    store,
		hub:      hub,
		manager:  NewSessionManager(registry, store, hub),
		started:  time.Now().UTC(),
	}
}

// SetAdmin attaches the admin surface started by serve.
func (s *Service) SetAdmin(admin AdminRunner) {
	s.admin = admin
}

// AddReadiness registers one named readiness probe.
func (s *Service) AddReadiness(name string, check func(ctx context.Context) error) {
	s.readiness = append(s.readiness, readinessCheck{name: name, check: check})
}

// Ready runs every readiness probe and reports the first failure.
func (s *Service) Ready(ctx context.Context) error {
	for _, probe := range s.readiness {
		if err := probe.check(ctx); err != nil {
			return fmt.Errorf("agent: readiness %s: %w", probe.name, err)
		}
	}
	return nil
}

// Sessions returns the session manager.
func (s *Service) Sessions() *SessionManager {
	return s.manager
}

// Events returns the worker event hub.
func (s *Service) Events() *EventHub {
	return s.hub
}

// Skills returns registered skill metadata in deterministic order.
func (s *Service) Skills() []skills.SkillMetadata {
	return s.registry.ListMetadata()
}

// SkillOperations returns the operation catalog of one skill.
func (s *Service) SkillOperations(id string) ([]skills.OperationSpec, bool) {
	skill, ok := s.registry.Resolve(id)
	if !ok {
		return nil, false
	}
	return skill.Operations(), true
}

// Config returns the worker configuration.
func (s *Service) Config() config.AgentConfig {
	return s.cfg
}

// Status returns the worker health snapshot.
func (s *Service) Status() ServiceStatus {
	return ServiceStatus{
		WorkerID:    s.cfg.WorkerID,
		Version:     version.Info(),
		StartedAt:   s.started,
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Sessions:    s.manager.Count(),
		Skills:      len(s.registry.ListMetadata()),
		Subscribers: s.hub.SubscriberCount(),
	}
}

// Run blocks until process signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.bootstrap(ctx); err != nil {
		return err
	}
	return s.serve(ctx)
}

// bootstrap gates serve on configuration and on every readiness probe.
// A worker with an incomplete asset set or an unreachable store must
// fail here, before it accepts any session.
func (s *Service) bootstrap(ctx context.Context) error {
	if s.cfg.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if err := s.Ready(ctx); err != nil {
		return err
	}

	log.Info().Msgf("agent.Service.bootstrap ready worker_id=%q skills=%d",
		s.cfg.WorkerID, len(s.registry.ListMetadata()))
	return nil
}

func (s *Service) serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	defer s.hub.Close()

	controlErr := make(chan error, 1)
	if s.admin != nil && strings.TrimSpace(s.cfg.AdminAddr) != "" {
		go func() {
			controlErr <- s.admin.Serve(ctx, s.cfg.AdminAddr)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("agent.Service.serve shutdown worker_id=%q", s.cfg.WorkerID)
			return nil
		case err := <-controlErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
			log.Info().Msgf("agent.Service.heartbeat worker_id=%q sessions=%d subscribers=%d",
				s.cfg.WorkerID, s.manager.Count(), s.hub.SubscriberCount())
		}
	}
}
