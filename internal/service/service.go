package service

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"eventspool/internal/config"
	"eventspool/internal/events"
	"eventspool/internal/gateway"
	"eventspool/internal/logging"
	"eventspool/internal/metrics"
	"eventspool/internal/modules"
	"eventspool/internal/policy"
	"eventspool/internal/queue"
	"eventspool/internal/store"
)

// Service collects events from modules into the store and drains the store
// to the gateway on independent schedules.
type Service struct {
	cfg     *config.Config
	log     *logging.Logger
	store   *store.Store
	queue   *queue.Queue[events.Event]
	codec   queue.JSONCodec[events.Event]
	gc      gateway.GatewayClient
	mods    *modules.Registry
	pol     *policy.Store
	metrics *metrics.StoreMetrics
	ctx     context.Context
	cancel  context.CancelFunc
}

type Option func(*Service)

// WithGateway replaces the HTTP gateway client.
func WithGateway(gc gateway.GatewayClient) Option {
	return func(s *Service) { s.gc = gc }
}

// WithModules replaces the built-in module set.
func WithModules(mods ...modules.Module) Option {
	return func(s *Service) {
		s.mods = modules.NewRegistry()
		for _, m := range mods {
			s.mods.Register(m)
		}
	}
}

func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:     cfg,
		log:     logger,
		pol:     policy.NewStore(),
		metrics: metrics.New(),
		ctx:     ctx,
		cancel:  cancel,
	}

	st, err := store.Open(cfg.DBPath,
		store.WithDriver(cfg.DBDriver),
		store.WithLogger(logger.With("component", "store").Slog()),
		store.WithObserver(s.metrics),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	s.store = st
	s.queue = queue.New[events.Event](st, s.codec,
		queue.WithIdentity(events.Key),
		queue.WithLogger[events.Event](logger.With("component", "queue").Slog()),
	)

	// register built-in modules
	s.mods = modules.NewRegistry()
	s.mods.Register(modules.NewSysInfoModule())
	s.mods.Register(modules.NewProcessModule(nil))
	s.mods.Register(modules.NewPolicyEnforcer(s.pol, nil))

	if cfg.GatewayURL != "" {
		host, _ := os.Hostname()
		gopts := []gateway.Option{gateway.WithRateLimit(cfg.GatewayRatePerSecond)}
		if cfg.GatewaySecret != "" {
			gopts = append(gopts, gateway.WithToken(cfg.GatewaySecret, host))
		}
		s.gc = gateway.NewHTTPClient(cfg.GatewayURL, gopts...)
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run blocks until Stop. The store is closed on return.
func (s *Service) Run() error {
	s.log.Info("service starting", "db", s.store.Path())
	defer s.store.Close()

	if s.cfg.PolicyFile != "" {
		w, err := policy.NewWatcher(s.cfg.PolicyFile, s.pol, s.log.Slog())
		if err != nil {
			s.log.Error("policy watcher failed", "err", err)
		} else {
			w.Start()
			defer w.Stop()
		}
	}

	if s.cfg.MetricsAddr != "" {
		srv := s.serveMetrics()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	sched := newScheduler()
	if err := sched.add("collect", s.cfg.CollectSchedule, func() { s.Collect(s.ctx) }); err != nil {
		return err
	}
	if s.gc != nil {
		if err := sched.add("flush", s.cfg.FlushSchedule, func() { s.flushLogged() }); err != nil {
			return err
		}
	}
	if s.cfg.PolicyURL != "" {
		if err := sched.add("policy", s.cfg.PolicySchedule, func() { s.fetchPolicyOnce() }); err != nil {
			return err
		}
		s.fetchPolicyOnce()
	}

	// initial run
	s.Collect(s.ctx)
	if s.gc != nil {
		s.flushLogged()
	}

	sched.start()
	<-s.ctx.Done()
	sched.stop()
	s.log.Info("service stopping")
	return nil
}

func (s *Service) Stop() {
	s.cancel()
}

func (s *Service) serveMetrics() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", "addr", s.cfg.MetricsAddr, "err", err)
		}
	}()
	return srv
}

func (s *Service) fetchPolicyOnce() {
	doc, err := policy.Fetch(s.ctx, s.cfg.PolicyURL)
	if err != nil {
		s.log.Error("policy fetch failed", "err", err)
		return
	}
	s.pol.Set(doc)
	s.log.Info("policy stored", "policies", len(doc.Policies))
}

// Collect runs every module and buffers what they produce. Each module's
// events are appended as one batch.
func (s *Service) Collect(ctx context.Context) {
	for _, m := range s.mods.List() {
		evts, err := m.Run(ctx)
		if err != nil {
			s.log.Error("module run error", "module", m.Name(), "err", err)
			continue
		}
		if len(evts) == 0 {
			continue
		}
		if err := s.queue.EnqueueAll(ctx, evts); err != nil {
			s.log.Error("failed to buffer events", "module", m.Name(), "err", err)
			continue
		}
		s.log.Debug("buffered events", "module", m.Name(), "count", len(evts))
	}
	s.updatePending(ctx)
}

// Flush sends buffered events to the gateway, oldest first, one batch at a
// time. A batch is removed only after the gateway accepts it, so a failed
// send leaves it in place for the next flush.
func (s *Service) Flush(ctx context.Context) (int, error) {
	if s.gc == nil {
		return 0, nil
	}
	defer s.updatePending(ctx)

	sent := 0
	for {
		recs, err := s.store.NextEvents(ctx, s.cfg.BatchSize)
		if err != nil {
			return sent, err
		}
		if len(recs) == 0 {
			return sent, nil
		}

		ids := make([]string, 0, len(recs))
		evts := make([]events.Event, 0, len(recs))
		for _, rec := range recs {
			ids = append(ids, rec.ID)
			evt, err := s.codec.Decode(rec.Payload)
			if err != nil {
				s.log.Warn("dropping undecodable event", "id", rec.ID, "err", err)
				continue
			}
			evts = append(evts, evt)
		}

		if err := s.gc.SendEvents(ctx, evts); err != nil {
			return sent, err
		}
		if err := s.store.Remove(ctx, ids); err != nil {
			return sent, err
		}
		sent += len(evts)
		s.metrics.AddSent(len(evts))

		if len(recs) < s.cfg.BatchSize {
			return sent, nil
		}
	}
}

func (s *Service) flushLogged() {
	n, err := s.Flush(s.ctx)
	if err != nil {
		s.log.Error("gateway flush failed", "sent", n, "err", err)
		return
	}
	if n > 0 {
		s.log.Info("flushed events", "sent", n)
	}
}

func (s *Service) updatePending(ctx context.Context) {
	s.store.CountAsync(ctx, func(n int, err error) {
		if err != nil {
			s.log.Error("count pending failed", "err", err)
			return
		}
		s.metrics.SetPending(n)
	})
}
