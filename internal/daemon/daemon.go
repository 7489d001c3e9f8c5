package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/triagebot/internal/config"
	"github.com/harun/triagebot/internal/logger"
	"github.com/harun/triagebot/internal/metrics"
	"github.com/harun/triagebot/internal/slack"
	"github.com/harun/triagebot/internal/telegram"
	"github.com/harun/triagebot/internal/tracing"
	"github.com/harun/triagebot/pkg/patterns"
	"github.com/harun/triagebot/pkg/triage"
)

// Version is reported as the tracing service version
var Version = "dev"

const serviceName = "triagebot"

// Transport is one chat platform connection: the outbound ports used by the
// core plus the receive loop that feeds it.
type Transport interface {
	triage.ChannelProber
	triage.ArtifactSender
	triage.Reactor
	triage.InteractionAcker

	Name() string
	Run(ctx context.Context, h triage.Handlers) error
}

var newTransport = func(cfg *config.Config, log *logger.Logger) (Transport, error) {
	switch cfg.Transport {
	case config.TransportTelegram:
		bot, err := telegram.New(&cfg.Telegram, cfg.TransportOptions, log)
		if err != nil {
			return nil, err
		}
		return bot, nil
	case config.TransportSlack:
		tr, err := slack.New(&cfg.Slack, cfg.TransportOptions, log)
		if err != nil {
			return nil, err
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// Plan is the validated, platform-independent part of the setup
type Plan struct {
	Patterns   *triage.PatternSet
	Authorizer *triage.ChannelAuthorizer
}

// Prepare validates cfg, loads the pattern document and builds the channel scope.
// Every failure is a ConfigError.
func Prepare(cfg *config.Config) (*Plan, error) {
	if err := config.Check(cfg); err != nil {
		return nil, err
	}

	list, err := patterns.NewFileProvider(cfg.PatternsFile).Patterns()
	if err != nil {
		return nil, triage.NewConfigError("patterns_file", err)
	}

	ps, err := triage.BuildPatternSet(list)
	if err != nil {
		return nil, err
	}

	auth, err := triage.NewChannelAuthorizer(cfg.ChannelIDs, cfg.TargetChannelID)
	if err != nil {
		return nil, err
	}

	return &Plan{Patterns: ps, Authorizer: auth}, nil
}

// Daemon runs one transport against the triage pipeline
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	transport  Transport
	plan       *Plan
	filter     *triage.FilterEngine
	dispatcher *triage.ForwardDispatcher
	ackHandler *triage.AcknowledgmentHandler

	metrics       *metrics.Metrics
	metricsServer *metrics.Server

	eventLoop *EventLoop
	lifecycle *LifecycleManager

	callTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	runErr error

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// Status is a point-in-time view of the daemon
type Status struct {
	Running   bool
	Transport string
	StartTime time.Time
	Uptime    time.Duration
}

// New validates the configuration and wires the pipeline. No platform event is
// handled until Start.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	plan, err := Prepare(cfg)
	if err != nil {
		return nil, err
	}

	transport, err := newTransport(cfg, log)
	if err != nil {
		return nil, triage.NewConfigError("transport", err)
	}

	d := newDaemon(cfg, log, transport, plan)

	if err := tracing.InitOpenTelemetry(serviceName, Version); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without spans")
	} else {
		d.tracingEnabled = true
	}

	log.Info().
		Str("transport", transport.Name()).
		Int("patterns", plan.Patterns.Len()).
		Strs("sources", plan.Authorizer.Sources()).
		Str("target", plan.Authorizer.Target()).
		Msg("Triage pipeline initialized")

	return d, nil
}

func newDaemon(cfg *config.Config, log *logger.Logger, transport Transport, plan *Plan) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:      cfg,
		logger:      log,
		transport:   transport,
		plan:        plan,
		metrics:     metrics.NewMetrics(),
		callTimeout: time.Duration(cfg.TransportOptions.RequestTimeoutSeconds) * time.Second,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	if d.callTimeout <= 0 {
		d.callTimeout = 10 * time.Second
	}

	core := log.Component("triage")
	d.filter = triage.NewFilterEngine(plan.Authorizer, plan.Patterns)
	d.dispatcher = triage.NewForwardDispatcher(plan.Authorizer.Target(), transport, core)
	d.ackHandler = triage.NewAcknowledgmentHandler(transport, transport, cfg.Reaction(), core)

	if cfg.Metrics.ListenAddr != "" {
		d.metricsServer = metrics.NewServer(d.metrics, cfg.Metrics.ListenAddr, log.Component("metrics"))
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d
}

// ValidateSources probes every source channel through the transport. The first
// unreachable channel is a ConfigError.
func (d *Daemon) ValidateSources(ctx context.Context) error {
	return d.plan.Authorizer.ValidateAtStartup(ctx, timeoutProber{prober: d.transport, timeout: d.callTimeout})
}

// Start validates the source channels and then starts the transport's receive loop
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	if d.ctx.Err() != nil {
		d.mu.Unlock()
		return fmt.Errorf("daemon has been stopped")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Str("transport", d.transport.Name()).Msg("Starting triagebot")

	if err := d.ValidateSources(d.ctx); err != nil {
		d.abortStart()
		return err
	}
	logger.Info().Strs("sources", d.plan.Authorizer.Sources()).Msg("Source channels validated")

	if d.metricsServer != nil {
		if err := d.metricsServer.Start(); err != nil {
			d.abortStart()
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Info().Str("addr", d.metricsServer.Addr()).Msg("Metrics server started")
	}

	if err := d.lifecycle.Start(); err != nil {
		d.abortStart()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(d.done)

		err := d.transport.Run(d.ctx, d.eventLoop.Handlers())
		if err != nil {
			logger.Error().Err(err).Msg("Transport stopped with error")
		}

		d.mu.Lock()
		d.runErr = err
		d.mu.Unlock()
	}()

	logger.Info().Msg("Triagebot started")

	return nil
}

// abortStart undoes a failed Start. The daemon cannot be started again.
func (d *Daemon) abortStart() {
	if d.metricsServer != nil {
		if err := d.metricsServer.Stop(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	d.cancel()
	d.shutdownTracing()
}

// Close releases what New acquired for a daemon that is not running, such as
// one built only to validate channels. Use Stop for a running daemon.
func (d *Daemon) Close() error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if running {
		return fmt.Errorf("daemon is running")
	}

	d.cancel()
	d.shutdownTracing()
	return nil
}

func (d *Daemon) shutdownTracing() {
	d.mu.Lock()
	enabled := d.tracingEnabled
	d.tracingEnabled = false
	d.mu.Unlock()
	if !enabled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Failed to shutdown tracing")
	}
}

// Stop cancels the receive loop and releases everything Start acquired
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping triagebot")

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("Transport stopped")
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("Timeout waiting for transport to stop")
	}

	if d.metricsServer != nil {
		if err := d.metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.shutdownTracing()

	logger.Info().Msg("Triagebot stopped")

	return nil
}

// Wait blocks until SIGINT, SIGTERM or the transport stopping on its own, then
// stops the daemon. It returns the transport's error, if any.
func (d *Daemon) Wait() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		d.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	case <-d.done:
		d.logger.Warn().Msg("Transport receive loop exited")
	}

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}

	return d.Err()
}

// Run starts the daemon and waits for it to stop
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}
	return d.Wait()
}

// Done is closed when the transport's receive loop has returned
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Err returns the error the transport's receive loop returned with
func (d *Daemon) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.runErr
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:   d.running,
		Transport: d.transport.Name(),
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetMetrics returns the pipeline metrics
func (d *Daemon) GetMetrics() *metrics.Metrics {
	return d.metrics
}

// GetPlan returns the validated pattern set and channel scope
func (d *Daemon) GetPlan() *Plan {
	return d.plan
}

// timeoutProber bounds each probe by the per-call timeout
type timeoutProber struct {
	prober  triage.ChannelProber
	timeout time.Duration
}

func (p timeoutProber) ProbeChannel(ctx context.Context, channelID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.prober.ProbeChannel(ctx, channelID)
}
