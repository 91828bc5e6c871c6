package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"etsy-sync-core/internal/domain"
	"etsy-sync-core/internal/infrastructure/metrics"
	"etsy-sync-core/internal/ports"

	"github.com/rs/zerolog"
)

// Coordinator drives one polling goroutine per registered shop. Every cycle
// builds a snapshot, reconciles it against the shop's state and publishes the
// snapshot plus any derived events. A failed cycle publishes nothing and
// leaves the reconciliation state untouched; the next cycle retries from the
// last good baseline.
type Coordinator struct {
	builder       ports.SnapshotBuilder
	bus           ports.EventBus
	registrations ports.RegistrationRepository
	logger        zerolog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	cycles  map[int64]*shopCycle
}

// shopCycle is the runtime state of one shop's polling loop.
type shopCycle struct {
	shopID  int64
	cancel  context.CancelFunc
	done    chan struct{}
	refresh chan struct{}
	running atomic.Bool

	mu        sync.Mutex
	interval  time.Duration
	threshold int
	state     *domain.ReconciliationState
}

// NewCoordinator creates a new sync coordinator.
func NewCoordinator(builder ports.SnapshotBuilder, bus ports.EventBus, registrations ports.RegistrationRepository, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		builder:       builder,
		bus:           bus,
		registrations: registrations,
		logger:        logger,
		cycles:        make(map[int64]*shopCycle),
	}
}

// Start binds the coordinator to its lifetime context and launches a cycle
// for every registration already present. Cycles created later inherit the
// same context.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	regs, err := c.registrations.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list shop registrations: %w", err)
	}
	for _, reg := range regs {
		c.StartCycle(reg)
	}
	return nil
}

// StartCycle launches the polling loop for a shop. Starting an already
// running shop is a no-op. The first cycle runs immediately.
func (c *Coordinator) StartCycle(reg *domain.ShopRegistration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cycles[reg.ShopID]; exists {
		return
	}

	base := c.baseCtx
	if base == nil {
		base = context.Background()
	}
	cycleCtx, cancel := context.WithCancel(base)
	cycle := &shopCycle{
		shopID:    reg.ShopID,
		cancel:    cancel,
		done:      make(chan struct{}),
		refresh:   make(chan struct{}, 1),
		interval:  reg.PollInterval,
		threshold: reg.StockThreshold,
		state:     domain.NewReconciliationState(),
	}
	c.cycles[reg.ShopID] = cycle

	c.logger.Info().
		Int64("shopId", reg.ShopID).
		Dur("interval", reg.PollInterval).
		Int("threshold", reg.StockThreshold).
		Msg("Starting sync cycle")

	go c.run(cycleCtx, cycle)
}

// StopCycle stops the polling loop for a shop and waits for an in-flight
// cycle to finish. Unknown shops are a no-op.
func (c *Coordinator) StopCycle(shopID int64) {
	c.mu.Lock()
	cycle, exists := c.cycles[shopID]
	if exists {
		delete(c.cycles, shopID)
	}
	c.mu.Unlock()

	if !exists {
		return
	}

	cycle.cancel()
	<-cycle.done
	c.logger.Info().Int64("shopId", shopID).Msg("Stopped sync cycle")
}

// Stop stops every polling loop.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cycles := make([]*shopCycle, 0, len(c.cycles))
	for _, cycle := range c.cycles {
		cycles = append(cycles, cycle)
	}
	c.cycles = make(map[int64]*shopCycle)
	c.mu.Unlock()

	for _, cycle := range cycles {
		cycle.cancel()
		<-cycle.done
	}
}

// ForceRefresh triggers an immediate cycle for a shop. A request arriving
// while a cycle is in flight coalesces with it instead of queueing another.
func (c *Coordinator) ForceRefresh(shopID int64) error {
	c.mu.Lock()
	cycle, exists := c.cycles[shopID]
	c.mu.Unlock()

	if !exists {
		return fmt.Errorf("no sync cycle for shop %d", shopID)
	}

	if cycle.running.Load() {
		// The in-flight cycle already observes the current upstream state.
		return nil
	}

	select {
	case cycle.refresh <- struct{}{}:
	default:
	}
	return nil
}

// SetInterval updates the poll interval for a shop. The new interval takes
// effect after the current wait.
func (c *Coordinator) SetInterval(shopID int64, interval time.Duration) error {
	c.mu.Lock()
	cycle, exists := c.cycles[shopID]
	c.mu.Unlock()

	if !exists {
		return fmt.Errorf("no sync cycle for shop %d", shopID)
	}

	cycle.mu.Lock()
	cycle.interval = interval
	cycle.mu.Unlock()
	return nil
}

// SetThreshold updates the low-stock threshold for a shop. It applies from
// the next cycle.
func (c *Coordinator) SetThreshold(shopID int64, threshold int) error {
	c.mu.Lock()
	cycle, exists := c.cycles[shopID]
	c.mu.Unlock()

	if !exists {
		return fmt.Errorf("no sync cycle for shop %d", shopID)
	}

	cycle.mu.Lock()
	cycle.threshold = threshold
	cycle.mu.Unlock()
	return nil
}

// LastSnapshot returns the most recent successfully reconciled snapshot for
// a shop, or nil when no cycle has completed yet.
func (c *Coordinator) LastSnapshot(shopID int64) *domain.ShopSnapshot {
	c.mu.Lock()
	cycle, exists := c.cycles[shopID]
	c.mu.Unlock()

	if !exists {
		return nil
	}

	cycle.mu.Lock()
	defer cycle.mu.Unlock()
	if cycle.state.LastSnapshot == nil {
		return nil
	}
	return cycle.state.LastSnapshot
}

// run is the per-shop polling loop. The timer is re-created every iteration
// so interval changes apply on the next wait.
func (c *Coordinator) run(ctx context.Context, cycle *shopCycle) {
	defer close(cycle.done)

	c.runCycle(ctx, cycle)

	for {
		cycle.mu.Lock()
		interval := cycle.interval
		cycle.mu.Unlock()

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			c.runCycle(ctx, cycle)
		case <-cycle.refresh:
			timer.Stop()
			c.runCycle(ctx, cycle)
		}
	}
}

// runCycle executes one poll: build, reconcile, publish.
func (c *Coordinator) runCycle(ctx context.Context, cycle *shopCycle) {
	cycle.running.Store(true)
	defer cycle.running.Store(false)

	start := time.Now()
	snapshot, err := c.builder.Build(ctx, cycle.shopID)
	if err != nil {
		metrics.ObserveCycle(cycleResult(err), time.Since(start))
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error().
			Err(err).
			Int64("shopId", cycle.shopID).
			Msg("Sync cycle failed")
		if domain.IsReauthRequired(err) {
			c.markStatus(ctx, cycle.shopID, domain.StatusReauthRequired, time.Time{})
		}
		return
	}

	cycle.mu.Lock()
	threshold := cycle.threshold
	events := Reconcile(cycle.state, snapshot, threshold)
	cycle.mu.Unlock()

	c.bus.PublishSnapshot(snapshot)
	for i := range events {
		c.bus.PublishEvent(&events[i])
		metrics.EventsTotal.WithLabelValues(string(events[i].Type)).Inc()
	}

	metrics.ObserveCycle("ok", time.Since(start))
	c.markStatus(ctx, cycle.shopID, domain.StatusActive, snapshot.FetchedAt)

	c.logger.Info().
		Int64("shopId", cycle.shopID).
		Int("events", len(events)).
		Dur("took", time.Since(start)).
		Msg("Sync cycle completed")
}

// markStatus records the cycle outcome on the shop registration. A zero
// syncedAt leaves LastSyncedAt unchanged.
func (c *Coordinator) markStatus(ctx context.Context, shopID int64, status domain.RegistrationStatus, syncedAt time.Time) {
	reg, err := c.registrations.Get(ctx, shopID)
	if err != nil || reg == nil {
		return
	}
	if reg.Status == status && syncedAt.IsZero() {
		return
	}
	reg.Status = status
	if !syncedAt.IsZero() {
		reg.LastSyncedAt = syncedAt
	}
	if err := c.registrations.Save(ctx, reg); err != nil {
		c.logger.Error().Err(err).Int64("shopId", shopID).Msg("Failed to update shop registration")
	}
}

// cycleResult maps a cycle failure onto a metrics label.
func cycleResult(err error) string {
	var (
		authErr     *domain.AuthError
		rateErr     *domain.RateLimitError
		upstreamErr *domain.UpstreamError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.As(err, &upstreamErr):
		return "upstream"
	default:
		return "error"
	}
}
