package presence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const DefaultTickTimeout = 50 * time.Second

var tracer = otel.Tracer(instrumentationName)

type Options struct {
	Connections ConnectionSource
	Resolver    ChannelResolver
	Sessions    SessionStore
	Users       UserStore
	Broadcaster RoomBroadcaster
	Logger      *zap.Logger

	// TickTimeout bounds a single tick. Zero means DefaultTickTimeout.
	TickTimeout time.Duration
	// Zero thresholds fall back to domain.StaleThreshold and domain.InactivityThreshold.
	StaleThreshold      time.Duration
	InactivityThreshold time.Duration
	Now                 func() time.Time
}

// TickReport summarizes one executed reconciliation tick.
type TickReport struct {
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	Refreshed         int           `json:"refreshed"`
	Recovered         int           `json:"recovered"`
	Skipped           int           `json:"skipped"`
	ZombiesRemoved    int           `json:"zombies_removed"`
	WentOffline       int           `json:"went_offline"`
	WentInactive      int           `json:"went_inactive"`
	BroadcastFailures int           `json:"broadcast_failures"`
	Err               string        `json:"error,omitempty"`
}

// Reconciler keeps persisted sessions and user statuses in line with the
// connections the transport reports, and tells rooms about users who left
// or went inactive.
//
// Read-then-write sequences carry no concurrency token: a user who becomes
// active between a scan and the following update can be overwritten by
// that update. The broadcast always matches what was written.
type Reconciler struct {
	connections ConnectionSource
	resolver    ChannelResolver
	sessions    SessionStore
	users       UserStore
	broadcaster RoomBroadcaster
	log         *zap.Logger
	metrics     *metrics

	tickTimeout         time.Duration
	staleThreshold      time.Duration
	inactivityThreshold time.Duration
	now                 func() time.Time

	running atomic.Bool

	mu   sync.RWMutex
	last *TickReport
}

func NewReconciler(opts Options) *Reconciler {
	r := &Reconciler{
		connections:         opts.Connections,
		resolver:            opts.Resolver,
		sessions:            opts.Sessions,
		users:               opts.Users,
		broadcaster:         opts.Broadcaster,
		log:                 opts.Logger,
		metrics:             newMetrics(),
		tickTimeout:         opts.TickTimeout,
		staleThreshold:      opts.StaleThreshold,
		inactivityThreshold: opts.InactivityThreshold,
		now:                 opts.Now,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.tickTimeout <= 0 {
		r.tickTimeout = DefaultTickTimeout
	}
	if r.staleThreshold <= 0 {
		r.staleThreshold = domain.StaleThreshold
	}
	if r.inactivityThreshold <= 0 {
		r.inactivityThreshold = domain.InactivityThreshold
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r
}

// RunTick executes one reconciliation tick. A call made while another tick
// is still running returns immediately without doing anything. Errors are
// logged and never returned, so the next scheduled tick always runs.
func (r *Reconciler) RunTick(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.metrics.tick(ctx, "skipped")
		r.log.Debug("presence check still running, dropping tick")
		return
	}
	defer r.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, r.tickTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "presence.tick")
	defer span.End()

	report, err := r.execute(ctx)
	if err != nil {
		report.Err = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "presence tick failed")
		r.metrics.tick(ctx, "failed")
		r.log.Error("presence check aborted", zap.Error(err), zap.Duration("elapsed", report.Duration))
	} else {
		r.metrics.tick(ctx, "completed")
		r.logReport(report)
	}
	span.SetAttributes(
		attribute.Int("presence.recovered", report.Recovered),
		attribute.Int("presence.zombies_removed", report.ZombiesRemoved),
		attribute.Int("presence.went_offline", report.WentOffline),
		attribute.Int("presence.went_inactive", report.WentInactive),
	)
	r.metrics.record(ctx, report)

	r.mu.Lock()
	r.last = &report
	r.mu.Unlock()
}

// LastReport returns the report of the most recent executed tick, or nil.
func (r *Reconciler) LastReport() *TickReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	report := *r.last
	return &report
}

func (r *Reconciler) execute(ctx context.Context) (report TickReport, err error) {
	now := r.now()
	report.StartedAt = now
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			err = errors.WithStack(fmt.Errorf("panic: %v", p))
		}
		report.Duration = time.Since(start)
	}()

	r.log.Debug("checking user presence")

	if err = r.updatePresence(ctx, now, &report); err != nil {
		return report, errors.Wrap(err, "update presence")
	}
	if err = r.removeZombies(ctx, now, &report); err != nil {
		return report, errors.Wrap(err, "remove zombies")
	}
	if err = r.removeOfflineUsers(ctx, &report); err != nil {
		return report, errors.Wrap(err, "remove offline users")
	}
	if err = r.checkUserStatus(ctx, now, &report); err != nil {
		return report, errors.Wrap(err, "check user status")
	}
	return report, nil
}

// updatePresence refreshes the session of every live connection and recreates
// sessions the store lost track of.
func (r *Reconciler) updatePresence(ctx context.Context, now time.Time, report *TickReport) error {
	conns, err := r.connections.ListAliveConnections(ctx)
	if err != nil {
		return err
	}

	for _, conn := range conns {
		if !conn.Alive {
			continue
		}

		session, err := r.sessions.GetByID(ctx, conn.ID)
		if err != nil {
			return err
		}

		if session != nil {
			session.LastActivity = now
			if err := r.sessions.Update(ctx, session); err != nil {
				return err
			}
			report.Refreshed++
			continue
		}

		recovered, err := r.recoverSession(ctx, now, conn)
		if err != nil {
			return err
		}
		if recovered {
			report.Recovered++
		} else {
			report.Skipped++
		}
	}
	return nil
}

func (r *Reconciler) recoverSession(ctx context.Context, now time.Time, conn domain.Connection) (bool, error) {
	identity, err := r.resolver.ResolveChannelAndUser(conn.Metadata)
	if err != nil {
		r.log.Debug("connection not resolvable, not tracking",
			zap.String("connection_id", conn.ID), zap.Error(err))
		return false, nil
	}
	if !strings.EqualFold(identity.Channel, domain.ChatChannel) {
		return false, nil
	}

	r.log.Info("connection exists but isn't tracked", zap.String("connection_id", conn.ID))

	user, err := r.users.GetByID(ctx, identity.UserID)
	if err != nil {
		return false, err
	}
	if user == nil {
		r.log.Info("unable to find user for connection",
			zap.String("connection_id", conn.ID), zap.String("user_id", identity.UserID))
		return false, nil
	}

	session := &domain.ClientSession{
		ID:                 conn.ID,
		UserID:             user.ID,
		UserAgent:          identity.UserAgent,
		LastActivity:       now,
		LastClientActivity: user.LastActivity,
	}
	if err := r.sessions.Insert(ctx, session); err != nil {
		if errors.Is(err, domain.ErrSessionExists) {
			// a concurrent connect created it first
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// removeZombies deletes every session that has not been refreshed within the
// staleness threshold. Liveness is inferred from refreshes alone.
func (r *Reconciler) removeZombies(ctx context.Context, now time.Time, report *TickReport) error {
	zombies, err := r.sessions.ScanStaleOlderThan(ctx, domain.Cutoff(now, r.staleThreshold))
	if err != nil {
		return err
	}

	for i := range zombies {
		r.log.Info("removed zombie connection", zap.String("connection_id", zombies[i].ID))
		if err := r.sessions.Delete(ctx, &zombies[i]); err != nil {
			return err
		}
		report.ZombiesRemoved++
	}
	return nil
}

// removeOfflineUsers marks Online and Inactive users without any session as
// Offline and tells each of their rooms they left.
func (r *Reconciler) removeOfflineUsers(ctx context.Context, report *TickReport) error {
	users, err := r.users.ScanOnline(ctx)
	if err != nil {
		return err
	}

	var offline []domain.User
	for i := range users {
		clients, err := r.sessions.CountByUser(ctx, users[i].ID)
		if err != nil {
			return err
		}
		if clients > 0 {
			continue
		}

		r.log.Info("user has no clients, marking as offline", zap.String("user_id", users[i].ID))
		users[i].Status = domain.StatusOffline
		if err := r.users.Update(ctx, &users[i]); err != nil {
			return err
		}
		offline = append(offline, users[i])
	}
	report.WentOffline = len(offline)

	if len(offline) > 0 {
		report.BroadcastFailures += dispatchRoomGroups(ctx, r.log, GroupByRoom(offline), func(ctx context.Context, g domain.RoomGroup) error {
			return leaveEach(ctx, r.broadcaster, g.Room, g.Users)
		})
	}
	return nil
}

// checkUserStatus marks Online users idle past the inactivity threshold as
// Inactive and sends each room one batched notice.
func (r *Reconciler) checkUserStatus(ctx context.Context, now time.Time, report *TickReport) error {
	users, err := r.users.ScanOnlineInactiveSince(ctx, domain.Cutoff(now, r.inactivityThreshold))
	if err != nil {
		return err
	}

	var inactive []domain.User
	for i := range users {
		users[i].Status = domain.StatusInactive
		if err := r.users.Update(ctx, &users[i]); err != nil {
			return err
		}
		inactive = append(inactive, users[i])
	}
	report.WentInactive = len(inactive)

	if len(inactive) > 0 {
		report.BroadcastFailures += dispatchRoomGroups(ctx, r.log, GroupByRoom(inactive), func(ctx context.Context, g domain.RoomGroup) error {
			return r.broadcaster.MarkInactive(ctx, g.Room, g.Users)
		})
	}
	return nil
}

func (r *Reconciler) logReport(report TickReport) {
	fields := []zap.Field{
		zap.Int("refreshed", report.Refreshed),
		zap.Int("recovered", report.Recovered),
		zap.Int("zombies_removed", report.ZombiesRemoved),
		zap.Int("went_offline", report.WentOffline),
		zap.Int("went_inactive", report.WentInactive),
		zap.Int("broadcast_failures", report.BroadcastFailures),
		zap.Duration("elapsed", report.Duration),
	}
	if report.Recovered+report.ZombiesRemoved+report.WentOffline+report.WentInactive > 0 {
		r.log.Info("presence check completed", fields...)
		return
	}
	r.log.Debug("presence check completed", fields...)
}
