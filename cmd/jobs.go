package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"astroline/internal/jobs"
	"astroline/internal/service"
	"astroline/pkg/lock"
	"astroline/pkg/logger"
	"astroline/pkg/notification"
	"astroline/pkg/routing"
	mysqlstore "astroline/pkg/store/mysql"
	"astroline/pkg/workload"
)

func (app *Application) initJobs() error {
	if app.routingService == nil || app.workloadService == nil {
		logger.WarnCtx(app.ctx, "Service layer not fully initialized yet, skipping background task registration")
		return nil
	}

	manager := jobs.NewManager(app.ctx)

	rebalanceInterval := time.Duration(app.config.Routing.RebalanceInterval) * time.Second
	ruleRefreshInterval := time.Duration(app.config.Routing.RuleRefreshSeconds) * time.Second
	directorySyncInterval := time.Duration(app.config.Routing.DirectorySync) * time.Second

	// Distributed locks keep replicas from rebalancing or persisting at
	// the same time. With Redis down they degrade to single-instance mode.
	var redisClient *redis.Client
	if app.redisClient != nil {
		redisClient = app.redisClient.GetClient()
	}

	rebalanceLock := lock.NewRedisDistributedLock(redisClient, "routing:rebalance-lock")
	snapshotLock := lock.NewRedisDistributedLock(redisClient, "routing:snapshot-lock")
	retentionLock := lock.NewRedisDistributedLock(redisClient, "cleanup:audit-retention-lock")

	notifier := notification.NewFeishuNotifier()

	manager.Register(newRebalanceJob(rebalanceInterval, app.workloadService, rebalanceLock, notifier))
	manager.Register(newDirectorySyncJob(directorySyncInterval, app.routingService))
	manager.Register(newRuleRefreshJob(ruleRefreshInterval, app.ruleCache, app.workloadStore, notifier))
	manager.Register(newSnapshotPersistJob(5*time.Minute, app.workloadService, snapshotLock))
	manager.Register(newAuditRetentionJob(24*time.Hour, app.mysqlRepo, retentionLock))

	app.jobsManager = manager
	return nil
}

// rebalanceJob periodically recomputes performance scores and throttle
// state across the pool.
type rebalanceJob struct {
	interval        time.Duration
	workloadService *service.WorkloadService
	distributedLock lock.DistributedLock
	notifier        *notification.FeishuNotifier
}

func newRebalanceJob(interval time.Duration, svc *service.WorkloadService, l lock.DistributedLock, n *notification.FeishuNotifier) jobs.Job {
	return &rebalanceJob{
		interval:        interval,
		workloadService: svc,
		distributedLock: l,
		notifier:        n,
	}
}

func (j *rebalanceJob) Name() string {
	return "workload-rebalance"
}

func (j *rebalanceJob) Interval() time.Duration {
	return j.interval
}

func (j *rebalanceJob) Run(ctx context.Context) error {
	if j.workloadService == nil {
		return fmt.Errorf("workload service not configured")
	}

	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running the rebalance pass, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	report, err := j.workloadService.Rebalance(ctx)
	if err != nil {
		return err
	}
	if len(report.Overloaded) > 0 || len(report.ThrottledChanged) > 0 {
		logger.InfoCtx(ctx, "rebalance pass: %d overloaded, %d throttle changes, %d performance updates",
			len(report.Overloaded), len(report.ThrottledChanged), len(report.PerformanceUpdated))
	}

	// Alert only when the pass actually throttled someone; a pool that
	// stays overloaded keeps its earlier alert.
	newlyThrottled := 0
	for _, change := range report.ThrottledChanged {
		if !change.IsAcceptingNew {
			newlyThrottled++
		}
	}
	if newlyThrottled > 0 && j.notifier != nil {
		pool := j.workloadService.ListWorkloads(ctx)
		alert := &notification.OverloadAlert{
			Overloaded:     report.Overloaded,
			ThrottledCount: newlyThrottled,
			PoolSize:       len(pool),
			DetectedAt:     report.RanAt,
		}
		if err := j.notifier.SendOverloadAlert(ctx, alert); err != nil {
			logger.WarnCtx(ctx, "failed to send overload alert: %v", err)
		}
	}
	return nil
}

// directorySyncJob mirrors astrologer directory presence into the local
// workload store. Every instance runs its own sync; no lock needed.
type directorySyncJob struct {
	interval       time.Duration
	routingService *service.RoutingService
}

func newDirectorySyncJob(interval time.Duration, svc *service.RoutingService) jobs.Job {
	return &directorySyncJob{interval: interval, routingService: svc}
}

func (j *directorySyncJob) Name() string {
	return "directory-sync"
}

func (j *directorySyncJob) Interval() time.Duration {
	return j.interval
}

func (j *directorySyncJob) Run(ctx context.Context) error {
	if j.routingService == nil {
		return fmt.Errorf("routing service not configured")
	}
	return j.routingService.SyncDirectory(ctx)
}

// ruleRefreshJob re-reads the rule tables so changes made by other
// instances reach this one. Per-instance cache, no lock needed. After
// each refresh the active override graph is scanned for cycles so a bad
// rule edit is surfaced before request traffic trips over it.
type ruleRefreshJob struct {
	interval time.Duration
	cache    *service.RuleCache
	store    *workload.Store
	notifier *notification.FeishuNotifier

	lastCycleSignature string
}

func newRuleRefreshJob(interval time.Duration, cache *service.RuleCache, store *workload.Store, n *notification.FeishuNotifier) jobs.Job {
	return &ruleRefreshJob{interval: interval, cache: cache, store: store, notifier: n}
}

func (j *ruleRefreshJob) Name() string {
	return "rule-cache-refresh"
}

func (j *ruleRefreshJob) Interval() time.Duration {
	return j.interval
}

func (j *ruleRefreshJob) Run(ctx context.Context) error {
	if j.cache == nil {
		return fmt.Errorf("rule cache not configured")
	}
	if err := j.cache.Refresh(ctx); err != nil {
		return err
	}

	j.scanForCycles(ctx)
	return nil
}

// scanForCycles resolves every active override origin and alerts when a
// cycle appears. Alerts fire once per distinct cycle set, not every
// refresh.
func (j *ruleRefreshJob) scanForCycles(ctx context.Context) {
	resolver := routing.NewResolver(nil, j.store, j.cache)

	var signature strings.Builder
	var firstCycle *routing.Resolution
	for _, rule := range j.cache.ActiveOverrideRules() {
		res := resolver.ResolveTarget(ctx, rule.OriginalAstrologerID)
		if !res.CycleDetected {
			continue
		}
		signature.WriteString(strings.Join(res.CyclePath, ">"))
		signature.WriteString(";")
		if firstCycle == nil {
			r := res
			firstCycle = &r
		}
	}

	sig := signature.String()
	if sig == j.lastCycleSignature {
		return
	}
	j.lastCycleSignature = sig

	if firstCycle != nil && j.notifier != nil {
		alert := &notification.CycleAlert{
			Path:       firstCycle.CyclePath,
			DetectedAt: time.Now(),
		}
		if err := j.notifier.SendCycleAlert(ctx, alert); err != nil {
			logger.WarnCtx(ctx, "failed to send cycle alert: %v", err)
		}
	}
}

// snapshotPersistJob writes periodic workload snapshots for dashboards.
type snapshotPersistJob struct {
	interval        time.Duration
	workloadService *service.WorkloadService
	distributedLock lock.DistributedLock
}

func newSnapshotPersistJob(interval time.Duration, svc *service.WorkloadService, l lock.DistributedLock) jobs.Job {
	return &snapshotPersistJob{
		interval:        interval,
		workloadService: svc,
		distributedLock: l,
	}
}

func (j *snapshotPersistJob) Name() string {
	return "workload-snapshot-persist"
}

func (j *snapshotPersistJob) Interval() time.Duration {
	return j.interval
}

func (j *snapshotPersistJob) Run(ctx context.Context) error {
	if j.workloadService == nil {
		return fmt.Errorf("workload service not configured")
	}

	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is persisting snapshots, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	return j.workloadService.PersistSnapshots(ctx)
}

// auditRetentionJob prunes old routing decisions and workload snapshots.
type auditRetentionJob struct {
	interval        time.Duration
	repo            *mysqlstore.Repository
	distributedLock lock.DistributedLock
}

func newAuditRetentionJob(interval time.Duration, repo *mysqlstore.Repository, l lock.DistributedLock) jobs.Job {
	return &auditRetentionJob{interval: interval, repo: repo, distributedLock: l}
}

func (j *auditRetentionJob) Name() string { return "audit-retention-cleanup" }

func (j *auditRetentionJob) Interval() time.Duration { return j.interval }

func (j *auditRetentionJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	retentionDays := 30
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	decisionRows, _ := j.repo.Decision.DeleteOlderThan(ctx, cutoff)
	if decisionRows > 0 {
		logger.InfoCtx(ctx, "cleaned up %d old routing decisions (older than %d days)", decisionRows, retentionDays)
	}

	snapshotRows, _ := j.repo.Snapshot.DeleteOlderThan(ctx, cutoff)
	if snapshotRows > 0 {
		logger.InfoCtx(ctx, "cleaned up %d old workload snapshots (older than %d days)", snapshotRows, retentionDays)
	}

	return nil
}
