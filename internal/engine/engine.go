package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/kelmah-platform/kelmah-payout-service/db"
	"github.com/kelmah-platform/kelmah-payout-service/internal/accounts"
	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
	"github.com/kelmah-platform/kelmah-payout-service/internal/monitor"
	"github.com/kelmah-platform/kelmah-payout-service/internal/provider"
)

// PayoutStore is the persistence surface the engine drives. *data.PayoutModel satisfies it.
type PayoutStore interface {
	Insert(ctx context.Context, sqlExec db.SQLExecuter, payout data.Payout) (*data.Payout, bool, error)
	Get(ctx context.Context, sqlExec db.SQLExecuter, payoutID string) (*data.Payout, error)
	ClaimBatch(ctx context.Context, sqlExec db.SQLExecuter, limit int) ([]*data.Payout, error)
	UpdateToCompleted(ctx context.Context, sqlExec db.SQLExecuter, payoutID, providerReference string) (*data.Payout, error)
	UpdateToFailed(ctx context.Context, sqlExec db.SQLExecuter, payoutID string, lastError data.PayoutError) (*data.Payout, error)
	RequeueForRetry(ctx context.Context, sqlExec db.SQLExecuter, payoutID string, lastError data.PayoutError, backoff time.Duration) (*data.Payout, error)
	RequeueClaimed(ctx context.Context, sqlExec db.SQLExecuter, payoutIDs []string) (int64, error)
	ResetStaleProcessing(ctx context.Context, sqlExec db.SQLExecuter, staleThreshold time.Duration) (int64, error)
}

var _ PayoutStore = (*data.PayoutModel)(nil)

// DispatcherRegistry resolves the dispatcher for a payout's provider. *provider.Registry satisfies it.
type DispatcherRegistry interface {
	ForProvider(p data.PayoutProvider) (provider.Dispatcher, error)
}

var _ DispatcherRegistry = (*provider.Registry)(nil)

// Config carries the engine tunables. Zero values are replaced by the defaults below in NewEngine.
type Config struct {
	// MaxAttempts is the dispatch attempt budget per payout, counting the first attempt.
	MaxAttempts int
	// BackoffBase is the delay before the first retry; retry N waits BackoffBase * 2^(N-1).
	BackoffBase time.Duration
	// StaleProcessingThreshold is how long a payout may sit in PROCESSING before the sweep requeues it.
	StaleProcessingThreshold time.Duration
	DefaultBatchLimit        int
	MaxBatchLimit            int
	// DispatchTimeout bounds each individual provider call.
	DispatchTimeout time.Duration
	// IdempotencyWindow buckets nonce-less enqueue requests for deduplication.
	IdempotencyWindow time.Duration
}

const (
	DefaultMaxAttempts              = 5
	DefaultBackoffBase              = 30 * time.Second
	DefaultStaleProcessingThreshold = 10 * time.Minute
	DefaultBatchLimit               = 25
	DefaultMaxBatchLimit            = 100
)

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.StaleProcessingThreshold <= 0 {
		c.StaleProcessingThreshold = DefaultStaleProcessingThreshold
	}
	if c.DefaultBatchLimit <= 0 {
		c.DefaultBatchLimit = DefaultBatchLimit
	}
	if c.MaxBatchLimit <= 0 {
		c.MaxBatchLimit = DefaultMaxBatchLimit
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = provider.DefaultTimeoutSeconds * time.Second
	}
	if c.IdempotencyWindow <= 0 {
		c.IdempotencyWindow = DefaultIdempotencyWindow
	}
	return c
}

// Engine coordinates enqueueing, claiming and dispatching payouts. All state lives in the database; the engine itself
// is stateless and safe for concurrent use.
type Engine struct {
	dbConnectionPool db.DBConnectionPool
	store            PayoutStore
	registry         DispatcherRegistry
	accountsClient   accounts.ClientInterface
	monitorService   monitor.MonitorServiceInterface
	config           Config
}

func NewEngine(dbConnectionPool db.DBConnectionPool, store PayoutStore, registry DispatcherRegistry, accountsClient accounts.ClientInterface, monitorService monitor.MonitorServiceInterface, config Config) (*Engine, error) {
	if dbConnectionPool == nil {
		return nil, fmt.Errorf("db connection pool is required")
	}
	if store == nil {
		return nil, fmt.Errorf("payout store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("dispatcher registry is required")
	}
	if accountsClient == nil {
		return nil, fmt.Errorf("accounts client is required")
	}
	if monitorService == nil {
		monitorService = &monitor.NoopMonitorService{}
	}
	return &Engine{
		dbConnectionPool: dbConnectionPool,
		store:            store,
		registry:         registry,
		accountsClient:   accountsClient,
		monitorService:   monitorService,
		config:           config.withDefaults(),
	}, nil
}

// ValidationError reports an enqueue or batch request the engine rejected before touching the database.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ErrPayoutNotRetryable is returned by RetryFailed when the target payout is not in a terminal FAILED status.
var ErrPayoutNotRetryable = errors.New("payout is not in a retryable status")

// EnqueueRequest is a request to queue a new payout.
type EnqueueRequest struct {
	UserID          string
	PaymentMethodID string
	// Amount is the gross amount in currency major units.
	Amount   decimal.Decimal
	Currency string
	Provider string
	// Nonce is an optional client-supplied idempotency token. Without it requests deduplicate per idempotency window.
	Nonce string
}

func (r EnqueueRequest) validate() (data.PayoutProvider, int64, error) {
	if strings.TrimSpace(r.UserID) == "" {
		return "", 0, &ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if strings.TrimSpace(r.PaymentMethodID) == "" {
		return "", 0, &ValidationError{Field: "payment_method_id", Message: "payment method ID is required"}
	}
	if !r.Amount.IsPositive() {
		return "", 0, &ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}
	amountMinor := r.Amount.Shift(2)
	if !amountMinor.IsInteger() {
		return "", 0, &ValidationError{Field: "amount", Message: "amount cannot have more than 2 decimal places"}
	}
	currency := strings.ToUpper(strings.TrimSpace(r.Currency))
	if len(currency) != 3 {
		return "", 0, &ValidationError{Field: "currency", Message: "currency must be a 3-letter ISO code"}
	}
	payoutProvider, err := data.ToPayoutProvider(r.Provider)
	if err != nil {
		return "", 0, &ValidationError{Field: "provider", Message: err.Error()}
	}
	return payoutProvider, amountMinor.IntPart(), nil
}

// Enqueue validates the request, resolves the payment method and inserts the payout in QUEUED status. Duplicate
// requests (same idempotency key) return the existing payout with created=false and never insert a second row.
func (e *Engine) Enqueue(ctx context.Context, req EnqueueRequest) (*data.Payout, bool, error) {
	payoutProvider, amountMinor, err := req.validate()
	if err != nil {
		return nil, false, err
	}

	method, err := e.accountsClient.ResolvePaymentMethod(ctx, req.UserID, req.PaymentMethodID)
	if err != nil {
		if errors.Is(err, accounts.ErrPaymentMethodNotFound) {
			return nil, false, &ValidationError{Field: "payment_method_id", Message: "payment method not found for user"}
		}
		return nil, false, fmt.Errorf("resolving payment method %s for user %s: %w", req.PaymentMethodID, req.UserID, err)
	}
	if method.Provider != "" && method.Provider != payoutProvider {
		return nil, false, &ValidationError{Field: "provider", Message: fmt.Sprintf("payment method belongs to provider %s, not %s", method.Provider, payoutProvider)}
	}

	now := time.Now().UTC()
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	feeMinor := calculateFeeMinor(amountMinor, payoutProvider)
	payout := data.Payout{
		PayoutReference:    newPayoutReference(now),
		UserID:             req.UserID,
		PaymentMethodID:    req.PaymentMethodID,
		AmountMinor:        amountMinor,
		ProcessingFeeMinor: feeMinor,
		NetAmountMinor:     amountMinor - feeMinor,
		Currency:           currency,
		Provider:           payoutProvider,
		IdempotencyKey:     ComputeIdempotencyKey(req.UserID, req.PaymentMethodID, amountMinor, currency, payoutProvider, req.Nonce, e.config.IdempotencyWindow, now),
	}

	inserted, created, err := e.store.Insert(ctx, e.dbConnectionPool, payout)
	if err != nil {
		return nil, false, fmt.Errorf("inserting payout: %w", err)
	}

	if created {
		e.monitorService.MonitorEnqueuedPayout(string(payoutProvider))
		log.WithContext(ctx).WithFields(log.Fields{
			"payout_id":        inserted.ID,
			"payout_reference": inserted.PayoutReference,
			"provider":         inserted.Provider,
			"amount_minor":     inserted.AmountMinor,
		}).Info("payout enqueued")
	} else {
		log.WithContext(ctx).WithFields(log.Fields{
			"payout_id": inserted.ID,
			"provider":  inserted.Provider,
		}).Info("duplicate enqueue request, returning existing payout")
	}
	return inserted, created, nil
}

// BatchResult summarizes one ProcessBatch run.
type BatchResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Requeued counts transient failures pushed back to QUEUED for a later attempt.
	Requeued int `json:"requeued"`
}

// ProcessBatch claims up to limit eligible payouts and dispatches them concurrently, recording each outcome
// individually. Provider failures never abort the batch; a failure to record an outcome requeues the unrecorded
// payouts and surfaces the error alongside the partial result.
func (e *Engine) ProcessBatch(ctx context.Context, limit int) (BatchResult, error) {
	if limit <= 0 {
		limit = e.config.DefaultBatchLimit
	}
	if limit > e.config.MaxBatchLimit {
		return BatchResult{}, &ValidationError{Field: "limit", Message: fmt.Sprintf("limit cannot exceed %d", e.config.MaxBatchLimit)}
	}

	claimed, err := e.store.ClaimBatch(ctx, e.dbConnectionPool, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("claiming payout batch: %w", err)
	}
	if len(claimed) == 0 {
		return BatchResult{}, nil
	}

	log.WithContext(ctx).WithField("claimed", len(claimed)).Info("processing payout batch")

	var (
		mu            sync.Mutex
		result        BatchResult
		storeErrs     []error
		unrecordedIDs []string
	)
	result.Processed = len(claimed)

	jobs := make(chan *data.Payout)
	var wg sync.WaitGroup
	numWorkers := len(claimed)
	if numWorkers > limit {
		numWorkers = limit
	}
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for payout := range jobs {
				outcome, storeErr := e.dispatchOne(ctx, payout)
				mu.Lock()
				switch outcome {
				case dispatchOutcomeCompleted:
					result.Succeeded++
				case dispatchOutcomeFailed:
					result.Failed++
				case dispatchOutcomeRequeued:
					result.Requeued++
				}
				if storeErr != nil {
					storeErrs = append(storeErrs, storeErr)
					unrecordedIDs = append(unrecordedIDs, payout.ID)
				}
				mu.Unlock()
			}
		}()
	}
	for _, payout := range claimed {
		jobs <- payout
	}
	close(jobs)
	wg.Wait()

	e.monitorService.MonitorBatch(result.Processed, result.Succeeded, result.Failed)

	if len(storeErrs) > 0 {
		// Outcome recording failed: release the affected payouts so they are not stranded in PROCESSING. The
		// compensation uses a fresh context in case the batch context is already dead.
		requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if _, requeueErr := e.store.RequeueClaimed(requeueCtx, e.dbConnectionPool, unrecordedIDs); requeueErr != nil {
			log.WithContext(ctx).WithError(requeueErr).WithField("payout_ids", unrecordedIDs).
				Error("requeueing unrecorded payouts failed, stale sweep will recover them")
		}
		return result, fmt.Errorf("recording batch outcomes: %w", errors.Join(storeErrs...))
	}
	return result, nil
}

type dispatchOutcome int

const (
	dispatchOutcomeNone dispatchOutcome = iota
	dispatchOutcomeCompleted
	dispatchOutcomeFailed
	dispatchOutcomeRequeued
)

// dispatchOne sends a single claimed payout to its provider and records the outcome. The returned error is non-nil
// only for store failures; provider failures are absorbed into the FAILED/requeue outcome.
func (e *Engine) dispatchOne(ctx context.Context, payout *data.Payout) (dispatchOutcome, error) {
	logger := log.WithContext(ctx).WithFields(log.Fields{
		"payout_id":        payout.ID,
		"payout_reference": payout.PayoutReference,
		"provider":         payout.Provider,
		"attempt":          payout.Attempts + 1,
	})

	providerRef, dispatchErr := e.dispatch(ctx, payout)
	if dispatchErr == nil {
		e.monitorService.MonitorDispatch(string(payout.Provider), "success", 0)
		if _, err := e.store.UpdateToCompleted(ctx, e.dbConnectionPool, payout.ID, providerRef); err != nil {
			logger.WithError(err).Error("recording payout completion")
			return dispatchOutcomeNone, fmt.Errorf("recording completion for payout %s: %w", payout.ID, err)
		}
		logger.WithField("provider_reference", providerRef).Info("payout completed")
		return dispatchOutcomeCompleted, nil
	}

	payoutErr := data.PayoutError{Message: dispatchErr.Error(), Timestamp: time.Now().UTC()}
	var classified *provider.DispatchError
	if errors.As(dispatchErr, &classified) {
		payoutErr.Code = classified.Code
		payoutErr.Message = classified.Message
	}

	newAttempts := payout.Attempts + 1
	if !provider.IsRetryable(dispatchErr) || newAttempts >= e.config.MaxAttempts {
		e.monitorService.MonitorDispatch(string(payout.Provider), "failure", 0)
		if _, err := e.store.UpdateToFailed(ctx, e.dbConnectionPool, payout.ID, payoutErr); err != nil {
			logger.WithError(err).Error("recording payout failure")
			return dispatchOutcomeNone, fmt.Errorf("recording failure for payout %s: %w", payout.ID, err)
		}
		logger.WithError(dispatchErr).Warn("payout failed terminally")
		return dispatchOutcomeFailed, nil
	}

	backoff := e.backoffDelay(newAttempts)
	e.monitorService.MonitorDispatch(string(payout.Provider), "requeued", 0)
	if _, err := e.store.RequeueForRetry(ctx, e.dbConnectionPool, payout.ID, payoutErr, backoff); err != nil {
		logger.WithError(err).Error("requeueing payout after transient error")
		return dispatchOutcomeNone, fmt.Errorf("requeueing payout %s: %w", payout.ID, err)
	}
	logger.WithError(dispatchErr).WithField("backoff", backoff).Info("payout requeued after transient error")
	return dispatchOutcomeRequeued, nil
}

// dispatch resolves the dispatcher and payment method and makes the single bounded provider call.
func (e *Engine) dispatch(ctx context.Context, payout *data.Payout) (string, error) {
	dispatcher, err := e.registry.ForProvider(payout.Provider)
	if err != nil {
		return "", provider.NewPermanentError("", fmt.Sprintf("no dispatcher configured for provider %s", payout.Provider))
	}

	method, err := e.accountsClient.ResolvePaymentMethod(ctx, payout.UserID, payout.PaymentMethodID)
	if err != nil {
		if errors.Is(err, accounts.ErrPaymentMethodNotFound) {
			return "", provider.NewPermanentError("", "payment method no longer exists")
		}
		return "", provider.NewTransientError("", fmt.Sprintf("resolving payment method: %s", err))
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, e.config.DispatchTimeout)
	defer cancel()

	started := time.Now()
	providerRef, err := dispatcher.Dispatch(dispatchCtx, provider.DispatchRequest{
		PayoutID:    payout.ID,
		Reference:   payout.PayoutReference,
		AmountMinor: payout.NetAmountMinor,
		Currency:    payout.Currency,
		Method:      *method,
	})
	e.monitorService.MonitorDispatch(string(payout.Provider), "attempt", time.Since(started))
	return providerRef, err
}

// backoffDelay returns the delay before the attempts-th retry: BackoffBase * 2^(attempts-1), capped to avoid shift
// overflow on runaway attempt counts.
func (e *Engine) backoffDelay(attempts int) time.Duration {
	shift := attempts - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 20 {
		shift = 20
	}
	return e.config.BackoffBase * time.Duration(1<<shift)
}

// SweepStale requeues payouts stuck in PROCESSING past the stale threshold, recovering claims orphaned by a crash.
func (e *Engine) SweepStale(ctx context.Context) (int64, error) {
	recovered, err := e.store.ResetStaleProcessing(ctx, e.dbConnectionPool, e.config.StaleProcessingThreshold)
	if err != nil {
		return 0, fmt.Errorf("sweeping stale processing payouts: %w", err)
	}
	if recovered > 0 {
		log.WithContext(ctx).WithField("recovered", recovered).Warn("requeued stale processing payouts")
	}
	return recovered, nil
}

// RetryFailed queues a fresh payout re-driving a terminally FAILED one. The original row is immutable history; the
// new row carries its own attempt budget and links back through retry_of_id.
func (e *Engine) RetryFailed(ctx context.Context, payoutID string) (*data.Payout, error) {
	return db.RunInTransactionWithResult(ctx, e.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Payout, error) {
		original, err := e.store.Get(ctx, dbTx, payoutID)
		if err != nil {
			return nil, fmt.Errorf("getting payout %s: %w", payoutID, err)
		}
		if original.Status != data.FailedPayoutStatus {
			return nil, fmt.Errorf("payout %s is %s: %w", payoutID, original.Status, ErrPayoutNotRetryable)
		}

		now := time.Now().UTC()
		retry := data.Payout{
			PayoutReference:    newPayoutReference(now),
			UserID:             original.UserID,
			PaymentMethodID:    original.PaymentMethodID,
			AmountMinor:        original.AmountMinor,
			ProcessingFeeMinor: original.ProcessingFeeMinor,
			NetAmountMinor:     original.NetAmountMinor,
			Currency:           original.Currency,
			Provider:           original.Provider,
			RetryOfID:          &original.ID,
			// A fresh nonce keyed to this retry keeps it from colliding with the original or a prior retry.
			IdempotencyKey: ComputeIdempotencyKey(original.UserID, original.PaymentMethodID, original.AmountMinor, original.Currency, original.Provider, fmt.Sprintf("retry-of-%s-%d", original.ID, now.UnixNano()), e.config.IdempotencyWindow, now),
		}
		inserted, _, err := e.store.Insert(ctx, dbTx, retry)
		if err != nil {
			return nil, fmt.Errorf("inserting retry payout: %w", err)
		}

		log.WithContext(ctx).WithFields(log.Fields{
			"payout_id":          inserted.ID,
			"retry_of_payout_id": original.ID,
		}).Info("queued retry for failed payout")
		return inserted, nil
	})
}
