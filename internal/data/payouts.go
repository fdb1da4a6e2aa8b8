package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kelmah-platform/kelmah-payout-service/db"
)

// Payout is the persistent record of a single disbursement request and its lifecycle.
type Payout struct {
	ID string `db:"id" json:"id"`
	// PayoutReference is the human-facing reference shared with providers for reconciliation.
	PayoutReference string `db:"payout_reference" json:"payout_reference"`
	UserID          string `db:"user_id" json:"user_id"`
	PaymentMethodID string `db:"payment_method_id" json:"payment_method_id"`
	// AmountMinor is the gross requested amount in currency minor units (pesewas for GHS).
	AmountMinor        int64  `db:"amount_minor" json:"amount_minor"`
	ProcessingFeeMinor int64  `db:"processing_fee_minor" json:"processing_fee_minor"`
	NetAmountMinor     int64  `db:"net_amount_minor" json:"net_amount_minor"`
	Currency           string `db:"currency" json:"currency"`

	Provider PayoutProvider `db:"provider" json:"provider"`
	// Status is the lifecycle status of the payout. Don't change it directly and use the model methods instead.
	Status        PayoutStatus        `db:"status" json:"status"`
	StatusHistory PayoutStatusHistory `db:"status_history" json:"status_history,omitempty"`
	Attempts      int                 `db:"attempts" json:"attempts"`
	LastError     *PayoutError        `db:"last_error" json:"last_error,omitempty"`

	ProviderReference *string `db:"provider_reference" json:"provider_reference,omitempty"`
	IdempotencyKey    string  `db:"idempotency_key" json:"idempotency_key"`
	// RetryOfID links an operator-initiated retry back to the terminal payout it re-drives.
	RetryOfID *string `db:"retry_of_id" json:"retry_of_id,omitempty"`

	NextEligibleAt time.Time  `db:"next_eligible_at" json:"next_eligible_at"`
	ClaimedAt      *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Amount returns the gross amount as a decimal in currency major units.
func (p *Payout) Amount() decimal.Decimal {
	return decimal.New(p.AmountMinor, -2)
}

// MarshalJSON adds the derived decimal amount fields so API consumers don't deal in minor units.
func (p Payout) MarshalJSON() ([]byte, error) {
	type payoutAlias Payout
	return json.Marshal(struct {
		payoutAlias
		Amount        string `json:"amount"`
		ProcessingFee string `json:"processing_fee"`
		NetAmount     string `json:"net_amount"`
	}{
		payoutAlias:   payoutAlias(p),
		Amount:        decimal.New(p.AmountMinor, -2).String(),
		ProcessingFee: decimal.New(p.ProcessingFeeMinor, -2).String(),
		NetAmount:     decimal.New(p.NetAmountMinor, -2).String(),
	})
}

// validate checks if the payout fields are valid and can be added to the DB.
func (p *Payout) validate() error {
	if p.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if p.PaymentMethodID == "" {
		return fmt.Errorf("payment method ID is required")
	}
	if p.AmountMinor <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if p.NetAmountMinor <= 0 {
		return fmt.Errorf("net amount must be positive")
	}
	if p.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if err := p.Provider.Validate(); err != nil {
		return fmt.Errorf("validating provider: %w", err)
	}
	if p.IdempotencyKey == "" {
		return fmt.Errorf("idempotency key is required")
	}
	if p.PayoutReference == "" {
		return fmt.Errorf("payout reference is required")
	}
	return nil
}

// PayoutError is the structured last_error captured from the most recent failed dispatch attempt.
type PayoutError struct {
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Value implements the driver.Valuer interface.
func (pe PayoutError) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(pe)
	if err != nil {
		return nil, fmt.Errorf("converting payout error to json: %w", err)
	}
	return jsonBytes, nil
}

// Scan implements the sql.Scanner interface.
func (pe *PayoutError) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	jsonBytes, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unexpected type %T for last_error column", src)
	}
	if err := json.Unmarshal(jsonBytes, pe); err != nil {
		return fmt.Errorf("unmarshaling last_error column: %w", err)
	}
	return nil
}

type PayoutStatusHistoryEntry struct {
	Status        PayoutStatus `json:"status"`
	StatusMessage string       `json:"status_message,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

type PayoutStatusHistory []PayoutStatusHistoryEntry

// Value implements the driver.Valuer interface.
func (psh PayoutStatusHistory) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(psh)
	if err != nil {
		return nil, fmt.Errorf("converting status history to json: %w", err)
	}
	return jsonBytes, nil
}

// Scan implements the sql.Scanner interface.
func (psh *PayoutStatusHistory) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	jsonBytes, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unexpected type %T for status_history column", src)
	}
	if err := json.Unmarshal(jsonBytes, psh); err != nil {
		return fmt.Errorf("unmarshaling status_history column: %w", err)
	}
	return nil
}

var (
	_ sql.Scanner   = (*PayoutStatusHistory)(nil)
	_ driver.Valuer = PayoutStatusHistory(nil)
	_ sql.Scanner   = (*PayoutError)(nil)
	_ driver.Valuer = PayoutError{}
)

const payoutColumnNames = `
	id,
	payout_reference,
	user_id,
	payment_method_id,
	amount_minor,
	processing_fee_minor,
	net_amount_minor,
	currency,
	provider,
	status,
	status_history,
	attempts,
	last_error,
	provider_reference,
	idempotency_key,
	retry_of_id,
	next_eligible_at,
	claimed_at,
	completed_at,
	created_at,
	updated_at`

type PayoutModel struct {
	dbConnectionPool db.DBConnectionPool
}

func NewPayoutModel(dbConnectionPool db.DBConnectionPool) *PayoutModel {
	return &PayoutModel{dbConnectionPool: dbConnectionPool}
}

func statusHistoryEntryJSON(status PayoutStatus, message string) []byte {
	entry := PayoutStatusHistory{{Status: status, StatusMessage: message, Timestamp: time.Now().UTC()}}
	// Static struct with no unmarshalable fields, marshaling cannot fail.
	jsonBytes, _ := json.Marshal(entry)
	return jsonBytes
}

// Insert adds a new Payout to the database. If a payout with the same idempotency key already exists, it returns the
// existing record untouched together with created=false.
func (m *PayoutModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, payout Payout) (*Payout, bool, error) {
	if err := payout.validate(); err != nil {
		return nil, false, fmt.Errorf("validating payout for insertion: %w", err)
	}

	query := `
		INSERT INTO payouts
			(payout_reference, user_id, payment_method_id, amount_minor, processing_fee_minor, net_amount_minor, currency, provider, idempotency_key, retry_of_id, status_history)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING
			` + payoutColumnNames

	var inserted Payout
	err := sqlExec.GetContext(ctx, &inserted, query,
		payout.PayoutReference,
		payout.UserID,
		payout.PaymentMethodID,
		payout.AmountMinor,
		payout.ProcessingFeeMinor,
		payout.NetAmountMinor,
		payout.Currency,
		payout.Provider,
		payout.IdempotencyKey,
		payout.RetryOfID,
		statusHistoryEntryJSON(QueuedPayoutStatus, "payout requested"),
	)
	if err == nil {
		return &inserted, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("inserting payout: %w", err)
	}

	// Conflict on the idempotency key: the logical request already exists.
	existing, err := m.GetByIdempotencyKey(ctx, sqlExec, payout.IdempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("fetching payout after idempotency conflict: %w", err)
	}
	return existing, false, nil
}

// Get gets a Payout from the database.
func (m *PayoutModel) Get(ctx context.Context, sqlExec db.SQLExecuter, payoutID string) (*Payout, error) {
	query := `
		SELECT
			` + payoutColumnNames + `
		FROM
			payouts
		WHERE
			id = $1
		`
	var payout Payout
	err := sqlExec.GetContext(ctx, &payout, query, payoutID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payout ID %s: %w", payoutID, err)
	}
	return &payout, nil
}

// GetByIdempotencyKey gets a Payout from the database by its idempotency key.
func (m *PayoutModel) GetByIdempotencyKey(ctx context.Context, sqlExec db.SQLExecuter, idempotencyKey string) (*Payout, error) {
	query := `
		SELECT
			` + payoutColumnNames + `
		FROM
			payouts
		WHERE
			idempotency_key = $1
		`
	var payout Payout
	err := sqlExec.GetContext(ctx, &payout, query, idempotencyKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payout with idempotency key %s: %w", idempotencyKey, err)
	}
	return &payout, nil
}

// Count returns the number of payouts matching the given query parameters.
func (m *PayoutModel) Count(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) (int, error) {
	var count int
	baseQuery := `SELECT COUNT(*) FROM payouts p`
	query, params := newPayoutQuery(baseQuery, queryParams, false, sqlExec)
	err := sqlExec.GetContext(ctx, &count, query, params...)
	if err != nil {
		return 0, fmt.Errorf("counting payouts: %w", err)
	}
	return count, nil
}

// GetAll returns all payouts matching the given query parameters.
func (m *PayoutModel) GetAll(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) ([]Payout, error) {
	payouts := []Payout{}
	baseQuery := `SELECT ` + payoutColumnNames + ` FROM payouts p`
	query, params := newPayoutQuery(baseQuery, queryParams, true, sqlExec)
	err := sqlExec.SelectContext(ctx, &payouts, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying payouts: %w", err)
	}
	return payouts, nil
}

// newPayoutQuery generates the query and parameters for payout search queries.
func newPayoutQuery(baseQuery string, queryParams *QueryParams, paginated bool, sqlExec db.SQLExecuter) (string, []interface{}) {
	qb := NewQueryBuilder(baseQuery)
	if queryParams.Filters[FilterKeyStatus] != nil {
		qb.AddCondition(FilterKeyStatus.Equals(), queryParams.Filters[FilterKeyStatus])
	}
	if queryParams.Filters[FilterKeyUserID] != nil {
		qb.AddCondition(FilterKeyUserID.Equals(), queryParams.Filters[FilterKeyUserID])
	}
	if queryParams.Filters[FilterKeyProvider] != nil {
		qb.AddCondition(FilterKeyProvider.Equals(), queryParams.Filters[FilterKeyProvider])
	}
	if queryParams.Filters[FilterKeyPayoutReference] != nil {
		qb.AddCondition(FilterKeyPayoutReference.Equals(), queryParams.Filters[FilterKeyPayoutReference])
	}
	if queryParams.Filters[FilterKeyCreatedAtAfter] != nil {
		qb.AddCondition("created_at >= ?", queryParams.Filters[FilterKeyCreatedAtAfter])
	}
	if queryParams.Filters[FilterKeyCreatedAtBefore] != nil {
		qb.AddCondition("created_at <= ?", queryParams.Filters[FilterKeyCreatedAtBefore])
	}
	if paginated {
		qb.AddSorting(queryParams.SortBy, queryParams.SortOrder, "p")
		qb.AddPagination(queryParams.Page, queryParams.PageLimit)
	}
	return qb.BuildAndRebind(sqlExec)
}

// ClaimBatch atomically transitions up to limit eligible QUEUED payouts to PROCESSING, oldest first, and returns the
// claimed records. Claiming and locking happen in a single statement so two concurrent batches can never claim the
// same payout; rows locked by a concurrent claim are skipped rather than waited on.
func (m *PayoutModel) ClaimBatch(ctx context.Context, sqlExec db.SQLExecuter, limit int) ([]*Payout, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("batch limit must be greater than 0")
	}

	query := `
		UPDATE payouts
		SET
			status = $1,
			claimed_at = NOW(),
			status_history = status_history || $2::JSONB
		WHERE id IN (
			SELECT id
			FROM payouts
			WHERE
				status = $3
				AND next_eligible_at <= NOW()
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING
			` + payoutColumnNames

	payouts := []*Payout{}
	err := sqlExec.SelectContext(ctx, &payouts, query,
		ProcessingPayoutStatus,
		statusHistoryEntryJSON(ProcessingPayoutStatus, "claimed by batch"),
		QueuedPayoutStatus,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming payout batch: %w", err)
	}
	return payouts, nil
}

// UpdateToCompleted transitions a PROCESSING payout to COMPLETED, recording the provider reference and counting the
// dispatch attempt. It only succeeds if the payout is still PROCESSING.
func (m *PayoutModel) UpdateToCompleted(ctx context.Context, sqlExec db.SQLExecuter, payoutID, providerReference string) (*Payout, error) {
	query := `
		UPDATE payouts
		SET
			status = $1,
			attempts = attempts + 1,
			provider_reference = $2,
			completed_at = NOW(),
			status_history = status_history || $3::JSONB
		WHERE
			id = $4
			AND status = $5
		RETURNING
			` + payoutColumnNames

	var payout Payout
	err := sqlExec.GetContext(ctx, &payout, query,
		CompletedPayoutStatus,
		providerReference,
		statusHistoryEntryJSON(CompletedPayoutStatus, "provider accepted disbursement"),
		payoutID,
		ProcessingPayoutStatus,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating payout %s to completed: %w", payoutID, err)
	}
	return &payout, nil
}

// UpdateToFailed transitions a PROCESSING payout to the terminal FAILED status, recording the error and counting the
// dispatch attempt.
func (m *PayoutModel) UpdateToFailed(ctx context.Context, sqlExec db.SQLExecuter, payoutID string, lastError PayoutError) (*Payout, error) {
	query := `
		UPDATE payouts
		SET
			status = $1,
			attempts = attempts + 1,
			last_error = $2,
			completed_at = NOW(),
			status_history = status_history || $3::JSONB
		WHERE
			id = $4
			AND status = $5
		RETURNING
			` + payoutColumnNames

	var payout Payout
	err := sqlExec.GetContext(ctx, &payout, query,
		FailedPayoutStatus,
		lastError,
		statusHistoryEntryJSON(FailedPayoutStatus, lastError.Message),
		payoutID,
		ProcessingPayoutStatus,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating payout %s to failed: %w", payoutID, err)
	}
	return &payout, nil
}

// RequeueForRetry pushes a PROCESSING payout back to QUEUED after a transient dispatch failure, counting the attempt
// and deferring eligibility by the given backoff delay.
func (m *PayoutModel) RequeueForRetry(ctx context.Context, sqlExec db.SQLExecuter, payoutID string, lastError PayoutError, backoff time.Duration) (*Payout, error) {
	query := `
		UPDATE payouts
		SET
			status = $1,
			attempts = attempts + 1,
			last_error = $2,
			claimed_at = NULL,
			next_eligible_at = NOW() + $3 * INTERVAL '1 second',
			status_history = status_history || $4::JSONB
		WHERE
			id = $5
			AND status = $6
		RETURNING
			` + payoutColumnNames

	var payout Payout
	err := sqlExec.GetContext(ctx, &payout, query,
		QueuedPayoutStatus,
		lastError,
		backoff.Seconds(),
		statusHistoryEntryJSON(QueuedPayoutStatus, fmt.Sprintf("requeued after transient error: %s", lastError.Message)),
		payoutID,
		ProcessingPayoutStatus,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("requeueing payout %s for retry: %w", payoutID, err)
	}
	return &payout, nil
}

// RequeueClaimed reverts claimed-but-unrecorded payouts back to QUEUED without counting an attempt. It is the
// compensating action when a batch aborts on a systemic failure, so no payout is stranded in PROCESSING.
func (m *PayoutModel) RequeueClaimed(ctx context.Context, sqlExec db.SQLExecuter, payoutIDs []string) (int64, error) {
	if len(payoutIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE payouts
		SET
			status = $1,
			claimed_at = NULL,
			status_history = status_history || $2::JSONB
		WHERE
			id = ANY($3)
			AND status = $4
		`
	result, err := sqlExec.ExecContext(ctx, query,
		QueuedPayoutStatus,
		statusHistoryEntryJSON(QueuedPayoutStatus, "requeued after batch abort"),
		pq.Array(payoutIDs),
		ProcessingPayoutStatus,
	)
	if err != nil {
		return 0, fmt.Errorf("requeueing claimed payouts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return rowsAffected, nil
}

// ResetStaleProcessing requeues payouts stuck in PROCESSING for longer than the stale threshold (crash recovery).
// Attempts are preserved so the retry budget still holds across restarts.
func (m *PayoutModel) ResetStaleProcessing(ctx context.Context, sqlExec db.SQLExecuter, staleThreshold time.Duration) (int64, error) {
	query := `
		UPDATE payouts
		SET
			status = $1,
			claimed_at = NULL,
			status_history = status_history || $2::JSONB
		WHERE
			status = $3
			AND claimed_at < NOW() - $4 * INTERVAL '1 second'
		`
	result, err := sqlExec.ExecContext(ctx, query,
		QueuedPayoutStatus,
		statusHistoryEntryJSON(QueuedPayoutStatus, "requeued by stale processing sweep"),
		ProcessingPayoutStatus,
		staleThreshold.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("resetting stale processing payouts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return rowsAffected, nil
}
