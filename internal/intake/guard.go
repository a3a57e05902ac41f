// Package intake turns payment gateway notifications into pending ledger
// transactions, exactly once per payment.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tesouraria/internal/amqp"
	"tesouraria/internal/core"
	"tesouraria/internal/gateway"
	"tesouraria/internal/log"
	"tesouraria/internal/resolver"
)

// Outcome is how a notification was handled. Every outcome is acknowledged
// to the gateway.
type Outcome string

const (
	// OutcomeRecorded means a new pending transaction was stored.
	OutcomeRecorded Outcome = "recorded"
	// OutcomeIgnored covers non-payment events and unusable payloads.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeNotApproved means the payment exists but is not approved.
	OutcomeNotApproved Outcome = "not_approved"
	// OutcomeDuplicateIgnored means the payment id was already recorded.
	OutcomeDuplicateIgnored Outcome = "duplicate_ignored"
	// OutcomeUpstreamFetchFailed means the payment lookup failed or timed out.
	OutcomeUpstreamFetchFailed Outcome = "upstream_fetch_failed"
	// OutcomeStoreFailed means the ledger rejected or failed the insert.
	OutcomeStoreFailed Outcome = "store_failed"
)

// DefaultFetchTimeout bounds a payment lookup when the guard is given none.
const DefaultFetchTimeout = 10 * time.Second

type (
	PaymentFetcher interface {
		FetchPayment(ctx context.Context, id string) (gateway.Payment, error)
	}

	Store interface {
		Roster(ctx context.Context) ([]core.RosterEntry, error)
		InsertTransactionIfAbsent(ctx context.Context, tx core.Transaction) (int64, bool, error)
	}

	EventPublisher interface {
		Publish(ctx context.Context, event *amqp.Event) error
	}
)

// Guard ingests gateway notifications.
type Guard struct {
	fetcher    PaymentFetcher
	store      Store
	publisher  EventPublisher
	logger     *log.Logger
	structured *log.StructuredLogger
	timeout    time.Duration
	now        func() time.Time
}

// NewGuard wires a guard. A nil fetcher means payment processing is not
// configured; a nil publisher disables events.
func NewGuard(fetcher PaymentFetcher, store Store, publisher EventPublisher, logger *log.Logger, timeout time.Duration) *Guard {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	logger = logger.WithComponent(log.ComponentIntake)
	return &Guard{
		fetcher:    fetcher,
		store:      store,
		publisher:  publisher,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
		timeout:    timeout,
		now:        time.Now,
	}
}

// Configured reports whether the guard can fetch payment details.
func (g *Guard) Configured() bool {
	return g.fetcher != nil
}

// Ingest handles one notification. The only error is core.ErrNotConfigured;
// every other failure is logged and reported as an Outcome.
func (g *Guard) Ingest(ctx context.Context, n Notification) (Outcome, error) {
	if g.fetcher == nil {
		g.logger.ErrorContext(ctx, "Payment notification received but gateway credentials are missing",
			log.FieldOperation, log.OpIngest)
		return "", core.ErrNotConfigured
	}

	if !n.IsPayment() {
		g.logger.DebugContext(ctx, "Ignoring non-payment notification", "type", n.Type, "action", n.Action)
		return g.done(ctx, OutcomeIgnored, log.NewFields()), nil
	}

	paymentID := n.PaymentID()
	if paymentID == "" {
		g.logger.WarnContext(ctx, "Payment notification without payment id", "type", n.Type, "action", n.Action)
		return g.done(ctx, OutcomeIgnored, log.NewFields()), nil
	}
	fields := log.NewFields().WithPayment(paymentID, "", "")

	payment, err := g.fetch(ctx, paymentID)
	if err != nil {
		g.structured.LogError(ctx, "Payment lookup failed", fmt.Errorf("%w: %v", core.ErrUpstreamFetch, err),
			log.ComponentIntake, log.OpIngest, fields)
		return g.done(ctx, OutcomeUpstreamFetchFailed, fields), nil
	}

	if payment.Status != gateway.StatusApproved {
		fields["status"] = payment.Status
		return g.done(ctx, OutcomeNotApproved, fields), nil
	}

	payer := payment.Payer.DisplayName()
	amount := core.NewMoney(payment.TransactionAmount)
	fields.WithPayment(paymentID, payer, amount.String())
	if err := amount.Validate(); err != nil {
		g.logger.WarnContext(ctx, "Approved payment with a non-positive amount", fields.ToSlice()...)
		return g.done(ctx, OutcomeIgnored, fields), nil
	}

	roster, err := g.store.Roster(ctx)
	if err != nil {
		g.structured.LogError(ctx, "Load roster failed", err, log.ComponentIntake, log.OpIngest, fields)
		return g.done(ctx, OutcomeStoreFailed, fields), nil
	}

	var memberID *int64
	match, linked := resolver.Resolve(payer, roster)
	if linked {
		id := match.Member.ID
		memberID = &id
		fields[log.FieldMemberID] = id
	}
	if len(roster) > 0 {
		fields[log.FieldScore] = match.Score
	}

	occurredAt := payment.SettledAt()
	if occurredAt.IsZero() {
		occurredAt = g.now()
	}

	externalID := paymentID
	tx := core.Transaction{
		ExternalID: &externalID,
		PayerName:  payer,
		MemberID:   memberID,
		Amount:     amount,
		OccurredAt: occurredAt,
		Status:     core.StatusPending,
		Origin:     core.OriginElectronic,
	}

	txID, inserted, err := g.store.InsertTransactionIfAbsent(ctx, tx)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			g.logger.WarnContext(ctx, "Payment rejected by ledger validation", append(fields.ToSlice(), log.FieldError, err.Error())...)
			return g.done(ctx, OutcomeIgnored, fields), nil
		}
		g.structured.LogError(ctx, "Store transaction failed", err, log.ComponentIntake, log.OpIngest, fields)
		return g.done(ctx, OutcomeStoreFailed, fields), nil
	}
	if !inserted {
		return g.done(ctx, OutcomeDuplicateIgnored, fields), nil
	}
	fields[log.FieldTransactionID] = txID

	g.publish(ctx, amqp.TransactionReceived{
		TransactionID: txID,
		ExternalID:    externalID,
		PayerName:     payer,
		MemberID:      memberID,
		Amount:        amount,
	})

	return g.done(ctx, OutcomeRecorded, fields), nil
}

func (g *Guard) fetch(ctx context.Context, id string) (gateway.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.fetcher.FetchPayment(ctx, id)
}

func (g *Guard) publish(ctx context.Context, payload amqp.TransactionReceived) {
	if g.publisher == nil {
		g.logger.DebugContext(ctx, "AMQP client not available, skipping event")
		return
	}
	event, err := amqp.NewEvent(amqp.EventTransactionReceived, payload)
	if err == nil {
		err = g.publisher.Publish(ctx, event)
	}
	if err != nil {
		// The transaction is stored; the event is best effort.
		g.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldTransactionID, payload.TransactionID, log.FieldError, err)
	}
}

func (g *Guard) done(ctx context.Context, outcome Outcome, fields log.LogFields) Outcome {
	g.structured.LogIngest(ctx, string(outcome), fields)
	return outcome
}
