package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"arcadeswap-api/internal/lock"
	"arcadeswap-api/internal/model"
	"arcadeswap-api/internal/repository"
	"arcadeswap-api/pkg/uid"

	"go.opentelemetry.io/otel/attribute"
)

// TradeServiceConfig tunes the proposal pair lock.
type TradeServiceConfig struct {
	LockTTL  time.Duration
	LockWait time.Duration
}

// TradeService exposes proposing, answering and listing trades.
type TradeService struct {
	store      repository.Store
	locker     lock.Locker
	validator  *ProposalValidator
	settlement *SettlementExecutor
	config     TradeServiceConfig
	now        func() time.Time
}

// NewTradeService creates a trade service. locker may be nil when a single
// instance runs against SQLite, which already serializes units of work.
func NewTradeService(store repository.Store, locker lock.Locker, cfg TradeServiceConfig) *TradeService {
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.LockWait == 0 {
		cfg.LockWait = 2 * time.Second
	}
	return &TradeService{
		store:      store,
		locker:     locker,
		validator:  NewProposalValidator(),
		settlement: NewSettlementExecutor(NewLedgerRecorder()),
		config:     cfg,
		now:        time.Now,
	}
}

// Outcome describes the result of Respond.
type Outcome struct {
	TradeID       string             `json:"trade_id"`
	Decision      model.Decision     `json:"decision"`
	Status        string             `json:"status"`
	TransactionID string             `json:"transaction_id,omitempty"`
	Transaction   *model.Transaction `json:"transaction,omitempty"`
}

// Outcome statuses. Removed trades no longer exist.
const (
	OutcomeAccepted = "accepted"
	OutcomeRemoved  = "removed"
)

// Propose validates p and stores a pending trade. No asset is touched.
func (s *TradeService) Propose(ctx context.Context, p Proposal) (*model.Trade, error) {
	ctx, span := tracer.Start(ctx, "TradeService.Propose")
	defer span.End()

	p, err := s.validator.Normalize(p)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("trade.requester", p.RequesterID),
		attribute.String("trade.responder", p.ResponderID),
		attribute.String("trade.type", string(p.Type)),
	)

	// Duplicate detection reads then writes; the pair lock keeps two
	// instances from both passing the check.
	if s.locker != nil {
		lo, hi := model.PairKey(p.RequesterID, p.ResponderID)
		release, err := lock.Acquire(ctx, s.locker, "trade:propose:"+lo+":"+hi, s.config.LockTTL, s.config.LockWait)
		if errors.Is(err, lock.ErrLockHeld) {
			recordError(span, ErrBusy)
			return nil, ErrBusy
		}
		if err != nil {
			recordError(span, err)
			return nil, fmt.Errorf("failed to lock proposal pair: %w", err)
		}
		defer release()
	}

	var trade *model.Trade
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		lines, err := s.validator.Validate(ctx, uow, p)
		if err != nil {
			return err
		}
		if err := s.validator.CheckDuplicate(ctx, uow, p, lines); err != nil {
			return err
		}

		trade = &model.Trade{
			ID:          uid.New(),
			RequesterID: p.RequesterID,
			ResponderID: p.ResponderID,
			Status:      model.TradeStatusPending,
			Type:        p.Type,
			CreatedAt:   s.now(),
			Lines:       lines,
		}
		return uow.CreateTrade(ctx, trade)
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	log.Printf("[TradeService] Trade %s proposed: %s -> %s (%s, %d lines)",
		trade.ID, trade.RequesterID, trade.ResponderID, trade.Type, len(trade.Lines))
	return trade, nil
}

// Respond applies decision to the trade on behalf of userID.
// Accept is reserved for the responder; reject (or withdraw) is open to
// either party and deletes the trade.
func (s *TradeService) Respond(ctx context.Context, tradeID, userID string, decision model.Decision) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "TradeService.Respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("trade.id", tradeID),
		attribute.String("trade.decision", string(decision)),
	)

	var (
		outcome *Outcome
		err     error
	)
	switch decision {
	case model.DecisionAccept:
		outcome, err = s.accept(ctx, tradeID, userID)
	case model.DecisionReject:
		outcome, err = s.reject(ctx, tradeID, userID)
	default:
		err = ErrInvalidDecision
	}
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return outcome, nil
}

func (s *TradeService) accept(ctx context.Context, tradeID, userID string) (*Outcome, error) {
	var txn *model.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		t, err := uow.GetTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrNotFound
		}
		if !t.CanAccept(userID) {
			return ErrNotAuthorized
		}
		if !t.IsPending() {
			return ErrAlreadySettled
		}

		txn, err = s.settlement.Settle(ctx, uow, t)
		return err
	})

	if err != nil {
		if IsStale(err) {
			s.discard(ctx, tradeID, err)
		}
		return nil, err
	}

	log.Printf("[TradeService] Trade %s accepted by %s, transaction %s (%d lines)",
		tradeID, userID, txn.ID, len(txn.Lines))
	return &Outcome{
		TradeID:       tradeID,
		Decision:      model.DecisionAccept,
		Status:        OutcomeAccepted,
		TransactionID: txn.ID,
		Transaction:   txn,
	}, nil
}

func (s *TradeService) reject(ctx context.Context, tradeID, userID string) (*Outcome, error) {
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		t, err := uow.GetTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrNotFound
		}
		if !t.CanRemove(userID) {
			return ErrNotAuthorized
		}
		if !t.IsPending() {
			return ErrAlreadySettled
		}

		err = uow.DeleteTrade(ctx, tradeID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[TradeService] Trade %s removed by %s", tradeID, userID)
	return &Outcome{TradeID: tradeID, Decision: model.DecisionReject, Status: OutcomeRemoved}, nil
}

// discard deletes a trade whose settlement found it stale. It runs in its own
// unit of work because the settlement one has been rolled back. Accepted
// trades are left alone.
func (s *TradeService) discard(ctx context.Context, tradeID string, cause error) {
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		t, err := uow.GetTrade(ctx, tradeID)
		if err != nil || t == nil || !t.IsPending() {
			return err
		}
		return uow.DeleteTrade(ctx, tradeID)
	})
	if err != nil {
		log.Printf("[TradeService] Failed to discard stale trade %s: %v", tradeID, err)
		return
	}
	log.Printf("[TradeService] Discarded stale trade %s: %v", tradeID, cause)
}

// GetTrade returns a trade visible to userID.
func (s *TradeService) GetTrade(ctx context.Context, tradeID, userID string) (*model.Trade, error) {
	t, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if !t.Involves(userID) {
		return nil, ErrNotAuthorized
	}
	return t, nil
}

// ListTrades returns every trade userID takes part in, newest first.
func (s *TradeService) ListTrades(ctx context.Context, userID string) ([]*model.Trade, error) {
	return s.store.ListTradesByUser(ctx, userID)
}

// PurgeStale re-validates every pending trade and deletes those that could no
// longer settle. Trades are read in pages of pageSize, walking a keyset cursor
// so newer trades are reached however many older ones stay valid. It returns
// the number of trades removed.
func (s *TradeService) PurgeStale(ctx context.Context, pageSize int) (int, error) {
	ctx, span := tracer.Start(ctx, "TradeService.PurgeStale")
	defer span.End()

	if pageSize <= 0 {
		pageSize = 100
	}

	var (
		cursor  repository.PendingCursor
		checked int
		purged  int
	)
	for {
		page, err := s.store.ListPendingTrades(ctx, cursor, pageSize)
		if err != nil {
			recordError(span, err)
			return purged, err
		}

		for _, candidate := range page {
			if err := ctx.Err(); err != nil {
				recordError(span, err)
				return purged, err
			}
			checked++

			removed, err := s.purgeIfStale(ctx, candidate.ID)
			if err != nil {
				log.Printf("[TradeService] Failed to re-validate trade %s: %v", candidate.ID, err)
				continue
			}
			if removed {
				purged++
			}
		}

		if len(page) < pageSize {
			break
		}
		cursor = repository.CursorAfter(page[len(page)-1])
	}

	span.SetAttributes(attribute.Int("trades.checked", checked), attribute.Int("trades.purged", purged))
	return purged, nil
}

// purgeIfStale deletes the trade when it is still pending and no longer settles.
func (s *TradeService) purgeIfStale(ctx context.Context, tradeID string) (bool, error) {
	removed := false
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		t, err := uow.GetTrade(ctx, tradeID)
		if err != nil || t == nil || !t.IsPending() {
			return err
		}
		_, verr := s.settlement.Verify(ctx, uow, t)
		if verr == nil {
			return nil
		}
		if !IsStale(verr) {
			return verr
		}
		if err := uow.DeleteTrade(ctx, t.ID); err != nil {
			return err
		}
		log.Printf("[TradeService] Purged stale trade %s: %v", t.ID, verr)
		removed = true
		return nil
	})
	return removed, err
}
