package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"arcadeswap-api/internal/model"
	"arcadeswap-api/internal/repository"
	"arcadeswap-api/pkg/uid"
)

// LibraryService manages what users own: listing assets, toggling tradeable
// flags, recording purchases and reading the ledger.
type LibraryService struct {
	store  repository.Store
	ledger *LedgerRecorder
	now    func() time.Time
}

// NewLibraryService creates a library service.
func NewLibraryService(store repository.Store) *LibraryService {
	return &LibraryService{
		store:  store,
		ledger: NewLedgerRecorder(),
		now:    time.Now,
	}
}

// ListAssets returns the user's library.
func (s *LibraryService) ListAssets(ctx context.Context, userID string) ([]*model.Asset, error) {
	return s.store.ListAssetsByOwner(ctx, userID)
}

// GetAccount returns the user's trade settings.
func (s *LibraryService) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	return s.store.GetAccount(ctx, userID)
}

// SetAssetTradeable flips the tradeable flag of an asset the user owns. The
// write is version-conditioned inside a unit of work, the same way settlement
// writes, so a toggle and a settlement on one asset cannot interleave.
func (s *LibraryService) SetAssetTradeable(ctx context.Context, userID, assetID string, tradeable bool) (*model.Asset, error) {
	var updated *model.Asset
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		a, err := uow.GetAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAssetNotFound
		}
		if a.OwnerID != userID {
			return ErrNotOwner
		}
		if a.Tradeable == tradeable {
			updated = a
			return nil
		}

		if err := uow.SetTradeable(ctx, a.ID, tradeable, a.Version); err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				return ErrConcurrentUpdate
			}
			return err
		}
		a.Tradeable = tradeable
		a.Version++
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetAccountTradeable flips whether the user's whole library may be traded.
func (s *LibraryService) SetAccountTradeable(ctx context.Context, userID string, tradeable bool) (*model.Account, error) {
	var updated *model.Account
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		acc, err := uow.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if acc.Version > 0 && acc.AccountTradeable == tradeable {
			updated = acc
			return nil
		}

		if err := uow.SetAccountTradeable(ctx, userID, tradeable, acc.Version); err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				return ErrConcurrentUpdate
			}
			return err
		}
		acc.AccountTradeable = tradeable
		acc.Version++
		updated = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpsertGame mirrors a catalog entry.
func (s *LibraryService) UpsertGame(ctx context.Context, game *model.Game) error {
	game.ID = strings.TrimSpace(game.ID)
	if game.ID == "" || strings.TrimSpace(game.Title) == "" {
		return fmt.Errorf("%w: game id and title are required", ErrInvalidInput)
	}
	if game.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	return s.store.UpsertGame(ctx, game)
}

// GrantPurchase is called by the checkout flow once payment has cleared. It
// creates the owned asset and its purchase record in one unit of work.
func (s *LibraryService) GrantPurchase(ctx context.Context, userID, gameID string) (*model.Asset, *model.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	var (
		asset *model.Asset
		txn   *model.Transaction
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		game, err := uow.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if game == nil {
			return ErrGameNotFound
		}

		now := s.now().UTC().Truncate(time.Millisecond)
		asset = &model.Asset{
			ID:         uid.New(),
			OwnerID:    userID,
			GameID:     game.ID,
			Tradeable:  false,
			AcquiredAt: now,
		}
		if err := uow.CreateAsset(ctx, asset); err != nil {
			return err
		}

		txn = PurchaseTransaction(userID, game, asset.ID, now)
		return s.ledger.Record(ctx, uow, txn)
	})
	if err != nil {
		return nil, nil, err
	}

	log.Printf("[LibraryService] Granted %s to %s (asset %s, value %s)", gameID, userID, asset.ID, txn.Value.StringFixed(2))
	return asset, txn, nil
}

// ListTransactions returns the user's ledger, newest first, with directions
// seen from the user's side.
func (s *LibraryService) ListTransactions(ctx context.Context, userID string) ([]*model.Transaction, error) {
	txns, err := s.store.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]*model.Transaction, 0, len(txns))
	for _, t := range txns {
		views = append(views, t.PerspectiveOf(userID))
	}
	return views, nil
}
