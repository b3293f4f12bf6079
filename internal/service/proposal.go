package service

import (
	"context"
	"fmt"
	"strings"

	"arcadeswap-api/internal/model"
	"arcadeswap-api/internal/repository"
)

// Proposal is the input to TradeService.Propose.
type Proposal struct {
	RequesterID     string          `json:"-"`
	ResponderID     string          `json:"responder_id"`
	OfferedAssetIDs []string        `json:"offered_asset_ids"`
	WantedAssetIDs  []string        `json:"wanted_asset_ids"`
	Type            model.TradeType `json:"type"`
}

// ProposalValidator gates trade creation. It reads through the unit of work
// it is handed and never writes.
type ProposalValidator struct{}

// NewProposalValidator creates a validator.
func NewProposalValidator() *ProposalValidator {
	return &ProposalValidator{}
}

// Normalize trims ids and rejects malformed proposals.
func (v *ProposalValidator) Normalize(p Proposal) (Proposal, error) {
	p.RequesterID = strings.TrimSpace(p.RequesterID)
	p.ResponderID = strings.TrimSpace(p.ResponderID)

	if p.RequesterID == "" || p.ResponderID == "" {
		return p, fmt.Errorf("%w: requester and responder are required", ErrInvalidProposal)
	}
	if p.RequesterID == p.ResponderID {
		return p, fmt.Errorf("%w: cannot trade with yourself", ErrInvalidProposal)
	}
	if !p.Type.Valid() {
		return p, fmt.Errorf("%w: unknown trade type %q", ErrInvalidProposal, p.Type)
	}

	seen := make(map[string]bool)
	clean := func(ids []string) ([]string, error) {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				return nil, fmt.Errorf("%w: empty asset id", ErrInvalidProposal)
			}
			if seen[id] {
				return nil, fmt.Errorf("%w: asset %s listed twice", ErrInvalidProposal, id)
			}
			seen[id] = true
			out = append(out, id)
		}
		return out, nil
	}

	var err error
	if p.OfferedAssetIDs, err = clean(p.OfferedAssetIDs); err != nil {
		return p, err
	}
	if p.WantedAssetIDs, err = clean(p.WantedAssetIDs); err != nil {
		return p, err
	}

	if p.Type == model.TradeTypeAsset && len(p.OfferedAssetIDs)+len(p.WantedAssetIDs) == 0 {
		return p, fmt.Errorf("%w: an asset trade needs at least one asset", ErrInvalidProposal)
	}
	return p, nil
}

// Validate checks eligibility against current state and returns the lines the
// trade will carry.
func (v *ProposalValidator) Validate(ctx context.Context, uow repository.UnitOfWork, p Proposal) ([]model.TradeLine, error) {
	switch p.Type {
	case model.TradeTypeAsset:
		offered, err := v.loadOwned(ctx, uow, p.OfferedAssetIDs, p.RequesterID)
		if err != nil {
			return nil, err
		}
		wanted, err := v.loadOwned(ctx, uow, p.WantedAssetIDs, p.ResponderID)
		if err != nil {
			return nil, err
		}
		for _, a := range append(offered, wanted...) {
			if !a.Tradeable {
				return nil, fmt.Errorf("%w: %s", ErrAssetNotTradeable, a.ID)
			}
		}
		return model.NewTradeLines(p.OfferedAssetIDs, p.WantedAssetIDs), nil

	case model.TradeTypeAccount:
		for _, userID := range []string{p.RequesterID, p.ResponderID} {
			acc, err := uow.GetAccount(ctx, userID)
			if err != nil {
				return nil, err
			}
			if !acc.AccountTradeable {
				return nil, fmt.Errorf("%w: account of %s", ErrAssetNotTradeable, userID)
			}
		}

		// The account flags gate the whole bundle, which is each side's
		// library at proposal time. Supplied ids are ignored.
		reqLib, err := uow.ListAssetsByOwner(ctx, p.RequesterID)
		if err != nil {
			return nil, err
		}
		respLib, err := uow.ListAssetsByOwner(ctx, p.ResponderID)
		if err != nil {
			return nil, err
		}
		if len(reqLib)+len(respLib) == 0 {
			return nil, fmt.Errorf("%w: both libraries are empty", ErrInvalidProposal)
		}
		return model.NewTradeLines(model.AssetIDs(reqLib), model.AssetIDs(respLib)), nil

	default:
		return nil, fmt.Errorf("%w: unknown trade type %q", ErrInvalidProposal, p.Type)
	}
}

func (v *ProposalValidator) loadOwned(ctx context.Context, uow repository.UnitOfWork, ids []string, ownerID string) ([]*model.Asset, error) {
	assets := make([]*model.Asset, 0, len(ids))
	for _, id := range ids {
		a, err := uow.GetAsset(ctx, id)
		if err != nil {
			return nil, err
		}
		if a == nil || a.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: %s is not owned by %s", ErrNotOwner, id, ownerID)
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// CheckDuplicate rejects a proposal equivalent to a pending trade between the
// same two users. Any pending account trade for the pair counts; asset trades
// must match on both sets, read from the new requester's side.
func (v *ProposalValidator) CheckDuplicate(ctx context.Context, uow repository.UnitOfWork, p Proposal, lines []model.TradeLine) error {
	pending, err := uow.ListPendingBetween(ctx, p.RequesterID, p.ResponderID, p.Type)
	if err != nil {
		return err
	}

	candidate := &model.Trade{RequesterID: p.RequesterID, ResponderID: p.ResponderID, Lines: lines}
	for _, existing := range pending {
		switch p.Type {
		case model.TradeTypeAccount:
			return fmt.Errorf("%w: trade %s", ErrDuplicatePending, existing.ID)
		case model.TradeTypeAsset:
			if sameExchange(existing, candidate) {
				return fmt.Errorf("%w: trade %s", ErrDuplicatePending, existing.ID)
			}
		}
	}
	return nil
}

// sameExchange compares what each user gives up, so a mirrored proposal
// (B offering X for A's Y after A offered Y for X) is the same exchange.
func sameExchange(a, b *model.Trade) bool {
	aGiven := map[string][]string{a.RequesterID: a.OfferedAssetIDs(), a.ResponderID: a.WantedAssetIDs()}
	return model.SameIDSet(aGiven[b.RequesterID], b.OfferedAssetIDs()) &&
		model.SameIDSet(aGiven[b.ResponderID], b.WantedAssetIDs())
}
