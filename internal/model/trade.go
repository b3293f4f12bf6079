package model

import (
	"sort"
	"time"
)

// TradeType discriminates what a trade exchanges.
type TradeType string

const (
	TradeTypeAsset   TradeType = "asset"
	TradeTypeAccount TradeType = "account"
)

// Valid reports whether t is a known trade type.
func (t TradeType) Valid() bool {
	switch t {
	case TradeTypeAsset, TradeTypeAccount:
		return true
	}
	return false
}

// TradeStatus is the persisted state of a trade. Rejected and withdrawn
// trades are deleted, so only two states are ever stored.
type TradeStatus string

const (
	TradeStatusPending  TradeStatus = "pending"
	TradeStatusAccepted TradeStatus = "accepted"
)

// LineSide tells which party gives up the asset on a trade line.
type LineSide string

const (
	SideOffered LineSide = "offered" // requester gives
	SideWanted  LineSide = "wanted"  // responder gives
)

// Decision is a responder's (or withdrawing requester's) answer.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionAccept || d == DecisionReject
}

// TradeLine references one asset on one side of a trade.
type TradeLine struct {
	TradeID string   `json:"-"`
	AssetID string   `json:"asset_id"`
	Side    LineSide `json:"side"`
}

// Trade is a proposal between a requester and a responder.
type Trade struct {
	ID          string      `json:"id"`
	RequesterID string      `json:"requester_id"`
	ResponderID string      `json:"responder_id"`
	Status      TradeStatus `json:"status"`
	Type        TradeType   `json:"type"`
	CreatedAt   time.Time   `json:"created_at"`
	RespondedAt *time.Time  `json:"responded_at,omitempty"`
	Lines       []TradeLine `json:"lines"`
}

// OfferedAssetIDs returns the assets the requester gives up.
func (t *Trade) OfferedAssetIDs() []string {
	return t.idsOn(SideOffered)
}

// WantedAssetIDs returns the assets the responder gives up.
func (t *Trade) WantedAssetIDs() []string {
	return t.idsOn(SideWanted)
}

func (t *Trade) idsOn(side LineSide) []string {
	ids := make([]string, 0, len(t.Lines))
	for _, l := range t.Lines {
		if l.Side == side {
			ids = append(ids, l.AssetID)
		}
	}
	return ids
}

// SortedAssetIDs returns every referenced asset id in ascending order.
// Row locks are taken in this order.
func (t *Trade) SortedAssetIDs() []string {
	ids := make([]string, 0, len(t.Lines))
	for _, l := range t.Lines {
		ids = append(ids, l.AssetID)
	}
	sort.Strings(ids)
	return ids
}

// Involves reports whether userID is either party of the trade.
func (t *Trade) Involves(userID string) bool {
	return userID != "" && (t.RequesterID == userID || t.ResponderID == userID)
}

// Counterparty returns the other party of the trade, or "" when userID is not involved.
func (t *Trade) Counterparty(userID string) string {
	switch userID {
	case t.RequesterID:
		return t.ResponderID
	case t.ResponderID:
		return t.RequesterID
	}
	return ""
}

// IsPending reports whether the trade still awaits a decision.
func (t *Trade) IsPending() bool {
	return t.Status == TradeStatusPending
}

// CanAccept reports whether userID may accept the trade.
func (t *Trade) CanAccept(userID string) bool {
	return t.ResponderID == userID
}

// CanRemove reports whether userID may reject or withdraw the trade.
func (t *Trade) CanRemove(userID string) bool {
	return t.Involves(userID)
}

// ReceiverOf returns the user that ends up owning an asset on the given side.
func (t *Trade) ReceiverOf(side LineSide) string {
	if side == SideOffered {
		return t.ResponderID
	}
	return t.RequesterID
}

// GiverOf returns the user that owns an asset on the given side before settlement.
func (t *Trade) GiverOf(side LineSide) string {
	if side == SideOffered {
		return t.RequesterID
	}
	return t.ResponderID
}

// NewTradeLines builds offered lines followed by wanted lines.
func NewTradeLines(offered, wanted []string) []TradeLine {
	lines := make([]TradeLine, 0, len(offered)+len(wanted))
	for _, id := range offered {
		lines = append(lines, TradeLine{AssetID: id, Side: SideOffered})
	}
	for _, id := range wanted {
		lines = append(lines, TradeLine{AssetID: id, Side: SideWanted})
	}
	return lines
}

// PairKey orders two user ids so that (a, b) and (b, a) map to the same pair.
func PairKey(a, b string) (lo, hi string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// SameIDSet reports whether a and b contain the same ids, ignoring order.
func SameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
