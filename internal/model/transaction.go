package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// TxKind distinguishes primary sales from resales in the ledger.
type TxKind string

const (
    KindSale   TxKind = "sale"
    KindResale TxKind = "resale"
)

// TxStatus is the status of a ledger entry.
type TxStatus string

const (
    TxPending   TxStatus = "pending"
    TxCompleted TxStatus = "completed"
    TxCancelled TxStatus = "cancelled"
)

// CanMoveTo reports whether a ledger entry may change from s to next.
// cancelled is terminal and completed can only be cancelled.
func (s TxStatus) CanMoveTo(next TxStatus) bool {
    switch s {
    case TxPending:
        return next == TxCompleted || next == TxCancelled
    case TxCompleted:
        return next == TxCancelled
    }
    return false
}

// Transaction is one append-only ledger entry.  Only Status and UpdatedAt
// ever change after insertion.  Exactly one of SaleID or ListingID is set.
type Transaction struct {
    ID        string          `json:"id"`
    Kind      TxKind          `json:"kind"`
    ActorID   string          `json:"actor_id"`
    EventID   string          `json:"event_id"`
    Price     decimal.Decimal `json:"price"`
    Status    TxStatus        `json:"status"`
    SaleID    *string         `json:"sale_id,omitempty"`
    ListingID *string         `json:"listing_id,omitempty"`
    CreatedAt time.Time       `json:"created_at"`
    UpdatedAt time.Time       `json:"updated_at"`
}
