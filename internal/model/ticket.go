package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// TicketState is the single lifecycle tag of a ticket.  A ticket is in
// exactly one state at a time.
type TicketState string

const (
    TicketValid     TicketState = "valid"
    TicketListed    TicketState = "listed"
    TicketUsed      TicketState = "used"
    TicketCancelled TicketState = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s TicketState) Terminal() bool {
    return s == TicketUsed || s == TicketCancelled
}

// Ticket is one admission right for one event.  Ownership changes only
// through a completed resale.
//
// Fields:
//  ID          – opaque identifier (UUID).
//  SaleID      – originating primary sale; kept across resales.
//  EventID     – event the ticket admits to.
//  OwnerID     – current holder.
//  IssuedAt    – issuance time.
//  Price       – face value paid at issuance.
//  State       – valid, listed, used or cancelled.
//  ResalePrice – asking price while listed.
//  ListingID   – pending listing while listed.
//  QRCode      – door code printed on the ticket.
type Ticket struct {
    ID          string              `json:"id"`
    SaleID      string              `json:"sale_id"`
    EventID     string              `json:"event_id"`
    OwnerID     string              `json:"owner_id"`
    IssuedAt    time.Time           `json:"issued_at"`
    Price       decimal.Decimal     `json:"price"`
    State       TicketState         `json:"state"`
    ResalePrice decimal.NullDecimal `json:"resale_price"`
    ListingID   *string             `json:"listing_id,omitempty"`
    QRCode      string              `json:"qr_code"`
}

// Sale is a primary purchase of one or more tickets for a single event.
type Sale struct {
    ID        string          `json:"id"`
    EventID   string          `json:"event_id"`
    BuyerID   string          `json:"buyer_id"`
    Quantity  int             `json:"quantity"`
    UnitPrice decimal.Decimal `json:"unit_price"`
    Total     decimal.Decimal `json:"total"`
    CreatedAt time.Time       `json:"created_at"`
}
