package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// ListingStatus tracks a resale offer.
type ListingStatus string

const (
    ListingPending   ListingStatus = "pending"
    ListingCompleted ListingStatus = "completed"
    ListingWithdrawn ListingStatus = "withdrawn"
)

// Listing is a resale offer for a single ticket.  A ticket has at most
// one pending listing at a time and the seller can never be the buyer.
type Listing struct {
    ID            string          `json:"id"`
    TicketID      string          `json:"ticket_id"`
    EventID       string          `json:"event_id"`
    SellerID      string          `json:"seller_id"`
    OriginalPrice decimal.Decimal `json:"original_price"`
    AskingPrice   decimal.Decimal `json:"asking_price"`
    Status        ListingStatus   `json:"status"`
    BuyerID       *string         `json:"buyer_id,omitempty"`
    CreatedAt     time.Time       `json:"created_at"`
    UpdatedAt     time.Time       `json:"updated_at"`
}
