// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  Both are durable.
const (
    TicketsSoldQueue   = "tickets.sold"
    ResaleSettledQueue = "resale.settled"
)

// TicketsSoldEvent is published after a primary sale commits.  It carries
// enough for downstream consumers to log, notify or reconcile without
// querying the primary database.
type TicketsSoldEvent struct {
    SaleID        string   `json:"sale_id"`
    TransactionID string   `json:"transaction_id"`
    EventID       string   `json:"event_id"`
    EventName     string   `json:"event_name"`
    BuyerID       string   `json:"buyer_id"`
    TicketIDs     []string `json:"ticket_ids"`
    Quantity      int      `json:"quantity"`
    Total         string   `json:"total"`
    SoldAt        string   `json:"sold_at"`
}

// ResaleSettledEvent is published after a resale purchase commits, with
// both ledger legs already completed.
type ResaleSettledEvent struct {
    ListingID           string `json:"listing_id"`
    TicketID            string `json:"ticket_id"`
    EventID             string `json:"event_id"`
    SellerID            string `json:"seller_id"`
    BuyerID             string `json:"buyer_id"`
    Price               string `json:"price"`
    BuyerTransactionID  string `json:"buyer_transaction_id"`
    SellerTransactionID string `json:"seller_transaction_id"`
    SettledAt           string `json:"settled_at"`
}
