package model

// Outcome is the result every workflow entry point reports to its caller.
// Business failures are outcomes, not Go errors; only store failures are
// returned as errors alongside a StoreUnavailable outcome.
type Outcome struct {
    Success bool      `json:"success"`
    Message string    `json:"message"`
    Kind    ErrorKind `json:"error_kind,omitempty"`
}

// Succeeded builds a successful outcome.
func Succeeded(msg string) Outcome { return Outcome{Success: true, Message: msg} }

// Failed builds a failed outcome from err.  Store failures get a generic
// message so driver details do not leak to clients.
func Failed(err error) Outcome {
    kind := KindOf(err)
    msg := err.Error()
    if kind == StoreUnavailable {
        msg = "service temporarily unavailable"
    }
    return Outcome{Success: false, Message: msg, Kind: kind}
}

// PurchaseOutcome is returned by a primary purchase.
type PurchaseOutcome struct {
    Outcome
    SaleID        string   `json:"sale_id,omitempty"`
    TicketIDs     []string `json:"ticket_ids,omitempty"`
    TransactionID string   `json:"transaction_id,omitempty"`
}

// ListingOutcome is returned when a ticket is published for resale.
type ListingOutcome struct {
    Outcome
    ListingID     string `json:"listing_id,omitempty"`
    TransactionID string `json:"transaction_id,omitempty"`
}

// ResaleOutcome is returned by a resale purchase.
type ResaleOutcome struct {
    Outcome
    TicketID      string `json:"ticket_id,omitempty"`
    TransactionID string `json:"transaction_id,omitempty"`
}
