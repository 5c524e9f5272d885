package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Event is a scheduled occurrence with a fixed seat capacity.  Remaining
// capacity is never stored: it is always capacity minus the number of
// ticket rows issued for the event.  Events are never deleted;
// cancellation is terminal.
//
// Fields:
//  ID          – opaque identifier (UUID).
//  OrganizerID – user that owns the event.
//  Name        – display name.
//  Description – free text.
//  Date        – when the event takes place (UTC).
//  Place       – venue.
//  Price       – face value of one ticket.
//  Capacity    – total seats, at least 1.
//  Cancelled   – set once by the organizer; purchases are refused afterwards.
type Event struct {
    ID          string          `json:"id"`
    OrganizerID string          `json:"organizer_id"`
    Name        string          `json:"name"`
    Description string          `json:"description"`
    Date        time.Time       `json:"date"`
    Place       string          `json:"place"`
    Price       decimal.Decimal `json:"price"`
    Capacity    int             `json:"capacity"`
    Cancelled   bool            `json:"cancelled"`
    CreatedAt   time.Time       `json:"created_at"`
    UpdatedAt   time.Time       `json:"updated_at"`
}

// EventFilter narrows event listings.  Zero values mean "no constraint".
// Date matches events taking place on the same UTC calendar day.
type EventFilter struct {
    Date        *time.Time
    Place       string
    MinPrice    *decimal.Decimal
    MaxPrice    *decimal.Decimal
    OrganizerID string
}

// Matches reports whether ev satisfies every constraint of the filter.
func (f EventFilter) Matches(ev Event) bool {
    if f.Date != nil {
        y1, m1, d1 := f.Date.UTC().Date()
        y2, m2, d2 := ev.Date.UTC().Date()
        if y1 != y2 || m1 != m2 || d1 != d2 {
            return false
        }
    }
    if f.Place != "" && ev.Place != f.Place {
        return false
    }
    if f.MinPrice != nil && ev.Price.LessThan(*f.MinPrice) {
        return false
    }
    if f.MaxPrice != nil && ev.Price.GreaterThan(*f.MaxPrice) {
        return false
    }
    if f.OrganizerID != "" && ev.OrganizerID != f.OrganizerID {
        return false
    }
    return true
}

// PriceScale is the number of decimal places every stored price carries.
const PriceScale = 2

// IsCentPrice reports whether d is representable at PriceScale without
// rounding.  Trailing zeros are fine: 10.500 is a cent price, 10.005 is not.
func IsCentPrice(d decimal.Decimal) bool {
    return d.Equal(d.Truncate(PriceScale))
}

// EventPatch carries the editable fields of an event.  Nil fields are left
// unchanged.
type EventPatch struct {
    Name        *string
    Description *string
    Date        *time.Time
    Place       *string
    Price       *decimal.Decimal
    Capacity    *int
}
