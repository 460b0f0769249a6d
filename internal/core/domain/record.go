package domain

import "time"

// Nutrients carries per-100g nutrition values. Nil means the source
// (label photo, receipt line) did not provide the field.
type Nutrients struct {
	Calories *float64 `json:"calories,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fiber    *float64 `json:"fiber,omitempty"`
}

// Merge overwrites each field with the other side's value where that
// value is present, keeping the receiver's value otherwise.
func (n Nutrients) Merge(from Nutrients) Nutrients {
	out := n
	if from.Calories != nil {
		out.Calories = from.Calories
	}
	if from.Protein != nil {
		out.Protein = from.Protein
	}
	if from.Fat != nil {
		out.Fat = from.Fat
	}
	if from.Carbs != nil {
		out.Carbs = from.Carbs
	}
	if from.Fiber != nil {
		out.Fiber = from.Fiber
	}
	return out
}

// Product is one purchasable item owned by a user, created from a
// receipt line or a manual add.
type Product struct {
	ID             string
	OwnerID        string
	Name           string
	Category       string
	Quantity       float64
	Nutrients      Nutrients
	MatchedLabelID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *Product) Unmatched() bool { return p.MatchedLabelID == "" }

// Label is one scanned nutrition label tied to a shopping session.
// MatchedProductID is set at most once; re-matching requires an
// explicit unmatch first.
type Label struct {
	ID               string
	SessionID        string
	OwnerID          string
	Name             string
	Brand            string
	Weight           string
	Nutrients        Nutrients
	MatchedProductID string
	CreatedAt        time.Time
}

// Receipt groups the products extracted from one receipt photo.
type Receipt struct {
	ID        string
	OwnerID   string
	Store     string
	Total     float64
	Currency  string
	CreatedAt time.Time
}

type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// Session is one bounded shopping interaction: labels accumulate while
// it is open; closing it triggers exactly one reconciliation pass.
type Session struct {
	ID        string
	OwnerID   string
	Status    SessionStatus
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// PriceQuote is the result of a web-augmented price lookup.
type PriceQuote struct {
	Store    string  `json:"store"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}
