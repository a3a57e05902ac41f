package core

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	CategoryTithe    Category = "tithe"
	CategoryOffering Category = "offering"

	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"

	OriginElectronic Origin = "electronic"
	OriginManual     Origin = "manual"

	// DateLayout is the storage and wire layout of calendar dates.
	DateLayout = "2006-01-02"
)

type (
	// Category classifies an inflow transaction.
	Category string

	// Status of a transaction. The only transition is pending -> confirmed.
	Status string

	// Origin tells whether a transaction came from the payment gateway or
	// was typed in by an operator.
	Origin string

	Date struct {
		time.Time
	}

	Member struct {
		ID        int64  `json:"id"`
		Code      string `json:"code"`
		FullName  string `json:"full_name"`
		BirthDate *Date  `json:"birth_date,omitempty"`
	}

	// RosterEntry is the slice of a member the identity resolver needs.
	RosterEntry struct {
		ID       int64
		FullName string
	}

	Transaction struct {
		ID         int64     `json:"id"`
		ExternalID *string   `json:"external_id,omitempty"`
		PayerName  string    `json:"payer_name"`
		MemberID   *int64    `json:"member_id,omitempty"`
		Amount     Money     `json:"amount"`
		OccurredAt time.Time `json:"occurred_at"`
		Status     Status    `json:"status"`
		Origin     Origin    `json:"origin"`
		Category   *Category `json:"category,omitempty"`
	}

	// TransactionView is a transaction joined with the linked member, as
	// listed to operators and itemized on statements.
	TransactionView struct {
		Transaction
		MemberCode string `json:"member_code,omitempty"`
		MemberName string `json:"member_name,omitempty"`
	}

	Expense struct {
		ID          int64  `json:"id"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
	}
)

// ParseCategory accepts the canonical names and the Portuguese labels the
// operators use.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tithe", "dizimo", "dízimo":
		return CategoryTithe, nil
	case "offering", "oferta":
		return CategoryOffering, nil
	default:
		return "", ErrInvalidCategory
	}
}

func (c Category) Valid() bool {
	return c == CategoryTithe || c == CategoryOffering
}

// Label is the name printed on statements.
func (c Category) Label() string {
	switch c {
	case CategoryTithe:
		return "Dizimo"
	case CategoryOffering:
		return "Oferta"
	default:
		return string(c)
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDay
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.Code) == "" {
		return Invalid("code", ErrEmptyCode)
	}
	if len(m.Code) > 10 {
		return &ValidationError{Field: "code", Reason: "too long (max 10 characters)"}
	}
	if strings.TrimSpace(m.FullName) == "" {
		return Invalid("full_name", ErrEmptyName)
	}
	if len(m.FullName) > 255 {
		return &ValidationError{Field: "full_name", Reason: "too long (max 255 characters)"}
	}
	if m.BirthDate != nil {
		if err := m.BirthDate.Validate(); err != nil {
			return Invalid("birth_date", err)
		}
	}
	return nil
}

// Validate checks the creation rules of a transaction.
func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if t.OccurredAt.IsZero() {
		return &ValidationError{Field: "occurred_at", Reason: "missing timestamp"}
	}
	switch t.Origin {
	case OriginElectronic:
		if t.ExternalID == nil || strings.TrimSpace(*t.ExternalID) == "" {
			return Invalid("external_id", ErrMissingExternalID)
		}
		if t.Status != StatusPending {
			return &ValidationError{Field: "status", Reason: "electronic transactions start pending"}
		}
	case OriginManual:
		if t.Status != StatusConfirmed {
			return &ValidationError{Field: "status", Reason: "manual transactions start confirmed"}
		}
		if t.Category == nil || !t.Category.Valid() {
			return Invalid("category", ErrInvalidCategory)
		}
		if strings.TrimSpace(t.PayerName) == "" {
			return Invalid("payer_name", ErrEmptyName)
		}
	default:
		return &ValidationError{Field: "origin", Reason: "unknown origin"}
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return Invalid("description", ErrEmptyDescription)
	}
	if len(e.Description) > 255 {
		return &ValidationError{Field: "description", Reason: "too long (max 255 characters)"}
	}
	if len(e.Category) > 100 {
		return &ValidationError{Field: "category", Reason: "too long (max 100 characters)"}
	}
	if err := e.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	return nil
}
