package services

import (
	"strings"
	"time"

	"tesouraria/internal/core"
)

// Request records for operator actions. Each is validated in full before the
// store is touched.
type (
	CreateMemberRequest struct {
		Code      string `json:"code"`
		FullName  string `json:"full_name"`
		BirthDate string `json:"birth_date,omitempty"`
	}

	ManualTransactionRequest struct {
		PayerName string      `json:"name"`
		MemberID  *int64      `json:"member_id,omitempty"`
		Amount    *core.Money `json:"amount"`
		Category  string      `json:"type"`
		// OccurredAt defaults to now when empty. RFC 3339 or YYYY-MM-DD.
		OccurredAt string `json:"date,omitempty"`
	}

	ConfirmRequest struct {
		Category string `json:"type"`
	}

	CreateExpenseRequest struct {
		Description string      `json:"description"`
		Category    string      `json:"category"`
		Amount      *core.Money `json:"amount"`
		Date        string      `json:"date"`
	}

	ReportRequest struct {
		Month           int         `json:"month"`
		Year            int         `json:"year"`
		PreviousBalance *core.Money `json:"previous_balance"`
		// PrevBalance is the older spelling of PreviousBalance.
		PrevBalance *core.Money `json:"prev_balance,omitempty"`
	}
)

func (r CreateMemberRequest) toMember() (core.Member, error) {
	m := core.Member{
		Code:     strings.TrimSpace(r.Code),
		FullName: strings.TrimSpace(r.FullName),
	}
	if s := strings.TrimSpace(r.BirthDate); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return core.Member{}, &core.ValidationError{Field: "birth_date", Reason: "expected YYYY-MM-DD", Err: err}
		}
		m.BirthDate = &d
	}
	return m, m.Validate()
}

func (r ManualTransactionRequest) toTransaction(now time.Time, loc *time.Location) (core.Transaction, error) {
	if r.Amount == nil {
		return core.Transaction{}, core.Invalid("amount", core.ErrInvalidAmount)
	}
	category, err := core.ParseCategory(r.Category)
	if err != nil {
		return core.Transaction{}, core.Invalid("type", err)
	}
	occurredAt := now
	if s := strings.TrimSpace(r.OccurredAt); s != "" {
		occurredAt, err = parseInstant(s, loc)
		if err != nil {
			return core.Transaction{}, &core.ValidationError{Field: "date", Reason: "expected RFC 3339 or YYYY-MM-DD", Err: err}
		}
	}
	tx := core.Transaction{
		PayerName:  strings.TrimSpace(r.PayerName),
		MemberID:   r.MemberID,
		Amount:     *r.Amount,
		OccurredAt: occurredAt,
		Status:     core.StatusConfirmed,
		Origin:     core.OriginManual,
		Category:   &category,
	}
	return tx, tx.Validate()
}

func (r CreateExpenseRequest) toExpense() (core.Expense, error) {
	if r.Amount == nil {
		return core.Expense{}, core.Invalid("amount", core.ErrInvalidAmount)
	}
	d, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Expense{}, &core.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD", Err: err}
	}
	e := core.Expense{
		Description: strings.TrimSpace(r.Description),
		Category:    strings.TrimSpace(r.Category),
		Amount:      *r.Amount,
		Date:        d,
	}
	return e, e.Validate()
}

func (r ReportRequest) period() (core.Period, core.Money, error) {
	p, err := core.NewPeriod(r.Year, r.Month)
	if err != nil {
		return core.Period{}, core.Money{}, err
	}
	switch {
	case r.PreviousBalance != nil:
		return p, *r.PreviousBalance, nil
	case r.PrevBalance != nil:
		return p, *r.PrevBalance, nil
	default:
		return core.Period{}, core.Money{}, &core.ValidationError{Field: "previous_balance", Reason: "required"}
	}
}

// parseInstant accepts a full timestamp or a calendar date, taken as local
// midnight in loc.
func parseInstant(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(core.DateLayout, s, loc)
}
