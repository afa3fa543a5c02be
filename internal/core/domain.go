package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Yearly   Frequency = "yearly"
)

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

const (
	CreditCard CardType = "credit"
	DebitCard  CardType = "debit"
)

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

const (
	MinDescriptionLen = 3
	MaxDescriptionLen = 100
	MaxNotesLen       = 500
)

type (
	TransactionType string
	Frequency       string
	PaymentMethod   string
	CardType        string
	SyncStatus      string

	Date struct {
		time.Time
	}

	// Transaction is a single income or expense entry. A transaction with
	// IsRecurring set is also a template for future occurrences.
	Transaction struct {
		ID            string          `json:"id"`
		Type          TransactionType `json:"type"`
		Amount        decimal.Decimal `json:"amount"`
		Description   string          `json:"description"`
		Category      string          `json:"category"`
		PaymentMethod PaymentMethod   `json:"payment_method"`
		CardID        string          `json:"card_id,omitempty"`
		Date          Date            `json:"date"`
		Notes         string          `json:"notes,omitempty"`

		IsRecurring          bool      `json:"is_recurring"`
		RecurringPaymentDate Date      `json:"recurring_payment_date"`
		RecurringFrequency   Frequency `json:"recurring_frequency,omitempty"`
		RecurringActive      bool      `json:"recurring_active"`
		RecurringParentID    string    `json:"recurring_parent_id,omitempty"`
		LastMaterialized     Date      `json:"last_materialized"`

		Version    int64      `json:"version"`
		SyncStatus SyncStatus `json:"sync_status,omitempty"`
		CreatedAt  time.Time  `json:"created_at"`
		UpdatedAt  time.Time  `json:"updated_at"`
	}

	Card struct {
		ID              string              `json:"id"`
		BankName        string              `json:"bank_name"`
		CardHolder      string              `json:"card_holder"`
		LastFour        string              `json:"last_four"`
		CardType        CardType            `json:"card_type"`
		BillingCycleDay int                 `json:"billing_cycle_day"`
		PaymentDueDay   int                 `json:"payment_due_day"`
		CreditLimit     decimal.NullDecimal `json:"credit_limit"`
		CurrentBalance  decimal.NullDecimal `json:"current_balance"`
		ExpiryDate      string              `json:"expiry_date"` // MM/YY
		Notes           string              `json:"notes,omitempty"`
		CreatedAt       time.Time           `json:"created_at"`
		UpdatedAt       time.Time           `json:"updated_at"`
	}

	// Budget is a monthly spending limit for one expense category.
	Budget struct {
		ID           string          `json:"id"`
		Category     string          `json:"category"`
		MonthlyLimit decimal.Decimal `json:"monthly_limit"`
		CreatedAt    time.Time       `json:"created_at"`
		UpdatedAt    time.Time       `json:"updated_at"`
	}
)

var (
	ErrInvalidDay           = errors.New("invalid day")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrZeroDate             = errors.New("date cannot be zero")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyDescription     = errors.New("empty description")
	ErrInvalidDescription   = fmt.Errorf("description must be %d-%d characters", MinDescriptionLen, MaxDescriptionLen)
	ErrNotesTooLong         = fmt.Errorf("notes too long (max %d characters)", MaxNotesLen)
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrMissingCard          = errors.New("card payment requires a card")
	ErrUnknownFrequency     = errors.New("unknown recurring frequency")
	ErrIncompleteRecurring  = errors.New("recurring transactions need both a payment date and a frequency")
	ErrEmptyBankName        = errors.New("empty bank name")
	ErrEmptyCardHolder      = errors.New("empty card holder")
	ErrInvalidLastFour      = errors.New("last four must be exactly 4 digits")
	ErrInvalidCardType      = errors.New("invalid card type")
	ErrInvalidBillingDay    = errors.New("billing cycle day must be between 1 and 31")
	ErrInvalidPaymentDay    = errors.New("payment due day must be between 1 and 31")
	ErrInvalidExpiry        = errors.New("expiry date must be MM/YY")
	ErrInvalidLimit         = errors.New("invalid credit limit")
	ErrInvalidBudgetLimit   = errors.New("monthly limit must be greater than zero")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	// Check basic ranges
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Biweekly, Monthly, Yearly:
		return true
	}
	return false
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

func (c CardType) Valid() bool {
	return c == CreditCard || c == DebitCard
}

// IsExpenseOn reports whether t is an expense charged to the given card.
func (t Transaction) IsExpenseOn(cardID string) bool {
	return t.Type == Expense && cardID != "" && t.CardID == cardID
}

// IsActiveTemplate reports whether t should still produce occurrences.
func (t Transaction) IsActiveTemplate() bool {
	return t.IsRecurring && t.RecurringActive && !t.RecurringPaymentDate.IsZero() && t.RecurringFrequency != ""
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if n := utf8.RuneCountInString(desc); n < MinDescriptionLen || n > MaxDescriptionLen {
		return ErrInvalidDescription
	}
	if !IsValidCategory(t.Type, t.Category) {
		return ErrInvalidCategory
	}
	if !t.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	if t.PaymentMethod == PaymentCard && strings.TrimSpace(t.CardID) == "" {
		return ErrMissingCard
	}
	if utf8.RuneCountInString(t.Notes) > MaxNotesLen {
		return ErrNotesTooLong
	}
	return t.validateRecurrence()
}

func (t Transaction) validateRecurrence() error {
	hasDate := !t.RecurringPaymentDate.IsZero()
	hasFreq := t.RecurringFrequency != ""
	if t.IsRecurring != hasDate || t.IsRecurring != hasFreq {
		return ErrIncompleteRecurring
	}
	if hasFreq && !t.RecurringFrequency.Valid() {
		return ErrUnknownFrequency
	}
	return nil
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.BankName) == "" {
		return ErrEmptyBankName
	}
	if strings.TrimSpace(c.CardHolder) == "" {
		return ErrEmptyCardHolder
	}
	if len(c.LastFour) != 4 || strings.IndexFunc(c.LastFour, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return ErrInvalidLastFour
	}
	if !c.CardType.Valid() {
		return ErrInvalidCardType
	}
	if c.BillingCycleDay < 1 || c.BillingCycleDay > 31 {
		return ErrInvalidBillingDay
	}
	if c.PaymentDueDay < 1 || c.PaymentDueDay > 31 {
		return ErrInvalidPaymentDay
	}
	if err := validateExpiry(c.ExpiryDate); err != nil {
		return err
	}
	if c.CreditLimit.Valid && c.CreditLimit.Decimal.IsNegative() {
		return ErrInvalidLimit
	}
	if utf8.RuneCountInString(c.Notes) > MaxNotesLen {
		return ErrNotesTooLong
	}
	return nil
}

// Normalize drops the credit-only fields from debit cards.
func (c Card) Normalize() Card {
	if c.CardType == DebitCard {
		c.CreditLimit = decimal.NullDecimal{}
		c.CurrentBalance = decimal.NullDecimal{}
	}
	return c
}

func validateExpiry(s string) error {
	mm, yy, ok := strings.Cut(s, "/")
	if !ok || len(mm) != 2 || len(yy) != 2 {
		return ErrInvalidExpiry
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 1 || m > 12 {
		return ErrInvalidExpiry
	}
	if _, err := strconv.Atoi(yy); err != nil {
		return ErrInvalidExpiry
	}
	return nil
}

func (b Budget) Validate() error {
	if !IsValidCategory(Expense, b.Category) {
		return ErrInvalidCategory
	}
	if !b.MonthlyLimit.IsPositive() {
		return ErrInvalidBudgetLimit
	}
	return nil
}
