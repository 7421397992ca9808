package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "ingreso"
	Expense TransactionType = "gasto"
)

const (
	AccountChecking AccountType = "corriente"
	AccountCredit   AccountType = "credito"
	AccountCash     AccountType = "efectivo"
	AccountSavings  AccountType = "ahorros"
)

const (
	PaymentCash         PaymentMethod = "efectivo"
	PaymentDebitCard    PaymentMethod = "tarjeta_debito"
	PaymentCreditCard   PaymentMethod = "tarjeta_credito"
	PaymentBankTransfer PaymentMethod = "transferencia"
)

type (
	TransactionType string
	AccountType     string
	PaymentMethod   string

	User struct {
		ID           string
		Email        string
		PasswordHash string
		Name         string
		CreatedAt    time.Time
	}

	UserSettings struct {
		UserID    string
		Language  string
		Currency  string
		UpdatedAt time.Time
	}

	Account struct {
		ID        string
		UserID    string
		Name      string
		Type      AccountType
		Balance   decimal.Decimal
		CreatedAt time.Time
	}

	Category struct {
		ID           string
		UserID       string // empty for predefined categories
		Name         string
		IsPredefined bool
		CreatedAt    time.Time
	}

	// Transaction amounts are stored signed: expenses negative, income positive.
	Transaction struct {
		ID            string
		UserID        string
		AccountID     string
		CategoryID    string
		Date          time.Time
		Amount        decimal.Decimal
		Type          TransactionType
		Description   string
		PaymentMethod PaymentMethod
		Merchant      string
		Tags          []string
		Currency      string
		CreatedAt     time.Time
	}

	Budget struct {
		ID         string
		UserID     string
		CategoryID string
		Month      string // YYYY-MM
		Amount     decimal.Decimal
		CreatedAt  time.Time
	}

	Client struct {
		ID        string
		UserID    string
		Name      string
		Email     string
		Company   string
		Phone     string
		Notes     string
		CreatedAt time.Time
	}

	Invoice struct {
		ID        string
		UserID    string
		ClientID  string
		Number    string
		Amount    decimal.Decimal
		Status    string // borrador, enviada, pagada, vencida
		IssueDate time.Time
		DueDate   time.Time
		CreatedAt time.Time
	}

	Feedback struct {
		ID        string
		UserID    string // empty for anonymous feedback
		Rating    int
		Message   string
		URL       string
		UserAgent string
		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidMonth       = errors.New("invalid month format")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInsufficientData   = errors.New("insufficient transaction data")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (a AccountType) Valid() bool {
	switch a {
	case AccountChecking, AccountCredit, AccountCash, AccountSavings:
		return true
	}
	return false
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentDebitCard, PaymentCreditCard, PaymentBankTransfer:
		return true
	}
	return false
}

// ValidMonth reports whether s has the YYYY-MM shape with a real month value.
func ValidMonth(s string) bool {
	if len(s) != 7 || s[4] != '-' {
		return false
	}
	_, err := time.Parse("2006-01", s)
	return err == nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	// Sign must agree with the declared type.
	if t.Type == Expense && t.Amount.IsPositive() {
		return errors.New("expense amount must be negative")
	}
	if t.Type == Income && t.Amount.IsNegative() {
		return errors.New("income amount must be positive")
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}

func (b Budget) Validate() error {
	if !ValidMonth(b.Month) {
		return ErrInvalidMonth
	}
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	return nil
}

// SignedAmount normalizes a positive user-supplied amount to the stored sign
// convention for the given type.
func SignedAmount(amount decimal.Decimal, t TransactionType) decimal.Decimal {
	abs := amount.Abs()
	if t == Expense {
		return abs.Neg()
	}
	return abs
}
