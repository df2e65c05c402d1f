package core

import (
	"errors"
	"strings"
)

// Collection names the five local stores. Local collection names are
// camelCase; the remote table projection is owned by the remote package.
type Collection string

const (
	Expenses     Collection = "expenses"
	Payments     Collection = "payments"
	Goals        Collection = "goals"
	Incomes      Collection = "incomes"
	BankAccounts Collection = "bankAccounts"
)

// Collections returns every known collection, in sync order.
func Collections() []Collection {
	return []Collection{Expenses, Payments, Goals, Incomes, BankAccounts}
}

// IsValid returns true if the collection is one of the five known stores.
func (c Collection) IsValid() bool {
	switch c {
	case Expenses, Payments, Goals, Incomes, BankAccounts:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (c Collection) String() string {
	return string(c)
}

// AdHocExpenseID is the sentinel expenseId of a payment that is not linked
// to any declared expense. Such payments are always rendered from their
// denormalized expenseName and must never be resolved against the expenses
// collection.
const AdHocExpenseID = "ad-hoc"

// Weeks is the fixed week enumeration an expense is scheduled on.
var Weeks = []string{"S1", "S2", "S3", "S4"}

// DefaultCategories seeds the user-editable category list.
var DefaultCategories = []string{
	"Vivienda", "Servicios", "Alimentación", "Transporte", "Seguros",
	"Deudas", "Tarjetas", "Entretenimiento", "Educación", "Salud", "Otros",
}

type (
	// Expense is a recurring fixed expense, optionally an installment plan,
	// optionally carrying debt fields used for payoff ordering.
	Expense struct {
		ID       string `json:"id"`
		UserID   string `json:"userId"`
		Name     string `json:"name"`
		Amount   int64  `json:"amount"`
		Category string `json:"category"`
		Week     string `json:"week"`
		Year     int    `json:"year"`
		// Months lists the calendar months (0-11) the expense is active in.
		// Absent means active in every month.
		Months             []int   `json:"months,omitempty"`
		IsInstallment      bool    `json:"isInstallment,omitempty"`
		TotalInstallments  int     `json:"totalInstallments,omitempty"`
		CurrentInstallment int     `json:"currentInstallment,omitempty"`
		StartDate          string  `json:"startDate,omitempty"`
		InitialBalance     int64   `json:"initialBalance,omitempty"`
		InterestRate       float64 `json:"interestRate,omitempty"`
	}

	Income struct {
		ID       string `json:"id"`
		UserID   string `json:"userId"`
		Name     string `json:"name"`
		Amount   int64  `json:"amount"`
		Category string `json:"category"`
		Date     string `json:"date"`
	}

	// Payment records money paid against an expense, or an ad-hoc payment
	// when ExpenseID is the AdHocExpenseID sentinel. ExpenseName and
	// Category are denormalized snapshots taken at payment time.
	Payment struct {
		ID             string `json:"id"`
		UserID         string `json:"userId"`
		ExpenseID      string `json:"expenseId"`
		ExpenseName    string `json:"expenseName"`
		Category       string `json:"category,omitempty"`
		Amount         int64  `json:"amount"`
		Date           string `json:"date"`
		Note           string `json:"note,omitempty"`
		DiscountAmount int64  `json:"discountAmount,omitempty"`
		DiscountGoalID string `json:"discountGoalId,omitempty"`
	}

	// GoalTransaction is one deposit into a savings goal. The sequence on a
	// goal is append-only.
	GoalTransaction struct {
		ID            string `json:"id"`
		Amount        int64  `json:"amount"`
		Date          string `json:"date"`
		BankAccountID string `json:"bankAccountId"`
		Note          string `json:"note,omitempty"`
	}

	Goal struct {
		ID            string            `json:"id"`
		UserID        string            `json:"userId"`
		Name          string            `json:"name"`
		TargetAmount  int64             `json:"targetAmount"`
		CurrentAmount int64             `json:"currentAmount"`
		Transactions  []GoalTransaction `json:"transactions,omitempty"`
	}

	BankAccount struct {
		ID      string `json:"id"`
		UserID  string `json:"userId"`
		Name    string `json:"name"`
		Type    string `json:"type"`
		Balance int64  `json:"balance"`
	}

	// User is the single hardcoded identity the application runs under.
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Role     string `json:"role"`
	}
)

// DefaultUser returns the hardcoded admin identity every record is scoped to.
func DefaultUser() User {
	return User{
		ID:       "master-user-id",
		Username: "admin",
		Name:     "Administrador JM",
		Role:     "admin",
	}
}

var (
	ErrEmptyID       = errors.New("empty id")
	ErrEmptyUserID   = errors.New("empty user id")
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidWeek   = errors.New("invalid week")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrEmptyDate     = errors.New("empty date")
)

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !validWeek(e.Week) {
		return ErrInvalidWeek
	}
	for _, m := range e.Months {
		if m < 0 || m > 11 {
			return ErrInvalidMonth
		}
	}
	return nil
}

// ActiveInMonth reports whether the expense applies to the given calendar
// month (0-11). An expense with no months set is active in all twelve.
func (e Expense) ActiveInMonth(month int) bool {
	if len(e.Months) == 0 {
		return true
	}
	for _, m := range e.Months {
		if m == month {
			return true
		}
	}
	return false
}

// IsAdHoc reports whether the payment is unlinked to any declared expense.
func (p Payment) IsAdHoc() bool {
	return p.ExpenseID == AdHocExpenseID
}

// DisplayName resolves the payment's name against the given expenses.
// Ad-hoc payments always resolve to the denormalized snapshot.
func (p Payment) DisplayName(expenses []Expense) string {
	if p.IsAdHoc() {
		return p.ExpenseName
	}
	for _, e := range expenses {
		if e.ID == p.ExpenseID {
			return e.Name
		}
	}
	return p.ExpenseName
}

func (i Income) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(i.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyName
	}
	if i.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(i.Date) == "" {
		return ErrEmptyDate
	}
	return nil
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(p.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(p.ExpenseID) == "" {
		return errors.New("empty expense id")
	}
	if p.IsAdHoc() && strings.TrimSpace(p.ExpenseName) == "" {
		return errors.New("ad-hoc payment requires an expense name")
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(p.Date) == "" {
		return ErrEmptyDate
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(g.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.TargetAmount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// TransactionTotal sums the goal's deposits. The write path keeps
// CurrentAmount aligned with this; it is not recomputed on read.
func (g Goal) TransactionTotal() int64 {
	var total int64
	for _, tx := range g.Transactions {
		total += tx.Amount
	}
	return total
}

func (b BankAccount) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func validWeek(week string) bool {
	for _, w := range Weeks {
		if w == week {
			return true
		}
	}
	return false
}
