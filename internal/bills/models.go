package bills

import "time"

// Bill is owned by the billing side of the platform. Calls only read it,
// mark it called at the end of a call, and append dispute notes.
type Bill struct {
	ID             int64     `json:"id" db:"id"`
	CustomerName   string    `json:"customer_name" db:"customer_name"`
	CustomerPhone  string    `json:"customer_phone" db:"customer_phone"`
	BillNumber     string    `json:"bill_number" db:"bill_number"`
	ConsumerNumber string    `json:"consumer_number" db:"consumer_number"`
	Amount         float64   `json:"bill_amount" db:"bill_amount"`
	DueDate        time.Time `json:"due_date" db:"due_date"`
	Status         Status    `json:"status" db:"status"`
	PaymentLink    string    `json:"payment_link,omitempty" db:"payment_link"`

	CallAttempts     int        `json:"call_attempts" db:"call_attempts"`
	LastCallDate     *time.Time `json:"last_call_date,omitempty" db:"last_call_date"`
	NextReminderDate *time.Time `json:"next_reminder_date,omitempty" db:"next_reminder_date"`

	Notes string `json:"notes,omitempty" db:"notes"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCalled    Status = "called"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)
