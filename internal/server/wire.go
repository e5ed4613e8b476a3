// internal/server/wire.go
package server

import "time"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind,omitempty"`
	Op          string `json:"op,omitempty"`
	Entity      string `json:"entity,omitempty"`
	ID          string `json:"id,omitempty"`
	Message     string `json:"message,omitempty"`
	OverdueDays int    `json:"overdue_days,omitempty"`
}

type AddItemRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Year     int    `json:"year"`
	Category string `json:"category"`
	Copies   int    `json:"copies"`
}

type AdjustCopiesRequest struct {
	Delta int `json:"delta"`
}

type RegisterMemberRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type IssueLoanRequest struct {
	ItemID   string `json:"item_id"`
	MemberID string `json:"member_id"`
}

type RenewLoanResponse struct {
	LoanID string    `json:"loan_id"`
	DueAt  time.Time `json:"due_at"`
}
