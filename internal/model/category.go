package model

import "time"

// Category represents a spending or income category that rules and recurring
// templates may reference by id.
type Category struct {
	CreatedAt   time.Time
	Name        string
	Description string
	Type        TransactionType
	ID          int64
	IsActive    bool
}
