package model

import "time"

// Operator is a back-office user allowed to record payments and confirm settlements.
type Operator struct {
	ID           string    `json:"id"`
	Login        string    `json:"login"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
