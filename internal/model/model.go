package model

import "time"

// BulkSendRequest is one bulk broadcast as submitted by the console.
type BulkSendRequest struct {
	SenderID   string   `json:"senderId" form:"senderId"`
	Message    string   `json:"message" form:"message"`
	Recipients []string `json:"recipients" form:"recipients"`
}

type GatewayCredentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

func (c GatewayCredentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type RecipientOutcome string

const (
	OutcomeSuccess RecipientOutcome = "success"
	OutcomeFailed  RecipientOutcome = "failed"
)

type HistoryStatus string

const (
	StatusSent          HistoryStatus = "Sent"
	StatusPartiallySent HistoryStatus = "Partially Sent"
	StatusFailed        HistoryStatus = "Failed"
)

const (
	HistoryTypeBulk   = "Bulk SMS"
	HistoryDateLayout = "2006-01-02"
)

// SmsHistoryRecord is the audit entry written once per bulk dispatch.
type SmsHistoryRecord struct {
	ID                   string        `json:"id"`
	SenderID             string        `json:"senderId"`
	RecipientCount       int           `json:"recipientCount"`
	FailedRecipientCount int           `json:"failedRecipientCount"`
	Message              string        `json:"message"`
	Status               HistoryStatus `json:"status"`
	Type                 string        `json:"type"`
	Date                 string        `json:"date"`
	CreatedAt            time.Time     `json:"createdAt"`
	FailedRecipients     []string      `json:"failedRecipients,omitempty"`
	Error                string        `json:"error,omitempty"`
}

// DispatchResult is what the caller of a bulk send gets back.
type DispatchResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Contact struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name" form:"name"`
	Phone     string    `db:"phone" json:"phone" form:"phone"`
	Email     string    `db:"email" json:"email,omitempty" form:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Group struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name" form:"name"`
	Description string    `db:"description" json:"description,omitempty" form:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	Members     []Contact `db:"-" json:"members,omitempty"`
}
