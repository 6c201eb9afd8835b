package server

import (
	"time"

	"github.com/tahirm09/BulkNotify/internal/dispatch"
	"github.com/tahirm09/BulkNotify/internal/recipient"
	"github.com/tahirm09/BulkNotify/internal/template"
)

type DispatchRequest struct {
	TemplateID   string                `json:"template_id"   binding:"required"`
	Channel      template.Channel      `json:"channel"       binding:"required,oneof=EMAIL WHATSAPP"`
	Recipients   []recipient.Recipient `json:"recipients"    binding:"required,min=1"`
	CustomFields template.Binding      `json:"custom_fields"`
	Batched      bool                  `json:"batched"`
}

type SkippedRecipient struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Reason      string `json:"reason"`
}

type DispatchResponse struct {
	JobID           int64                      `json:"job_id"`
	SourceID        string                     `json:"source_id"`
	TemplateID      string                     `json:"template_id"`
	Channel         template.Channel           `json:"channel"`
	Attempted       int                        `json:"attempted"`
	Sent            int                        `json:"sent"`
	Failed          int                        `json:"failed"`
	FullySuccessful bool                       `json:"fully_successful"`
	Statuses        []dispatch.RecipientStatus `json:"statuses"`
	Skipped         []SkippedRecipient         `json:"skipped,omitempty"`
}

type JobStatsBody struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

type JobListItem struct {
	ID         int64        `json:"id"`
	TemplateID string       `json:"template_id"`
	Channel    string       `json:"channel"`
	Status     string       `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	Stats      JobStatsBody `json:"stats"`
}

type RecipientStatusBody struct {
	RecipientID string     `json:"recipient_id"`
	Address     string     `json:"address"`
	Status      string     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}

type JobDetails struct {
	ID         int64                 `json:"id"`
	TemplateID string                `json:"template_id"`
	Channel    string                `json:"channel"`
	SourceID   string                `json:"source_id"`
	Status     string                `json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
	Stats      JobStatsBody          `json:"stats"`
	Recipients []RecipientStatusBody `json:"recipients"`
}

type TemplateRequest struct {
	Name     string            `json:"name"     binding:"required"`
	Channel  template.Channel  `json:"channel"  binding:"required,oneof=EMAIL WHATSAPP"`
	Subject  string            `json:"subject"`
	Content  string            `json:"content"  binding:"required"`
	Category template.Category `json:"category" binding:"omitempty,oneof=marketing utility transactional"`
}

type ValidateRequest struct {
	Fields template.Binding `json:"fields"`
}

type ReportEvent struct {
	JobID  int64            `json:"job_id"`
	Report *dispatch.Report `json:"report"`
}
