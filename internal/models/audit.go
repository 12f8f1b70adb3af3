package models

import (
	"time"
)

type ExportStatus string

const (
	ExportSucceeded ExportStatus = "succeeded"
	ExportFailed    ExportStatus = "failed"
	ExportRejected  ExportStatus = "rejected" // another export for the view was in flight
)

// ExportAudit records one PDF download attempt.
type ExportAudit struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	ReportKey   string       `json:"report_key" gorm:"not null;index"`
	ViewID      string       `json:"view_id" gorm:"not null"`
	AdminEmail  string       `json:"admin_email"`
	Filename    string       `json:"filename"`
	Status      ExportStatus `json:"status" gorm:"not null"`
	Bytes       int          `json:"bytes"`
	Error       string       `json:"error,omitempty"`
	DurationMs  int64        `json:"duration_ms"`
	RequestedAt time.Time    `json:"requested_at" gorm:"not null;index"`
	CreatedAt   time.Time    `json:"created_at"`
}

// LoginAudit records one admin login attempt. Passwords are never stored.
type LoginAudit struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"not null;index"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	ClientIP  string    `json:"client_ip"`
	CreatedAt time.Time `json:"created_at"`
}
