package models

import (
	"time"

	"github.com/epoch-ledger/internal/types"
)

// Schedule is a recurring execution of a graph on a cron cadence. Every
// schedule is linked to exactly one execution grant that authorizes its runs.
type Schedule struct {
	ID               string     `json:"id"`
	OwnerUserID      string     `json:"ownerUserId"`
	GraphID          string     `json:"graphId"`
	Input            []byte     `json:"input"`
	Cron             string     `json:"cron"`
	Timezone         string     `json:"timezone"`
	Enabled          bool       `json:"enabled"`
	NextRunAt        *time.Time `json:"nextRunAt,omitempty"`
	LastRunAt        *time.Time `json:"lastRunAt,omitempty"`
	ExecutionGrantID string     `json:"executionGrantId"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// ExecutionGrant authorizes scheduled execution of specific graphs. It is
// structurally distinct from a user session: a grant is checked before every
// scheduled run, never exchanged for a login.
type ExecutionGrant struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	BillingAccountID string     `json:"billingAccountId"`
	Scopes           []string   `json:"scopes"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	RevokedAt        *time.Time `json:"revokedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// ScheduleRun records one execution attempt of a schedule, unique on
// (scheduleId, scheduledFor).
type ScheduleRun struct {
	ID           string          `json:"id"`
	ScheduleID   string          `json:"scheduleId"`
	ScheduledFor time.Time       `json:"scheduledFor"`
	Status       types.RunStatus `json:"status"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}
