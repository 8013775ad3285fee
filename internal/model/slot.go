package model

import "time"

// SlotStatus is a Pool Slot's disposition token (§3).
type SlotStatus string

const (
	SlotIdle      SlotStatus = "idle"
	SlotDeploying SlotStatus = "deploying"
	SlotBusy      SlotStatus = "busy"
	SlotHealthy   SlotStatus = "healthy"
	SlotError     SlotStatus = "error"
)

// MaxPoolSize is the default per-platform slot cap (§4.2, §8 invariant
// "Pool cap"); the Pool Manager enforces the configured
// PoolConfig.MaxPoolSize (POOL_MAX_SIZE, default 100).
const MaxPoolSize = 100

// MaxRecoveryAttempts is the retry budget before the Slot Recovery Worker
// deletes a slot permanently (§3, §4.5).
const MaxRecoveryAttempts = 3

// Deployment-platform tokens recorded on a Bot once it lands on a backing
// container (§4.4 step 4 "deployment-platform = pool-variant").
const (
	DeploymentPlatformPool  = "pool"
	DeploymentPlatformLocal = "local"
)

// Slot is one long-lived container reservation in the warm pool (§3).
type Slot struct {
	ID                int64      `json:"id"`
	SlotName          string     `json:"slotName"`
	ContainerServiceID string    `json:"containerServiceId"`
	Platform          Platform   `json:"platform"`
	Status            SlotStatus `json:"status"`
	AssignedBotID     *int64     `json:"assignedBotId,omitempty"`
	LastUsedAt        time.Time  `json:"lastUsedAt"`
	RecoveryAttempts  int        `json:"recoveryAttempts"`
	ErrorMessage      *string    `json:"errorMessage,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Busy reports the invariant (status = busy) <=> (assigned-bot-id != null).
func (s *Slot) Busy() bool {
	return s.Status == SlotBusy && s.AssignedBotID != nil
}
