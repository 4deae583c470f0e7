package models

import (
	"fmt"
	"time"
)

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimPending, ClaimApproved, ClaimRejected:
		return true
	}
	return false
}

func ParseClaimStatus(s string) (ClaimStatus, error) {
	status := ClaimStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid claim status %q", s)
	}
	return status, nil
}

// KillClaim is an assertion that Attacker eliminated Victim, waiting on peer votes.
// Approved and rejected are terminal.
type KillClaim struct {
	ID          string      `json:"id"`
	VictimID    string      `json:"victim_id"`
	AttackerID  string      `json:"attacker_id"`
	KillTime    time.Time   `json:"kill_time"`
	RoundNumber int         `json:"round_number"`
	EvidenceRef string      `json:"evidence_ref"`
	Status      ClaimStatus `json:"status"`
	ExpiresAt   time.Time   `json:"expires_at"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (c *KillClaim) IsPending() bool { return c.Status == ClaimPending }

// Expired is true at or after the deadline.
func (c *KillClaim) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Involves reports whether the player is the victim or the attacker of the claim.
func (c *KillClaim) Involves(playerID string) bool {
	return c.VictimID == playerID || c.AttackerID == playerID
}

// Resolve moves a pending claim to a terminal status. It fails on anything already decided.
func (c *KillClaim) Resolve(status ClaimStatus) error {
	if !c.IsPending() {
		return fmt.Errorf("claim %s already %s", c.ID, c.Status)
	}
	if status != ClaimApproved && status != ClaimRejected {
		return fmt.Errorf("claim %s cannot move to %q", c.ID, status)
	}
	c.Status = status
	return nil
}
