package models

import "time"

type Vote struct {
	ID        string    `json:"id"`
	ClaimID   string    `json:"claim_id"`
	VoterID   string    `json:"voter_id"`
	Approve   bool      `json:"approve"`
	CreatedAt time.Time `json:"created_at"`
}

// Tally counts approve and reject votes.
func Tally(votes []*Vote) (approve, reject int) {
	for _, v := range votes {
		if v.Approve {
			approve++
		} else {
			reject++
		}
	}
	return approve, reject
}
