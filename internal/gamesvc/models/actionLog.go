package models

import "time"

// Action log types written by the core.
const (
	ActionTargetAssignment = "target_assignment"
	ActionTeamElimination  = "team_elimination"
	ActionTeamAdvance      = "team_advance"
	ActionPlayerRevival    = "player_revival"
	ActionRoundStart       = "round_start"
	ActionRoundEnd         = "round_end"
	ActionRoundSchedule    = "round_schedule"
	ActionKillSubmission   = "kill_submission"
	ActionKillVote         = "kill_vote"
	ActionKillExpired      = "kill_expired"
	ActionKillConfirmed    = "kill_confirmed"
	ActionKillRejected     = "kill_rejected"
	ActionGameComplete     = "game_complete"
	ActionGameStateChange  = "game_state_change"
	ActionThresholdChange  = "voting_threshold_change"
	ActionFreeForAllChange = "free_for_all_change"
	ActionTeamRegistration = "team_registration"
	ActionTeamAcceptance   = "team_acceptance"
	ActionTeamKilled       = "team_killed"
	ActionTeamRevived      = "team_revived"
	ActionPlayerKilled     = "player_killed"
	ActionPlayerRevived    = "player_revived"
	ActionVoteOverride     = "vote_override"
	ActionGameWipe         = "game_wipe"
)

// Actors.
const (
	ActorSystem = "system"
	ActorAdmin  = "admin"
)

type ActionLog struct {
	Type        string    `json:"action_type" bson:"action_type"`
	Description string    `json:"description" bson:"description"`
	Actor       string    `json:"actor" bson:"actor"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}
