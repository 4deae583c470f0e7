package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/avvvet/assassin-services/internal/gamesvc/models"
)

// Memory is an in-process Store. Update works on a copy of the data set and swaps it in on success,
// so a failing action leaves nothing behind. It backs tests and local runs without Postgres.
type Memory struct {
	mu     sync.RWMutex
	data   *memData
	failOn map[string]error
}

type memData struct {
	seq     int
	state   models.GameState
	teams   map[string]memTeam
	players map[string]memPlayer
	claims  map[string]memClaim
	votes   map[string]memVote
}

type memTeam struct {
	seq int
	v   models.Team
}

type memPlayer struct {
	seq int
	v   models.Player
}

type memClaim struct {
	seq int
	v   models.KillClaim
}

type memVote struct {
	seq int
	v   models.Vote
}

// NewMemory returns an empty store whose game state is pre-game with the given voting threshold.
func NewMemory(threshold int) *Memory {
	return &Memory{
		data: &memData{
			state:   models.GameState{Phase: models.PhasePre, VotingThreshold: threshold},
			teams:   make(map[string]memTeam),
			players: make(map[string]memPlayer),
			claims:  make(map[string]memClaim),
			votes:   make(map[string]memVote),
		},
		failOn: make(map[string]error),
	}
}

// FailOn makes every later call of the named operation fail with err wrapped in a StorageError.
// A nil err clears it.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, op)
		return
	}
	m.failOn[op] = err
}

func (m *Memory) Update(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return storageErr("begin", err)
	}
	work := m.data.clone()
	if err := fn(&memTx{m: m, d: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return storageErr("begin", err)
	}
	// Views get their own copy so a stray write inside fn never leaks.
	return fn(&memTx{m: m, d: m.data.clone()})
}

func (d *memData) clone() *memData {
	c := &memData{
		seq:     d.seq,
		state:   d.state,
		teams:   make(map[string]memTeam, len(d.teams)),
		players: make(map[string]memPlayer, len(d.players)),
		claims:  make(map[string]memClaim, len(d.claims)),
		votes:   make(map[string]memVote, len(d.votes)),
	}
	for k, v := range d.teams {
		c.teams[k] = v
	}
	for k, v := range d.players {
		c.players[k] = v
	}
	for k, v := range d.claims {
		c.claims[k] = v
	}
	for k, v := range d.votes {
		c.votes[k] = v
	}
	return c
}

type memTx struct {
	m *Memory
	d *memData
}

func (tx *memTx) check(op string) error {
	if err, ok := tx.m.failOn[op]; ok {
		return storageErr(op, err)
	}
	return nil
}

func (tx *memTx) next() int {
	tx.d.seq++
	return tx.d.seq
}

func (tx *memTx) GameState(ctx context.Context) (*models.GameState, error) {
	if err := tx.check("get game state"); err != nil {
		return nil, err
	}
	gs := tx.d.state
	return &gs, nil
}

func (tx *memTx) SaveGameState(ctx context.Context, gs *models.GameState) error {
	if err := tx.check("save game state"); err != nil {
		return err
	}
	if !gs.Phase.Valid() {
		return storageErr("save game state", errors.New("invalid phase "+string(gs.Phase)))
	}
	tx.d.state = *gs
	return nil
}

func (tx *memTx) CreateTeam(ctx context.Context, team *models.Team) error {
	if err := tx.check("create team"); err != nil {
		return err
	}
	if !team.State.Valid() {
		return storageErr("create team", errors.New("invalid team state "+string(team.State)))
	}
	for _, t := range tx.d.teams {
		if strings.EqualFold(t.v.Name, team.Name) {
			return storageErr("create team", errors.New("duplicate team name "+team.Name))
		}
	}
	tx.d.teams[team.ID] = memTeam{seq: tx.next(), v: *team}
	return nil
}

func (tx *memTx) Team(ctx context.Context, id string) (*models.Team, error) {
	if err := tx.check("get team"); err != nil {
		return nil, err
	}
	rec, ok := tx.d.teams[id]
	if !ok {
		return nil, nil
	}
	t := rec.v
	return &t, nil
}

func (tx *memTx) Teams(ctx context.Context) ([]*models.Team, error) {
	return tx.TeamsByState(ctx, "")
}

func (tx *memTx) TeamsByState(ctx context.Context, state models.TeamState) ([]*models.Team, error) {
	if err := tx.check("list teams"); err != nil {
		return nil, err
	}
	recs := make([]memTeam, 0, len(tx.d.teams))
	for _, rec := range tx.d.teams {
		if state == "" || rec.v.State == state {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	teams := make([]*models.Team, 0, len(recs))
	for _, rec := range recs {
		t := rec.v
		teams = append(teams, &t)
	}
	return teams, nil
}

func (tx *memTx) UpdateTeam(ctx context.Context, team *models.Team) error {
	if err := tx.check("update team"); err != nil {
		return err
	}
	rec, ok := tx.d.teams[team.ID]
	if !ok {
		return storageErr("update team", errors.New("team "+team.ID+" not found"))
	}
	if !team.State.Valid() {
		return storageErr("update team", errors.New("invalid team state "+string(team.State)))
	}
	rec.v = *team
	tx.d.teams[team.ID] = rec
	return nil
}

func (tx *memTx) CreatePlayer(ctx context.Context, player *models.Player) error {
	if err := tx.check("create player"); err != nil {
		return err
	}
	if _, ok := tx.d.teams[player.TeamID]; !ok {
		return storageErr("create player", errors.New("team "+player.TeamID+" not found"))
	}
	for _, p := range tx.d.players {
		if strings.EqualFold(p.v.Email, player.Email) {
			return storageErr("create player", errors.New("duplicate email "+player.Email))
		}
	}
	tx.d.players[player.ID] = memPlayer{seq: tx.next(), v: copyPlayer(*player)}
	return nil
}

func copyPlayer(p models.Player) models.Player {
	if p.Obituary != nil {
		o := *p.Obituary
		p.Obituary = &o
	}
	return p
}

func (tx *memTx) Player(ctx context.Context, id string) (*models.Player, error) {
	if err := tx.check("get player"); err != nil {
		return nil, err
	}
	rec, ok := tx.d.players[id]
	if !ok {
		return nil, nil
	}
	p := copyPlayer(rec.v)
	return &p, nil
}

func (tx *memTx) PlayerByEmail(ctx context.Context, email string) (*models.Player, error) {
	if err := tx.check("get player"); err != nil {
		return nil, err
	}
	for _, rec := range tx.d.players {
		if strings.EqualFold(rec.v.Email, email) {
			p := copyPlayer(rec.v)
			return &p, nil
		}
	}
	return nil, nil
}

func (tx *memTx) Players(ctx context.Context) ([]*models.Player, error) {
	return tx.PlayersByTeam(ctx, "")
}

func (tx *memTx) PlayersByTeam(ctx context.Context, teamID string) ([]*models.Player, error) {
	if err := tx.check("list players"); err != nil {
		return nil, err
	}
	recs := make([]memPlayer, 0)
	for _, rec := range tx.d.players {
		if teamID == "" || rec.v.TeamID == teamID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	players := make([]*models.Player, 0, len(recs))
	for _, rec := range recs {
		p := copyPlayer(rec.v)
		players = append(players, &p)
	}
	return players, nil
}

func (tx *memTx) UpdatePlayer(ctx context.Context, player *models.Player) error {
	if err := tx.check("update player"); err != nil {
		return err
	}
	rec, ok := tx.d.players[player.ID]
	if !ok {
		return storageErr("update player", errors.New("player "+player.ID+" not found"))
	}
	if !player.State.Valid() {
		return storageErr("update player", errors.New("invalid player state "+string(player.State)))
	}
	rec.v = copyPlayer(*player)
	tx.d.players[player.ID] = rec
	return nil
}

func (tx *memTx) CreateClaim(ctx context.Context, claim *models.KillClaim) error {
	if err := tx.check("create claim"); err != nil {
		return err
	}
	if claim.Status == models.ClaimPending {
		for _, rec := range tx.d.claims {
			if rec.v.VictimID == claim.VictimID && rec.v.Status == models.ClaimPending {
				return storageErr("create claim", errors.New("victim "+claim.VictimID+" already has a pending claim"))
			}
		}
	}
	tx.d.claims[claim.ID] = memClaim{seq: tx.next(), v: *claim}
	return nil
}

func (tx *memTx) Claim(ctx context.Context, id string) (*models.KillClaim, error) {
	if err := tx.check("get claim"); err != nil {
		return nil, err
	}
	rec, ok := tx.d.claims[id]
	if !ok {
		return nil, nil
	}
	c := rec.v
	return &c, nil
}

func (tx *memTx) ClaimsByStatus(ctx context.Context, status models.ClaimStatus) ([]*models.KillClaim, error) {
	if err := tx.check("list claims"); err != nil {
		return nil, err
	}
	recs := make([]memClaim, 0)
	for _, rec := range tx.d.claims {
		if status == "" || rec.v.Status == status {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	claims := make([]*models.KillClaim, 0, len(recs))
	for _, rec := range recs {
		c := rec.v
		claims = append(claims, &c)
	}
	return claims, nil
}

func (tx *memTx) PendingClaimForVictim(ctx context.Context, victimID string) (*models.KillClaim, error) {
	if err := tx.check("get claim"); err != nil {
		return nil, err
	}
	for _, rec := range tx.d.claims {
		if rec.v.VictimID == victimID && rec.v.Status == models.ClaimPending {
			c := rec.v
			return &c, nil
		}
	}
	return nil, nil
}

func (tx *memTx) UpdateClaim(ctx context.Context, claim *models.KillClaim) error {
	if err := tx.check("update claim"); err != nil {
		return err
	}
	rec, ok := tx.d.claims[claim.ID]
	if !ok {
		return storageErr("update claim", errors.New("claim "+claim.ID+" not found"))
	}
	if !claim.Status.Valid() {
		return storageErr("update claim", errors.New("invalid claim status "+string(claim.Status)))
	}
	rec.v = *claim
	tx.d.claims[claim.ID] = rec
	return nil
}

func (tx *memTx) CreateVote(ctx context.Context, vote *models.Vote) error {
	if err := tx.check("create vote"); err != nil {
		return err
	}
	for _, rec := range tx.d.votes {
		if rec.v.ClaimID == vote.ClaimID && rec.v.VoterID == vote.VoterID {
			return storageErr("create vote", errors.New("duplicate vote by "+vote.VoterID))
		}
	}
	tx.d.votes[vote.ID] = memVote{seq: tx.next(), v: *vote}
	return nil
}

func (tx *memTx) VotesForClaim(ctx context.Context, claimID string) ([]*models.Vote, error) {
	if err := tx.check("list votes"); err != nil {
		return nil, err
	}
	recs := make([]memVote, 0)
	for _, rec := range tx.d.votes {
		if rec.v.ClaimID == claimID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	votes := make([]*models.Vote, 0, len(recs))
	for _, rec := range recs {
		v := rec.v
		votes = append(votes, &v)
	}
	return votes, nil
}

func (tx *memTx) VoteByVoter(ctx context.Context, claimID, voterID string) (*models.Vote, error) {
	if err := tx.check("get vote"); err != nil {
		return nil, err
	}
	for _, rec := range tx.d.votes {
		if rec.v.ClaimID == claimID && rec.v.VoterID == voterID {
			v := rec.v
			return &v, nil
		}
	}
	return nil, nil
}

func (tx *memTx) VotedClaimIDs(ctx context.Context, voterID string) (map[string]bool, error) {
	if err := tx.check("list votes"); err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, rec := range tx.d.votes {
		if rec.v.VoterID == voterID {
			ids[rec.v.ClaimID] = true
		}
	}
	return ids, nil
}

func (tx *memTx) Wipe(ctx context.Context) error {
	if err := tx.check("wipe"); err != nil {
		return err
	}
	tx.d.teams = make(map[string]memTeam)
	tx.d.players = make(map[string]memPlayer)
	tx.d.claims = make(map[string]memClaim)
	tx.d.votes = make(map[string]memVote)
	return nil
}
