// Package ring はゲームの隠されたハンター→ターゲットの巡回を管理する。
//
// どのメソッドもゲーム行のロックを持つトランザクション内で呼ぶこと（lifecycle.Controller 参照）。
// リングはメモリに持たず、検証のたびに参加者の行から組み立て直す。
package ring

import (
	"context"
	"errors"
	"sort"
	"time"

	"assassinserver/internal/claims"
	"assassinserver/internal/gameerr"
	"assassinserver/internal/participants"
	"assassinserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stores はリングが扱うトランザクション内のストアの組
type Stores struct {
	Participants *participants.Store
	Claims       *claims.Ledger
}

func NewStores(tx *gorm.DB) Stores {
	return Stores{
		Participants: participants.NewStore(tx),
		Claims:       claims.NewLedger(tx),
	}
}

type Manager struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger, now: time.Now}
}

// WithClock は時刻源を差し替える。テスト用
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Join は最後に参加した参加者の直後に userID を挿入する。最初の参加者は自分自身がターゲット。
// ErrAlreadyJoined の場合は既存の参加者も一緒に返す。
func (m *Manager) Join(ctx context.Context, st Stores, gameID, userID uint) (*models.Participant, error) {
	existing, err := st.Participants.Get(ctx, gameID, userID)
	if err == nil {
		return existing, gameerr.ErrAlreadyJoined.With("user %d in game %d", userID, gameID)
	}
	if !errors.Is(err, gameerr.ErrNotFound) {
		return nil, err
	}

	last, err := st.Participants.Last(ctx, gameID)
	if errors.Is(err, gameerr.ErrNotFound) {
		// 最初の参加者は自分自身をターゲットにする
		return st.Participants.Create(ctx, gameID, userID, userID)
	}
	if err != nil {
		return nil, err
	}

	joined, err := st.Participants.Create(ctx, gameID, userID, last.TargetUserID)
	if err != nil {
		return joined, err
	}
	last.TargetUserID = userID
	if err := st.Participants.Save(ctx, last); err != nil {
		return nil, err
	}
	return joined, nil
}

// ClaimInput は投稿者が送るキル申請。VictimUserID は任意で、指定した場合は現在のターゲットと
// 一致すること。証拠の項目はメディア側が持つ参照でしかない。
type ClaimInput struct {
	PosterUserID uint
	VictimUserID uint
	ProofRef     string
	ThumbnailRef string
	Caption      string
	Latitude     *float64
	Longitude    *float64
}

// SubmitClaim は投稿者のターゲットへの Pending 申請を記録し、ターゲットを Pending にする
func (m *Manager) SubmitClaim(ctx context.Context, st Stores, gameID uint, in ClaimInput) (*models.KillClaim, error) {
	poster, err := st.Participants.Get(ctx, gameID, in.PosterUserID)
	if errors.Is(err, gameerr.ErrNotFound) {
		return nil, gameerr.ErrNotAlive.With("user %d is not a participant", in.PosterUserID)
	}
	if err != nil {
		return nil, err
	}
	if poster.LifeStatus != models.LifeAlive {
		return nil, gameerr.ErrNotAlive.With("user %d is %s", poster.UserID, poster.LifeStatus)
	}
	if poster.TargetUserID == poster.UserID {
		return nil, gameerr.Integrity("user %d targets itself in a running game", poster.UserID)
	}
	if in.VictimUserID != 0 && in.VictimUserID != poster.TargetUserID {
		return nil, gameerr.ErrWrongTarget.With("user %d is not the target of %d", in.VictimUserID, poster.UserID)
	}

	victim, err := st.Participants.Get(ctx, gameID, poster.TargetUserID)
	if err != nil {
		if errors.Is(err, gameerr.ErrNotFound) {
			return nil, gameerr.Integrity("target %d of %d has no participant row", poster.TargetUserID, poster.UserID)
		}
		return nil, err
	}
	if !victim.LifeStatus.InRing() {
		return nil, gameerr.Integrity("target %d of %d is dead", victim.UserID, poster.UserID)
	}

	if open, err := st.Claims.FindOpen(ctx, gameID, poster.UserID, victim.UserID); err == nil {
		return nil, gameerr.ErrDuplicateClaim.With("claim %d is still %s", open.ID, open.Status)
	} else if !errors.Is(err, gameerr.ErrNotFound) {
		return nil, err
	}
	if victim.LifeStatus == models.LifePending {
		return nil, gameerr.ErrTargetUnavailable.With("user %d", victim.UserID)
	}

	victim.LifeStatus = models.LifePending
	if err := st.Participants.Save(ctx, victim); err != nil {
		return nil, err
	}

	claim := &models.KillClaim{
		GameID:       gameID,
		PosterUserID: poster.UserID,
		VictimUserID: victim.UserID,
		ProofRef:     in.ProofRef,
		ThumbnailRef: in.ThumbnailRef,
		Caption:      in.Caption,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
	}
	if err := st.Claims.Create(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// Confirm は被害者による承認。被害者は死亡しリングから外れる
func (m *Manager) Confirm(ctx context.Context, st Stores, claimID uint, actor models.Actor) (*models.KillClaim, error) {
	claim, err := st.Claims.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != claim.VictimUserID {
		return nil, gameerr.ErrForbidden.With("only the victim may confirm claim %d", claim.ID)
	}
	if claim.Status != models.ClaimPending {
		return nil, gameerr.ErrWrongState.With("claim %d is %s", claim.ID, claim.Status)
	}
	return m.verify(ctx, st, claim, nil)
}

// Deny は被害者による否認。リングはそのままで、管理者が裁定するまで被害者は Pending のまま
func (m *Manager) Deny(ctx context.Context, st Stores, claimID uint, actor models.Actor) (*models.KillClaim, error) {
	claim, err := st.Claims.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != claim.VictimUserID {
		return nil, gameerr.ErrForbidden.With("only the victim may deny claim %d", claim.ID)
	}
	if !claim.Status.CanTransitionTo(models.ClaimConflicting) {
		return nil, gameerr.ErrWrongState.With("claim %d is %s", claim.ID, claim.Status)
	}
	claim.Status = models.ClaimConflicting
	if err := st.Claims.Save(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// Outcome は管理者裁定の結果
type Outcome string

const (
	OutcomeVerify Outcome = "verify"
	OutcomeDeny   Outcome = "deny"
)

func (o Outcome) Valid() bool {
	return o == OutcomeVerify || o == OutcomeDeny
}

// AdminResolve は Conflicting 申請を裁定する
func (m *Manager) AdminResolve(ctx context.Context, st Stores, claimID uint, actor models.Actor, outcome Outcome) (*models.KillClaim, error) {
	if !actor.Admin {
		return nil, gameerr.ErrForbidden.With("user %d is not an administrator", actor.UserID)
	}
	if !outcome.Valid() {
		return nil, gameerr.ErrInvalid.With("outcome %q", outcome)
	}
	claim, err := st.Claims.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != models.ClaimConflicting {
		return nil, gameerr.ErrWrongState.With("claim %d is %s", claim.ID, claim.Status)
	}

	admin := actor.UserID
	if outcome == OutcomeVerify {
		return m.verify(ctx, st, claim, &admin)
	}

	victim, err := st.Participants.Get(ctx, claim.GameID, claim.VictimUserID)
	if err != nil {
		return nil, err
	}
	if victim.LifeStatus != models.LifePending {
		return nil, gameerr.Integrity("victim %d of disputed claim %d is %s", victim.UserID, claim.ID, victim.LifeStatus)
	}
	victim.LifeStatus = models.LifeAlive
	if err := st.Participants.Save(ctx, victim); err != nil {
		return nil, err
	}
	claim.Status = models.ClaimDenied
	claim.ResolvedByUserID = &admin
	if err := st.Claims.Save(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

func (m *Manager) verify(ctx context.Context, st Stores, claim *models.KillClaim, resolvedBy *uint) (*models.KillClaim, error) {
	now := m.now()
	if err := m.splice(ctx, st, claim.GameID, claim.VictimUserID, now); err != nil {
		return nil, err
	}
	claim.Status = models.ClaimVerified
	claim.ConfirmedAt = &now
	claim.ResolvedByUserID = resolvedBy
	if err := st.Claims.Save(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// splice は被害者をリングから外し、ハンターに被害者のターゲットを引き継がせる
func (m *Manager) splice(ctx context.Context, st Stores, gameID, victimUserID uint, now time.Time) error {
	victim, err := st.Participants.Get(ctx, gameID, victimUserID)
	if err != nil {
		return err
	}
	if victim.LifeStatus != models.LifePending {
		return gameerr.Integrity("victim %d is %s, expected pending", victim.UserID, victim.LifeStatus)
	}

	hunter, err := m.findHunter(ctx, st, gameID, victim.UserID)
	if err != nil {
		return err
	}

	hunter.TargetUserID = victim.TargetUserID
	victim.LifeStatus = models.LifeDead
	victim.DiedAt = &now
	if err := st.Participants.Save(ctx, hunter); err != nil {
		return err
	}
	if err := st.Participants.Save(ctx, victim); err != nil {
		return err
	}

	m.logger.Debug("spliced",
		zap.Uint("game_id", gameID),
		zap.Uint("hunter", hunter.UserID),
		zap.Uint("victim", victim.UserID),
		zap.Uint("new_target", hunter.TargetUserID))
	return nil
}

// findHunter は victimUserID をターゲットにする唯一の生存参加者を返す。
// Alive は Pending より先に並ぶが、候補が1人でなければ選ばずに整合性違反とする。
func (m *Manager) findHunter(ctx context.Context, st Stores, gameID, victimUserID uint) (*models.Participant, error) {
	cands, err := st.Participants.FindByTarget(ctx, gameID, victimUserID, models.LifeAlive, models.LifePending)
	if err != nil {
		return nil, err
	}
	living := cands[:0]
	for _, c := range cands {
		if c.UserID != victimUserID {
			living = append(living, c)
		}
	}
	sort.SliceStable(living, func(i, j int) bool {
		return living[i].LifeStatus == models.LifeAlive && living[j].LifeStatus != models.LifeAlive
	})

	if len(living) != 1 {
		ids := make([]uint, 0, len(living))
		for _, c := range living {
			ids = append(ids, c.UserID)
		}
		m.logger.Error("hunter search failed",
			zap.Uint("game_id", gameID),
			zap.Uint("victim", victimUserID),
			zap.Uints("candidates", ids))
		return nil, gameerr.Integrity("victim %d has %d living hunters", victimUserID, len(living))
	}
	return &living[0], nil
}

// Winner はリングが自己ループになったら唯一の生存者を返す
func (m *Manager) Winner(ctx context.Context, st Stores, gameID uint) (*models.Participant, bool, error) {
	survivors, err := m.survivors(ctx, st, gameID)
	if err != nil {
		return nil, false, err
	}
	if len(survivors) != 1 {
		return nil, false, nil
	}
	w := survivors[0]
	if w.TargetUserID != w.UserID {
		return nil, false, gameerr.Integrity("last survivor %d targets %d", w.UserID, w.TargetUserID)
	}
	return &w, true, nil
}

func (m *Manager) survivors(ctx context.Context, st Stores, gameID uint) ([]models.Participant, error) {
	all, err := st.Participants.ListByGame(ctx, gameID, participants.Filter{})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.LifeStatus.InRing() {
			out = append(out, p)
		}
	}
	return out, nil
}

// View は検証済みの現在のリング順を返す
func (m *Manager) View(ctx context.Context, st Stores, gameID uint) ([]uint, error) {
	all, err := st.Participants.ListByGame(ctx, gameID, participants.Filter{})
	if err != nil {
		return nil, err
	}
	return Trace(all)
}
