package models

// GameStatus はゲーム全体の進行状態。Registration→InProgress→Completed の一方向のみ遷移する。
type GameStatus string

const (
	GameRegistration GameStatus = "registration"
	GameInProgress   GameStatus = "in_progress"
	GameCompleted    GameStatus = "completed"
)

var gameTransitions = map[GameStatus]GameStatus{
	GameRegistration: GameInProgress,
	GameInProgress:   GameCompleted,
}

func (s GameStatus) Valid() bool {
	switch s {
	case GameRegistration, GameInProgress, GameCompleted:
		return true
	}
	return false
}

// CanTransitionTo は next への遷移が許可されているかを返す
func (s GameStatus) CanTransitionTo(next GameStatus) bool {
	to, ok := gameTransitions[s]
	return ok && to == next
}

// LifeStatus は参加者の生存状態
type LifeStatus string

const (
	LifeAlive   LifeStatus = "alive"
	LifePending LifeStatus = "pending" // キル申請を受けて本人の応答待ち
	LifeDead    LifeStatus = "dead"
)

func (s LifeStatus) Valid() bool {
	switch s {
	case LifeAlive, LifePending, LifeDead:
		return true
	}
	return false
}

// InRing はリングに残っている（Dead以外）かどうか
func (s LifeStatus) InRing() bool {
	return s == LifeAlive || s == LifePending
}

// ClaimStatus はキル申請の状態
type ClaimStatus string

const (
	ClaimPending     ClaimStatus = "pending"
	ClaimConflicting ClaimStatus = "conflicting"
	ClaimVerified    ClaimStatus = "verified"
	ClaimDenied      ClaimStatus = "denied"
)

// 申請状態の遷移表。Verified と Denied は終端。
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimPending:     {ClaimVerified, ClaimConflicting},
	ClaimConflicting: {ClaimVerified, ClaimDenied},
}

func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimPending, ClaimConflicting, ClaimVerified, ClaimDenied:
		return true
	}
	return false
}

func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	for _, to := range claimTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Open は未解決（Pending または Conflicting）の申請かどうか
func (s ClaimStatus) Open() bool {
	return s == ClaimPending || s == ClaimConflicting
}
