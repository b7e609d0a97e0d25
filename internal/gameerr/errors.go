// Package gameerr はゲーム本体が返すエラーの一覧を定義する
package gameerr

import (
	"errors"
	"fmt"
)

// Kind は呼び出し側の対処方法でエラーを分類する
type Kind int

const (
	KindUnknown Kind = iota
	// KindPrecondition: 現在の状態では受け付けられない。状態が変わるまで再試行しても無駄
	KindPrecondition
	// KindConflict: 競合する正当なリクエストが先に入っている
	KindConflict
	// KindAuthorization: 操作者にこの対象への権限がない
	KindAuthorization
	KindNotFound
	KindValidation
	// KindIntegrity: 内部の不変条件が壊れている。常にバグ
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindIntegrity:
		return "integrity"
	}
	return "unknown"
}

// Error はゲームエラー。Code はAPIクライアント向けの固定値
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// Is は Code で比較する。With で作ったエラーも元のエラーと一致する
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// With は詳細を付けたコピーを返す
func (e *Error) With(format string, args ...any) *Error {
	cp := *e
	cp.Detail = fmt.Sprintf(format, args...)
	return &cp
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrNotAlive              = newError(KindPrecondition, "not_alive", "poster is not alive")
	ErrGameNotActive         = newError(KindPrecondition, "game_not_active", "game is not in progress")
	ErrGameNotInRegistration = newError(KindPrecondition, "game_not_in_registration", "game is not in registration")
	ErrWrongState            = newError(KindPrecondition, "wrong_state", "claim is not in a state that allows this action")
	ErrWrongTarget           = newError(KindPrecondition, "wrong_target", "victim is not the poster's current target")
	ErrTargetUnavailable     = newError(KindPrecondition, "target_unavailable", "target is already on notice from another claim")
	ErrNotEnoughPlayers      = newError(KindPrecondition, "not_enough_players", "at least two participants are required")

	ErrAlreadyJoined  = newError(KindConflict, "already_joined", "user already joined this game")
	ErrDuplicateClaim = newError(KindConflict, "duplicate_claim", "an unresolved claim already exists for this target")

	ErrForbidden = newError(KindAuthorization, "forbidden", "actor may not perform this action")
	ErrNotFound  = newError(KindNotFound, "not_found", "not found")
	ErrInvalid   = newError(KindValidation, "invalid_request", "invalid request")

	errIntegrity = newError(KindIntegrity, "integrity", "ring integrity violated")
)

// Integrity は不変条件違反を表す
func Integrity(format string, args ...any) *Error {
	return errIntegrity.With(format, args...)
}

// KindOf は err の種別を返す。基盤エラーは KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf は err のAPIコードを返す。ゲームエラー以外と整合性違反は "internal_error"
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindIntegrity {
		return e.Code
	}
	return "internal_error"
}
