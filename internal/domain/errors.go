package domain

import (
	"errors"
	"fmt"
)

// 错误分类。具体错误都包装其中一个分类，调用方使用 errors.Is 判断分类。
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrLockUnavailable  = errors.New("lock unavailable")
)

var (
	ErrRoomNotFound   = fmt.Errorf("room %w", ErrNotFound)
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)
	ErrTopicNotFound  = fmt.Errorf("topic %w", ErrNotFound)
	ErrAnswerNotFound = fmt.Errorf("answer %w", ErrNotFound)

	ErrRoomFull = fmt.Errorf("room is full: %w", ErrCapacityExceeded)

	ErrNotHost   = fmt.Errorf("only the host can perform this action: %w", ErrUnauthorized)
	ErrSelfVote  = fmt.Errorf("players cannot vote on their own answers: %w", ErrUnauthorized)
	ErrNotInRoom = fmt.Errorf("player does not belong to this room: %w", ErrUnauthorized)

	ErrRoundNotActive   = fmt.Errorf("no active round: %w", ErrInvalidState)
	ErrNotEnoughPlayers = fmt.Errorf("at least %d players are required: %w", MinPlayersToStart, ErrInvalidState)
)

// StateMismatchError 表示动作要求的生命周期状态与房间当前状态不一致。
type StateMismatchError struct {
	Action string
	Want   RoomState
	Got    RoomState
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("cannot %s: room is %s, expected %s", e.Action, e.Got, e.Want)
}

func (e *StateMismatchError) Unwrap() error { return ErrInvalidState }

func requireState(action string, want, got RoomState) error {
	if want != got {
		return &StateMismatchError{Action: action, Want: want, Got: got}
	}
	return nil
}
