package service

import (
	"errors"
	"fmt"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidToken       = errors.New("invalid or expired player token")
	ErrCodeGenerationFail = errors.New("failed to generate a unique room code")
	ErrTopicTaken         = fmt.Errorf("topic name already exists: %w", ErrValidation)
)

// validationError 包装 ErrValidation 并附带具体原因
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mapRepoError 把仓库层的 ErrNotFound 映射为调用方传入的领域错误，其他错误原样包装返回。
func mapRepoError(err error, notFound error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsClientError 报告错误是否属于不应重试的业务错误
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidState) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrCapacityExceeded) ||
		errors.Is(err, ErrValidation)
}
