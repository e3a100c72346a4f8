package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
	ErrCommitFailed                 = errors.New("redis commit failed")
	ErrListFailed                   = errors.New("redis index range read failed")
	ErrPruneFailed                  = errors.New("redis index prune failed")
	ErrReadFailed                   = errors.New("redis read failed")
)
