package mongo

import "errors"

var (
	ErrEmptyConnectionURL     = errors.New("empty mongo connection url, use MONGODB_URL env var")
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrHealthcheckFailed      = errors.New("mongo healthcheck failed")

	ErrReadFailed   = errors.New("mongo.read_failed")
	ErrCommitFailed = errors.New("mongo.commit_failed")
	ErrIndexFailed  = errors.New("mongo.index_failed")
)
