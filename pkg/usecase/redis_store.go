package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

// RedisReportStore keeps the latest report as a JSON string under one key.
type RedisReportStore struct {
	client *redis.Client
	key    string
}

// NewRedisReportStore connects to the server given by a redis:// URL and
// verifies the connection.
func NewRedisReportStore(ctx context.Context, redisURL, key string) (*RedisReportStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, domain.ErrConfiguration.Wrap(goerr.Wrap(err, "invalid redis URL"))
	}
	if key == "" {
		key = model.DefaultRedisKey
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, domain.ErrStore.Wrap(goerr.Wrap(err, "failed to connect to Redis", goerr.V("addr", opts.Addr)))
	}

	return &RedisReportStore{client: client, key: key}, nil
}

func (s *RedisReportStore) Save(ctx context.Context, report model.Report) error {
	data, err := EncodeReport(report)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return domain.ErrStore.Wrap(goerr.Wrap(err, "failed to save report", goerr.V("key", s.key)))
	}
	return nil
}

func (s *RedisReportStore) Load(ctx context.Context) (model.Report, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrReportNotFound.Wrap(err)
		}
		return nil, domain.ErrStore.Wrap(goerr.Wrap(err, "failed to load report", goerr.V("key", s.key)))
	}
	return DecodeReport(data)
}

func (s *RedisReportStore) Close() error {
	return s.client.Close()
}
