package redisstore

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/sitechat/internal/settings"
)

const (
	fieldAPIKey   = "api_key"
	fieldModel    = "model"
	fieldEndpoint = "endpoint"
)

// SettingsStore keeps the completion settings in one Redis hash. Fields that
// were never saved fall back to the process defaults.
type SettingsStore struct {
	rdb      *redis.Client
	key      string
	defaults settings.Settings
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewSettingsStore(rdb *redis.Client, key string, defaults settings.Settings) *SettingsStore {
	if key == "" {
		key = "sitechat:settings"
	}
	return &SettingsStore{rdb: rdb, key: key, defaults: defaults}
}

func (s *SettingsStore) Current(ctx context.Context) (settings.Settings, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return settings.Settings{}, err
	}

	out := s.defaults
	if v, ok := vals[fieldAPIKey]; ok {
		out.APIKey = v
	}
	if v, ok := vals[fieldModel]; ok {
		out.Model = v
	}
	if v, ok := vals[fieldEndpoint]; ok {
		out.Endpoint = v
	}
	return out.WithDefaults(), nil
}

func (s *SettingsStore) Save(ctx context.Context, in settings.Settings) error {
	return s.rdb.HSet(ctx, s.key, map[string]any{
		fieldAPIKey:   in.APIKey,
		fieldModel:    in.Model,
		fieldEndpoint: in.Endpoint,
	}).Err()
}
