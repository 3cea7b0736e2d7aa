package core

import (
	"context"
	"log/slog"
	"time"

	"gatebot/entity"
	"gatebot/lib/sl"
)

type Database interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	CountUsers(ctx context.Context) (int64, error)
	CountActiveCredentials(ctx context.Context, now time.Time) (int64, error)
}

// Core backs the operations API with read/write access to bot state.
type Core struct {
	db  Database
	env string
	log *slog.Logger
}

func New(db Database, env string, log *slog.Logger) Core {
	if db == nil {
		panic("database is nil")
	}
	return Core{
		db:  db,
		env: env,
		log: log.With(sl.Module("core")),
	}
}

func (c Core) Status(ctx context.Context) (*entity.Status, error) {
	status := &entity.Status{
		Env: c.env,
	}

	chatId, err := c.db.GetSetting(ctx, entity.SettingPrivateChatId)
	if err != nil {
		return nil, err
	}
	status.ChatConfigured = chatId != ""

	status.ActiveCredentials, err = c.db.CountActiveCredentials(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	status.KnownUsers, err = c.db.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	return status, nil
}

func (c Core) Setting(ctx context.Context, key string) (*entity.Setting, error) {
	value, err := c.db.GetSetting(ctx, key)
	if err != nil {
		return nil, err
	}
	return &entity.Setting{Key: key, Value: value}, nil
}

func (c Core) SaveSetting(ctx context.Context, setting *entity.Setting) error {
	err := c.db.SetSetting(ctx, setting.Key, setting.Value)
	if err != nil {
		return err
	}
	c.log.Info("setting updated", slog.String("key", setting.Key))
	return nil
}
