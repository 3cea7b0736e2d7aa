package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type TelegramConfig struct {
	ApiKey       string `yaml:"api_key" env:"BOT_TOKEN" env-default:""`
	AdminId      int64  `yaml:"admin_id" env:"ADMIN_ID" env-default:"0"`
	WelcomeImage string `yaml:"welcome_image" env-default:""`
}

// GuardConfig holds the temporal policy of the invite gate.
// Values are in seconds to keep the YAML flat.
type GuardConfig struct {
	LinkTTLSec       int `yaml:"link_ttl_sec" env-default:"15"`
	CooldownSec      int `yaml:"cooldown_sec" env-default:"1800"`
	LockWindowSec    int `yaml:"lock_window_sec" env-default:"3"`
	GraceSec         int `yaml:"grace_sec" env-default:"10"`
	SweepIntervalSec int `yaml:"sweep_interval_sec" env-default:"60"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"gatebot"`
}

type MySqlConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	HostName string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"3306"`
	UserName string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"gatebot"`
}

type ApiConfig struct {
	Token string `yaml:"token" env-default:""`
}

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Guard    GuardConfig    `yaml:"guard"`
	Mongo    MongoConfig    `yaml:"mongo"`
	MySql    MySqlConfig    `yaml:"mysql"`
	Api      ApiConfig      `yaml:"api"`
	Listen   Listen         `yaml:"listen"`
	Env      string         `yaml:"env" env-default:"local"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
