package main

import (
	"flag"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"gatebot/bot"
	"gatebot/impl/core"
	"gatebot/impl/guard"
	"gatebot/internal/config"
	"gatebot/internal/database"
	"gatebot/internal/http-server/api"
	"gatebot/lib/logger"
	"gatebot/lib/sl"
)

const logFileName = "gatebot.log"

// Store is the full storage contract the application needs; both the
// Mongo and the MySQL backends implement it.
type Store interface {
	bot.Database
	guard.CredentialStore
	core.Database
}

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	lg.Info("starting gatebot", slog.String("config", *configPath), slog.String("env", conf.Env))

	var db Store
	if conf.Mongo.Enabled {
		db = database.NewMongoClient(conf)
		lg.Info("using mongo storage", slog.String("host", conf.Mongo.Host))
	} else if conf.MySql.Enabled {
		sqlDb, err := database.NewSQLClient(conf)
		if err != nil {
			log.Fatal("mysql connect: ", err)
		}
		defer sqlDb.Close()
		db = sqlDb
		lg.Info("using mysql storage", slog.String("host", conf.MySql.HostName))
	} else {
		log.Fatal("no storage backend enabled in configuration")
	}

	tgBot, err := bot.NewTgBot(conf.Telegram.ApiKey, db, lg, bot.BotConfig{
		AdminId:      conf.Telegram.AdminId,
		WelcomeImage: conf.Telegram.WelcomeImage,
	})
	if err != nil {
		log.Fatal("telegram bot: ", err)
	}

	guardConf := guard.Config{
		LinkTTL:    time.Duration(conf.Guard.LinkTTLSec) * time.Second,
		Cooldown:   time.Duration(conf.Guard.CooldownSec) * time.Second,
		LockWindow: time.Duration(conf.Guard.LockWindowSec) * time.Second,
		Grace:      time.Duration(conf.Guard.GraceSec) * time.Second,
	}
	issuer := guard.NewLinkIssuer(db, db, tgBot.Platform(), guardConf, lg)
	joinGuard := guard.NewJoinGuard(db, db, tgBot.Platform(), guardConf, lg)
	tgBot.SetGuard(issuer, joinGuard)

	sweeper := guard.NewSweeper(db, guardConf, time.Duration(conf.Guard.SweepIntervalSec)*time.Second, lg)
	sweeper.Start()
	defer sweeper.Stop()

	coreService := core.New(db, conf.Env, lg)
	go func() {
		if err := api.New(conf, lg, coreService); err != nil {
			lg.Error("api server stopped", sl.Err(err))
		}
	}()

	if err = tgBot.Start(); err != nil {
		log.Fatal("bot polling: ", err)
	}
}
