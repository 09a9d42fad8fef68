package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/germesbot/germes/internal/admin"
	"github.com/germesbot/germes/internal/config"
	"github.com/germesbot/germes/internal/database"
	"github.com/germesbot/germes/internal/openai"
	"github.com/germesbot/germes/internal/repository"
	"github.com/germesbot/germes/internal/service"
	"github.com/germesbot/germes/internal/storage"
	"github.com/germesbot/germes/internal/telegram"
	"github.com/germesbot/germes/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	openaiClient := openai.NewClient(cfg, logr)

	userRepo := repository.NewUserRepository(db)
	allowRepo := repository.NewAllowListRepository(db)
	creditRepo := repository.NewCreditRepository(db)

	userService := service.NewUserService(userRepo)
	accessService := service.NewAccessService(cfg.SuperUserID, allowRepo, userRepo)
	creditService := service.NewCreditService(logr, creditRepo, cfg.ImagePrice, cfg.CreditLimit)
	generationService := service.NewGenerationService(logr, accessService, creditService, openaiClient, cfg.UploadInterval)

	var archive telegram.ImageStorage
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewUploader(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
		archive = uploader
	}

	bot := telegram.NewBot(cfg, botAPI, logr, userService, accessService, creditService, generationService, openaiClient, archive)

	adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, db, userService, accessService, creditService)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}
}
