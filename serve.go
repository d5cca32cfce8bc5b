package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pdfrenamer/internal/api"
	"pdfrenamer/internal/config"
	"pdfrenamer/internal/redis"
	"pdfrenamer/internal/service/ai"
	"pdfrenamer/internal/service/renamer"
	"pdfrenamer/internal/session"
	"pdfrenamer/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload and rename web interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config) error {
	dbType := os.Getenv("PDFRENAMER_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		return err
	}
	history := storage.NewHistory(db)

	var cache ai.TitleCache
	if cfg.Redis.Enabled {
		rdb, err := redis.New(cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = ai.NewRedisTitleCache(rdb, time.Duration(cfg.Model.CacheTTLMinute)*time.Minute)
	}

	titles := ai.NewTitleGenerator(titleOptions(cfg), cache)
	svc := renamer.NewService(ai.NewLoader(cfg), titles, history)

	sessions := session.NewStore(time.Duration(cfg.BasicConfig.SessionTTL) * time.Minute)
	cleanCtx, cleanCancel := context.WithCancel(context.Background())
	defer cleanCancel()
	sessions.StartCleaner(cleanCtx, time.Duration(cfg.BasicConfig.CleanupInterval)*time.Minute)

	handlers := api.NewHandler(svc, sessions, history)
	router := gin.New()
	router.Use(gin.Logger())
	handlers.RegisterRoutes(router)

	log.Printf("listening on %s", cfg.BasicConfig.ServerAddress)
	return router.Run(cfg.BasicConfig.ServerAddress)
}

func titleOptions(cfg *config.Config) ai.TitleOptions {
	return ai.TitleOptions{
		MaxInputChars: cfg.Model.MaxInputChars,
		MinTokens:     cfg.Model.MinTokens,
		MaxTokens:     cfg.Model.MaxTokens,
		RatePerMinute: cfg.Model.RatePerMinute,
	}
}
