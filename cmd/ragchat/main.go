package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/assembler"
	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/chunker"
	"github.com/xxxsen/ragchat/internal/config"
	"github.com/xxxsen/ragchat/internal/embedcache"
	"github.com/xxxsen/ragchat/internal/filestore"
	"github.com/xxxsen/ragchat/internal/graph"
	"github.com/xxxsen/ragchat/internal/handler"
	"github.com/xxxsen/ragchat/internal/index"
	"github.com/xxxsen/ragchat/internal/job"
	"github.com/xxxsen/ragchat/internal/memory"
	"github.com/xxxsen/ragchat/internal/middleware"
	"github.com/xxxsen/ragchat/internal/repo"
	"github.com/xxxsen/ragchat/internal/retriever"
	"github.com/xxxsen/ragchat/internal/schedule"
	"github.com/xxxsen/ragchat/internal/service"
)

func main() {
	var configPath string
	var migrationsDir string

	rootCmd := &cobra.Command{
		Use:   "ragchat",
		Short: "ragchat backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragchat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db, migrationsDir); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	runCmd.Flags().StringVar(&migrationsDir, "migrations", "migrations", "path to sql migrations")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildAI(cfg *config.Config, embedCacheRepo *repo.EmbeddingCacheRepo) (chatGen ai.IGenerator, jsonGen ai.IGenerator, embedder ai.IEmbedder, err error) {
	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	primary, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init ai provider: %w", err)
	}

	jsonModel := cfg.AI.JSONModel
	if jsonModel == "" {
		jsonModel = cfg.AI.ChatModel
	}

	chatEntries := []ai.GeneratorEntry{{Name: cfg.AI.Provider, Generator: ai.NewGenerator(primary, cfg.AI.ChatModel)}}
	jsonEntries := []ai.GeneratorEntry{{Name: cfg.AI.Provider, Generator: ai.NewGenerator(primary, jsonModel)}}
	embedEntries := []ai.EmbedderEntry{{Name: cfg.AI.Provider, Embedder: ai.NewEmbedder(primary, cfg.AI.EmbedModel)}}

	if cfg.AI.FallbackProvider != "" {
		fallback, err := ai.NewProvider(cfg.AI.FallbackProvider, cfg.AI.FallbackData)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init fallback ai provider: %w", err)
		}
		chatEntries = append(chatEntries, ai.GeneratorEntry{Name: cfg.AI.FallbackProvider, Generator: ai.NewGenerator(fallback, cfg.AI.ChatModel)})
		jsonEntries = append(jsonEntries, ai.GeneratorEntry{Name: cfg.AI.FallbackProvider, Generator: ai.NewGenerator(fallback, jsonModel)})
		embedEntries = append(embedEntries, ai.EmbedderEntry{Name: cfg.AI.FallbackProvider, Embedder: ai.NewEmbedder(fallback, cfg.AI.EmbedModel)})
	}

	chatGen = ai.NewGroupGenerator(chatEntries)
	jsonGen = ai.NewGroupGenerator(jsonEntries)
	embedder = ai.NewGroupEmbedder(embedEntries)

	aiTimeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	chatGen = ai.WithGeneratorTimeout(chatGen, aiTimeout)
	jsonGen = ai.WithGeneratorTimeout(jsonGen, aiTimeout)
	embedder = ai.WithEmbedderTimeout(embedder, aiTimeout)

	embedder = embedcache.WrapLruCacheToEmbedder(
		embedder,
		cfg.EmbedCache.LRUSize,
		time.Duration(cfg.EmbedCache.LRUTTLSeconds)*time.Second,
	)
	if cfg.EmbedCache.DBEnabled {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, embedCacheRepo)
	}
	return chatGen, jsonGen, embedder, nil
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("data_dir", cfg.DataDir),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	userRepo := repo.NewUserRepo(db)
	docRepo := repo.NewDocumentRepo(db)
	chunkRepo := repo.NewChunkRepo(db)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(db)

	chatGen, jsonGen, embedder, err := buildAI(cfg, embedCacheRepo)
	if err != nil {
		return err
	}

	store := index.NewStore(cfg.DataDir)
	graphs := graph.NewRegistry(store)
	graphs.Hydrate(context.Background(), cfg.DataDir)
	memStore := memory.NewStore(cfg.DataDir)
	gate := memory.NewGate(jsonGen, memStore, cfg.Memory.ConfidenceThreshold)
	answers := cache.New(cfg.Cache.Size, time.Duration(cfg.Cache.TTLSeconds)*time.Second)

	reranker := retriever.NewRerankClient(retriever.RerankConfig{
		BaseURL:        cfg.Rerank.Endpoint,
		APIKey:         cfg.Rerank.APIKey,
		Model:          cfg.Rerank.Model,
		TopN:           cfg.Rerank.TopN,
		TimeoutSeconds: cfg.AI.TimeoutSeconds,
	})
	retr := retriever.New(store, embedder, chatGen, reranker, retriever.Options{
		K:           cfg.Retrieval.K,
		FetchK:      cfg.Retrieval.FetchK,
		BM25Weight:  cfg.Retrieval.BM25Weight,
		DenseWeight: cfg.Retrieval.DenseWeight,
		LambdaMult:  cfg.Retrieval.LambdaMult,
		HydeEnabled: cfg.Retrieval.HydeEnabled,
	})

	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	ck := chunker.New(chunker.Config{
		MaxChars:         cfg.Chunking.MaxChars,
		OverlapSentences: cfg.Chunking.OverlapSentences,
		MinChars:         cfg.Chunking.MinChars,
	})
	extractor := graph.NewExtractor(jsonGen)
	asm := assembler.New(chunkRepo)
	locks := service.NewLockSet()

	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	ingestService := service.NewIngestService(
		docRepo, chunkRepo, ck, embedder, store, graphs, extractor,
		files, answers, locks, cfg.Upload.MaxUploadMB, cfg.Upload.SupportedTypes,
	)
	documentService := service.NewDocumentService(docRepo, chunkRepo, store, graphs, answers, locks)
	chatService := service.NewChatService(store, retr, asm, graphs, extractor, memStore, gate, chatGen, answers)
	memoryService := service.NewMemoryService(memStore, chatGen)
	graphService := service.NewGraphService(graphs)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Documents: handler.NewDocumentHandler(documentService, ingestService),
		Chat:      handler.NewChatHandler(chatService),
		Memory:    handler.NewMemoryHandler(memoryService),
		Graph:     handler.NewGraphHandler(graphService),
		Health:    handler.NewHealthHandler(db, answers),
		JWTSecret: []byte(cfg.JWTSecret),
		AskWindow: time.Duration(cfg.RateLimit.AskWindowSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := schedule.NewCronScheduler()
	if err := sched.AddJob(job.NewGraphCheckpointJob(graphs), cfg.Jobs.GraphCheckpointSpec); err != nil {
		return fmt.Errorf("schedule graph checkpoint: %w", err)
	}
	if cfg.EmbedCache.DBEnabled {
		if err := sched.AddJob(job.NewEmbeddingCacheCleanupJob(embedCacheRepo, cfg.EmbedCache.KeepDays), cfg.Jobs.EmbedCacheCleanSpec); err != nil {
			return fmt.Errorf("schedule embedding cache cleanup: %w", err)
		}
	}
	sched.Start(ctx)

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	sched.Stop()
	if err := graphs.Flush(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Error("final graph flush failed", zap.Error(err))
	}
	return nil
}
