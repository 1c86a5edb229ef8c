package handlers

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ThunderboltDev/Resound/internal/agent"
	"github.com/ThunderboltDev/Resound/internal/ai"
	"github.com/ThunderboltDev/Resound/internal/config"
	"github.com/ThunderboltDev/Resound/internal/conversation"
	"github.com/ThunderboltDev/Resound/internal/email"
	"github.com/ThunderboltDev/Resound/internal/knowledge"
	"github.com/ThunderboltDev/Resound/internal/models"
	"github.com/ThunderboltDev/Resound/internal/session"
	"github.com/ThunderboltDev/Resound/internal/store/redisstore"
	"github.com/ThunderboltDev/Resound/internal/thread"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	SMTPSetting email.SMTPConfig
	Tenants     *models.Repo
	Sessions    *session.Registry
	Convs       *conversation.Service
	// Enhancer polishes operator drafts; same provider the agent uses.
	Enhancer ai.Provider
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, bus conversation.EventPublisher) (*Handler, error) {
	// provider registry (resolve by AI_PROVIDER, model defaulted per provider)
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey,
			m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	provider, err := reg.GetTools(context.Background(), cfg.AIProvider, "")
	if err != nil {
		return nil, err
	}

	tenants := models.NewRepo(db)
	sessions := session.NewRegistry(db)
	threads := thread.NewRepo(db)
	convRepo := conversation.NewRepo(db)
	search := knowledge.NewClient(cfg.KnowledgeBaseURL)

	runner := agent.NewRunner(provider, provider, threads, convRepo, search,
		cfg.AgentContextWindowSize, cfg.AgentMaxToolRounds, cfg.KnowledgeSearchLimit)
	if bus != nil {
		runner = runner.WithEvents(bus)
	}
	if rds != nil {
		runner = runner.WithLive(rds)
	}

	convSvc := conversation.NewService(convRepo, sessions, threads, runner, tenants)
	if bus != nil {
		convSvc = convSvc.WithEvents(bus)
	}
	if rds != nil {
		convSvc = convSvc.WithLive(rds)
	}

	return &Handler{
		DB:    db,
		Cfg:   cfg,
		Redis: rds,
		SMTPSetting: email.SMTPConfig{Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom},
		Tenants:  tenants,
		Sessions: sessions,
		Convs:    convSvc,
		Enhancer: provider,
	}, nil
}
