package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"requirements-agent/handler"
	"requirements-agent/internal/config"
	"requirements-agent/internal/gateway"
	"requirements-agent/internal/integrations/openai"
	"requirements-agent/internal/integrations/paramstore"
	"requirements-agent/internal/metrics"
	"requirements-agent/internal/repository"
	"requirements-agent/internal/session"
	"requirements-agent/internal/usecase"
)

const openAIKeyParam = "openai-api-key"

// app holds the wired dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gen      *usecase.GenerateService
	sessions *session.Service
	memory   *session.MemoryStore
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	// ---- AWS SDK config, only when an AWS-backed feature is enabled ----
	var awsCfg *aws.Config
	if cfg.ParamPrefix != "" || cfg.SessionTable != "" {
		loaded, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		awsCfg = &loaded
	}

	// ---- Text generation ----
	llmOpts := []openai.Option{
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.GatewayTimeout}),
	}
	if cfg.OpenAIAPIKey != "" {
		llmOpts = append(llmOpts, openai.WithAPIKey(cfg.OpenAIAPIKey))
	} else if cfg.ParamPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(*awsCfg))
		if err != nil {
			return nil, fmt.Errorf("create SSM client: %w", err)
		}
		llmOpts = append(llmOpts, openai.WithParamStore(ssmClient, paramstore.Name(cfg.ParamPrefix, openAIKeyParam)))
	}
	if !cfg.HasCredentialSource() {
		logger.Warn("no AI credential configured; set OPENAI_API_KEY or PARAM_PREFIX. Generation requests will fail")
	}

	gen, err := usecase.NewGenerateService(openai.NewClient(llmOpts...), cfg.OpenAIModel, cfg.MaxInputLength, logger,
		usecase.WithOutcomeHook(a.metrics.Generate))
	if err != nil {
		return nil, fmt.Errorf("create generate service: %w", err)
	}
	a.gen = gen

	// ---- Response gateway ----
	gwOpts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithFallbackHook(a.metrics.GatewayFallback),
	}
	var gw session.Gateway
	if cfg.RemoteGateway() {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(&http.Client{Timeout: cfg.GatewayTimeout}))
		remote, err := gateway.New(cfg.GenerateEndpoint, gwOpts...)
		if err != nil {
			return nil, fmt.Errorf("create gateway: %w", err)
		}
		gw = remote
		logger.Info("using remote generate endpoint", "endpoint", cfg.GenerateEndpoint)
	} else {
		local, err := gateway.NewLocal(gen, gwOpts...)
		if err != nil {
			return nil, fmt.Errorf("create gateway: %w", err)
		}
		gw = local
	}

	// ---- Session store ----
	var store session.Store
	if cfg.SessionTable != "" {
		dynamo, err := repository.New(awsdynamodb.NewFromConfig(*awsCfg), cfg.SessionTable, repository.WithTTL(cfg.SessionTTL))
		if err != nil {
			return nil, fmt.Errorf("create session repository: %w", err)
		}
		store = dynamo
		logger.Info("using DynamoDB session store", "table", cfg.SessionTable)
	} else {
		a.memory = session.NewMemoryStore(cfg.SessionTTL)
		store = a.memory
	}

	sessions, err := session.NewService(store, gw,
		session.WithMetrics(a.metrics),
		session.WithLogger(logger),
		session.WithMaxInputLength(cfg.MaxInputLength),
	)
	if err != nil {
		return nil, fmt.Errorf("create session service: %w", err)
	}
	a.sessions = sessions
	return a, nil
}

func (a *app) router(static http.Handler) (http.Handler, error) {
	h, err := handler.NewHandler(a.gen, a.sessions, a.logger)
	if err != nil {
		return nil, fmt.Errorf("create handler: %w", err)
	}
	return handler.NewRouter(h, handler.RouterConfig{
		AllowedOrigins: a.cfg.AllowedOrigins,
		Metrics:        a.metrics.Handler(),
		Static:         static,
	}), nil
}
