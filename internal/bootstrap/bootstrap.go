package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"vesta-voice/internal/app/services"
	"vesta-voice/internal/domain/auth"
	"vesta-voice/internal/domain/classifier"
	"vesta-voice/internal/domain/eventbus"
	"vesta-voice/internal/domain/prefs/store"
	"vesta-voice/internal/domain/push"
	"vesta-voice/internal/domain/tts/edge"
	platformconfig "vesta-voice/internal/platform/config"
	platformerrors "vesta-voice/internal/platform/errors"
	platformlogging "vesta-voice/internal/platform/logging"
	platformobservability "vesta-voice/internal/platform/observability"
	platformstorage "vesta-voice/internal/platform/storage"
	httptransport "vesta-voice/internal/transport/http"
	httpwebapi "vesta-voice/internal/transport/http/webapi"
	"vesta-voice/internal/transport/ws"
)

const (
	eventWorkers    = 4
	shutdownTimeout = 15 * time.Second
)

// Options 启动参数
type Options struct {
	ConfigPath string
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	configPath            string
	config                *platformconfig.Config
	logger                *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc

	db       *gorm.DB
	prefs    store.Store
	sessions store.Store
	tokens   *auth.Resolver
	issuer   *auth.TokenIssuer

	bus        *eventbus.Bus
	classifier *classifier.Client
	speech     *edge.Provider
	voice      *services.Service
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context, opts Options) error {
	state := &appState{configPath: opts.ConfigPath}

	steps := InitGraph()
	err := executeInitSteps(ctx, steps, state)
	defer state.close()
	if err != nil {
		return err
	}

	logger := state.logger
	if state.config == nil || logger == nil || state.voice == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger/voice service not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}

	return waitForShutdown(signalCtx, cancel, logger, group)
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag(platformlogging.TagBootstrap, "初始化依赖关系概览")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag(platformlogging.TagBootstrap, "%s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag(platformlogging.TagBootstrap, "%s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
	logger.InfoTag(platformlogging.TagBootstrap, "启动服务")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph 按依赖顺序列出初始化步骤
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration file and environment",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "prefs:init-stores",
			Title:     "Initialise preference stores",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initPrefsStep,
		},
		{
			ID:        "auth:init-resolver",
			Title:     "Initialise token resolver",
			DependsOn: []string{"prefs:init-stores"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initAuthStep,
		},
		{
			ID:        "eventbus:init",
			Title:     "Initialise event bus",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "classifier:init-client",
			Title:     "Initialise command classifier client",
			DependsOn: []string{"observability:setup-hooks"},
			Kind:      platformerrors.KindClassifier,
			Execute:   initClassifierStep,
		},
		{
			ID:        "tts:init-provider",
			Title:     "Initialise server-side synthesis",
			DependsOn: []string{"observability:setup-hooks"},
			Kind:      platformerrors.KindSynthesis,
			Execute:   initSynthesisStep,
		},
		{
			ID:        "voice:init-service",
			Title:     "Initialise voice session service",
			DependsOn: []string{"auth:init-resolver", "eventbus:init", "classifier:init-client", "tts:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initVoiceServiceStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := platformconfig.NewLoader().WithPath(state.configPath)
	config, err := loader.Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load config", err)
	}
	state.config = config
	state.configPath = loader.Path()
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logProvider, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logProvider
	state.slogger = logProvider.Slog()
	state.logger.InfoTag(
		platformlogging.TagBootstrap,
		"日志模块就绪 [%s] %s",
		state.config.Log.Level,
		state.configPath,
	)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initDatabaseStep(ctx context.Context, state *appState) error {
	if !strings.EqualFold(state.config.Store.Driver, store.DriverSQLite) {
		state.logger.InfoTag(platformlogging.TagStorage, "存储驱动为 %s，跳过数据库初始化", state.config.Store.Driver)
		return nil
	}
	db, err := platformstorage.Open(state.config.Store.SQLite.DSN)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to initialize database", err)
	}
	state.db = db
	state.logger.InfoTag(platformlogging.TagStorage, "数据库就绪 %s", state.config.Store.SQLite.DSN)

	status, err := platformstorage.Schema(db).Status(ctx)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to read schema status", err)
	}
	for _, m := range status {
		state.logger.DebugTag(platformlogging.TagStorage, "迁移 %s (%s) applied_at=%v", m.Version, m.Description, m.AppliedAt)
	}
	return nil
}

func initPrefsStep(_ context.Context, state *appState) error {
	cfg := state.config.Store
	storeCfg := store.Config{
		Driver:    strings.ToLower(strings.TrimSpace(cfg.Driver)),
		TTL:       cfg.TTL,
		Namespace: cfg.Namespace,
	}
	switch storeCfg.Driver {
	case store.DriverRedis:
		storeCfg.Redis = &store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}
	case store.DriverMemory:
		storeCfg.Memory = &store.MemoryConfig{GCInterval: 10 * time.Minute}
	}

	prefs, err := store.New(storeCfg, store.Dependencies{SQLiteDB: state.db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "prefs:init-stores", "failed to create preference store", err)
	}
	state.prefs = prefs

	// 会话级令牌只活在进程内，与页面会话同生命周期
	state.sessions = store.NewMemory(store.Config{
		Driver:    store.DriverMemory,
		Namespace: cfg.Namespace,
		Memory:    &store.MemoryConfig{GCInterval: 10 * time.Minute},
	})
	state.logger.InfoTag(platformlogging.TagStorage, "偏好存储就绪 driver=%s", storeCfg.Driver)
	return nil
}

func initAuthStep(_ context.Context, state *appState) error {
	order, err := auth.ParseSources(state.config.Auth.TokenSources)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "auth:init-resolver", "invalid token sources", err)
	}
	resolver, err := auth.NewResolver(auth.Options{
		Order:       order,
		Session:     state.sessions,
		Local:       state.prefs,
		GlobalToken: state.config.Auth.GlobalToken,
		Logger:      state.logger.WithTag(platformlogging.TagAuth),
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "auth:init-resolver", "failed to create token resolver", err)
	}
	state.tokens = resolver

	if secret := strings.TrimSpace(state.config.Auth.IssuerSecret); secret != "" {
		state.issuer = auth.NewTokenIssuer(secret).WithTTL(state.config.Auth.IssuerTTL)
		state.logger.WarnTag(platformlogging.TagAuth, "已启用开发令牌签发接口 /api/auth/token")
	}

	names := make([]string, 0, len(order))
	for _, src := range order {
		names = append(names, string(src))
	}
	state.logger.InfoTag(platformlogging.TagAuth, "令牌来源顺序: %s", strings.Join(names, " > "))
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.New(eventWorkers)
	if err := eventbus.SetupEventHandlers(bus, eventbus.NewDefaultEventHandler(state.logger)); err != nil {
		bus.Shutdown()
		return platformerrors.Wrap(platformerrors.KindBootstrap, "eventbus:init", "failed to subscribe event handlers", err)
	}
	state.bus = bus
	return nil
}

func initClassifierStep(_ context.Context, state *appState) error {
	client, err := classifier.New(classifier.Options{
		BaseURL: state.config.Classifier.APIBaseURL,
		Timeout: state.config.Classifier.Timeout,
		Logger:  state.logger,
	})
	if err != nil {
		return err
	}
	state.classifier = client
	state.logger.InfoTag(platformlogging.TagClassifier, "命令分类接口 %s", client.Endpoint())
	return nil
}

func initSynthesisStep(_ context.Context, state *appState) error {
	cfg := state.config.Synthesis
	if !strings.EqualFold(cfg.Mode, "edge") {
		state.logger.InfoTag(platformlogging.TagTTS, "使用浏览器语音合成")
		return nil
	}
	state.speech = edge.New(edge.Config{
		Voice:     cfg.Voice,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	}, state.logger)
	state.logger.InfoTag(platformlogging.TagTTS, "使用 Edge 语音合成 voice=%s", state.speech.Voice())
	return nil
}

func initVoiceServiceStep(_ context.Context, state *appState) error {
	deps := services.Dependencies{
		Config:     state.config,
		Logger:     state.logger,
		Events:     state.bus,
		Classifier: state.classifier,
		Tokens:     state.tokens,
		Sessions:   state.sessions,
		Prefs:      state.prefs,
	}
	if state.speech != nil {
		deps.Synthesis = state.speech
	}
	svc, err := services.NewService(deps)
	if err != nil {
		return err
	}
	state.voice = svc
	return nil
}

// close 按初始化的逆序释放资源
func (s *appState) close() {
	if s.voice != nil {
		s.voice.CloseAll()
	}
	if s.speech != nil {
		s.speech.Close()
	}
	if s.tokens != nil {
		_ = s.tokens.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, st := range []store.Store{s.sessions, s.prefs} {
		if st == nil {
			continue
		}
		if err := st.Close(ctx); err != nil {
			s.logger.WarnTag(platformlogging.TagStorage, "存储未正常关闭: %v", err)
		}
	}
	if s.bus != nil {
		s.bus.Shutdown()
	}
	if err := platformstorage.Close(s.db); err != nil {
		s.logger.WarnTag(platformlogging.TagStorage, "数据库未正常关闭: %v", err)
	}
	if s.observabilityShutdown != nil {
		if err := s.observabilityShutdown(ctx); err != nil {
			s.logger.WarnTag(platformlogging.TagBootstrap, "可观测性未正常关闭: %v", err)
		}
	}
	if s.logger != nil {
		s.logger.Close()
	}
	s.voice, s.speech, s.tokens, s.sessions, s.prefs = nil, nil, nil, nil, nil
	s.bus, s.db, s.observabilityShutdown, s.logger = nil, nil, nil, nil
}

func buildHandler(state *appState, groupCtx context.Context) (http.Handler, *ws.Router, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, err
	}
	router := httpRouter.Engine

	staticDir := config.Web.StaticDir
	router.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api") || staticDir == "" {
			httptransport.Fail(c, http.StatusNotFound, platformerrors.New(platformerrors.KindTransport, "http.route", "api Not found"))
			return
		}
		c.File(filepath.Join(staticDir, "index.html"))
	})

	wsRouter := ws.NewRouter(ws.NewHub(logger), logger, ws.RouterOptions{
		HandshakeTimeout: config.Server.HandshakeTimeout,
		AllowOrigins:     config.Web.AllowOrigins,
	})
	wsRouter.SetHandlerBuilder(state.voice.NewSession)
	router.GET(config.Server.WebSocketPath, gin.WrapF(wsRouter.Handle))

	webapiOpts := httpwebapi.Options{
		Config:   config,
		Logger:   logger,
		Sessions: state.voice,
		Renderer: push.NewRenderer(),
		Issuer:   state.issuer,
	}
	if state.db != nil {
		webapiOpts.Schema = platformstorage.Schema(state.db)
	}
	webapiService, err := httpwebapi.NewService(webapiOpts)
	if err != nil {
		logger.ErrorTag(platformlogging.TagHTTP, "WebAPI 服务初始化失败: %v", err)
		return nil, nil, platformerrors.Wrap(platformerrors.KindTransport, "webapi:new-service", "failed to create webapi service", err)
	}
	if err := webapiService.Register(groupCtx, httpRouter.API); err != nil {
		return nil, nil, err
	}
	return router, wsRouter, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	handler, wsRouter, err := buildHandler(state, groupCtx)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag(platformlogging.TagHTTP, "Gin 服务已启动，访问地址 http://%s", addr)
		logger.InfoTag(platformlogging.TagWebSocket, "语音会话入口: ws://%s%s", addr, config.Server.WebSocketPath)

		go func() {
			<-groupCtx.Done()
			wsRouter.Hub().CloseAll(ws.ErrSessionShutdown)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag(platformlogging.TagHTTP, "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag(platformlogging.TagHTTP, "HTTP 服务已优雅关闭")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag(platformlogging.TagHTTP, "HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag(platformlogging.TagBootstrap, "收到系统信号 %v，正在进行资源清理", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag(platformlogging.TagBootstrap, "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag(platformlogging.TagBootstrap, "所有服务已成功关闭")
	case <-time.After(shutdownTimeout):
		logger.ErrorTag(platformlogging.TagBootstrap, "服务关闭超时，已强制退出")
		return errors.New("服务关闭超时")
	}
	return nil
}

