package webapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"

	"vesta-voice/internal/domain/auth"
	"vesta-voice/internal/domain/push"
	"vesta-voice/internal/domain/voice"
	"vesta-voice/internal/platform/config"
	"vesta-voice/internal/platform/errors"
	"vesta-voice/internal/platform/logging"
	"vesta-voice/internal/platform/observability"
	"vesta-voice/internal/platform/storage"
	httptransport "vesta-voice/internal/transport/http"
)

const maxPushBody = 16 << 10

// Sessions is the live page-session registry the API reports on and pushes to.
type Sessions interface {
	Count() int
	Broadcast(notification interface{}) int
}

// Options 构造 Service 所需依赖
type Options struct {
	Config   *config.Config
	Logger   *logging.Logger
	Sessions Sessions
	Renderer *push.Renderer
	// Issuer 为 nil 时不开放 /auth/token
	Issuer *auth.TokenIssuer
	// Schema 为 nil 时健康报告不含迁移状态
	Schema SchemaReporter
}

// SchemaReporter reports database migration state for the health report.
type SchemaReporter interface {
	Status(ctx context.Context) ([]storage.MigrationStatus, error)
}

// Service WebAPI服务的HTTP传输层实现
type Service struct {
	logger   *logging.Logger
	config   *config.Config
	sessions Sessions
	renderer *push.Renderer
	issuer   *auth.TokenIssuer
	schema   SchemaReporter
	started  time.Time
}

// NewService 创建新的WebAPI服务实例
func NewService(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "config is required")
	}
	if opts.Logger == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "logger is required")
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = push.NewRenderer()
	}
	return &Service{
		logger:   opts.Logger,
		config:   opts.Config,
		sessions: opts.Sessions,
		renderer: renderer,
		issuer:   opts.Issuer,
		schema:   opts.Schema,
		started:  time.Now(),
	}, nil
}

// Register 注册WebAPI相关的HTTP路由
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.GET("/health", s.handleHealth)
	router.GET("/voice/routes", s.handleRoutes)
	router.POST("/push/render", s.handlePushRender)

	secured := router.Group("")
	secured.Use(s.authMiddleware())
	secured.POST("/push/broadcast", s.handlePushBroadcast)

	if s.issuer != nil {
		router.POST("/auth/token", s.handleIssueToken)
	}

	s.logger.InfoTag(logging.TagHTTP, "WebAPI服务路由注册完成")
	return nil
}

// HealthReport /api/health 返回内容
type HealthReport struct {
	Status     string                    `json:"status"`
	Uptime     string                    `json:"uptime"`
	Sessions   int                       `json:"sessions"`
	Goroutines int                       `json:"goroutines"`
	Process    *ProcessStats             `json:"process,omitempty"`
	Metrics    map[string]float64        `json:"metrics,omitempty"`
	Schema     []storage.MigrationStatus `json:"schema,omitempty"`
}

// ProcessStats 进程资源占用
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
}

func (s *Service) handleHealth(c *gin.Context) {
	report := HealthReport{
		Status:     "ok",
		Uptime:     time.Since(s.started).Truncate(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Metrics:    observability.Snapshot(),
	}
	if s.sessions != nil {
		report.Sessions = s.sessions.Count()
	}
	if s.schema != nil {
		schema, err := s.schema.Status(c.Request.Context())
		if err != nil {
			s.logger.WarnTag(logging.TagStorage, "读取迁移状态失败: %v", err)
			report.Status = "degraded"
		} else {
			report.Schema = schema
		}
		for _, m := range report.Schema {
			if m.AppliedAt == nil {
				report.Status = "degraded"
			}
		}
	}
	stats, err := processStats(c.Request.Context())
	if err != nil {
		s.logger.DebugTag(logging.TagHTTP, "读取进程信息失败: %v", err)
	} else {
		report.Process = stats
	}
	httptransport.OK(c, report)
}

func processStats(ctx context.Context) (*ProcessStats, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	stats := &ProcessStats{PID: proc.Pid}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	if threads, err := proc.NumThreadsWithContext(ctx); err == nil {
		stats.Threads = threads
	}
	return stats, nil
}

// RoutesReport 本地导航表与可调用的页面函数
type RoutesReport struct {
	Language  string                  `json:"language"`
	Routes    []voice.NavigationRoute `json:"routes"`
	Functions []string                `json:"functions"`
}

func (s *Service) handleRoutes(c *gin.Context) {
	a := s.config.Assistant
	routes := voice.DefaultRoutes()
	if len(a.Routes) > 0 {
		routes = routes[:0]
		for _, r := range a.Routes {
			routes = append(routes, voice.NavigationRoute{
				Name:         r.Name,
				Keywords:     r.Keywords,
				TargetURL:    r.URL,
				Confirmation: r.Confirmation,
			})
		}
	}
	functions := append([]string{"setTheme"}, a.Functions...)
	httptransport.OK(c, RoutesReport{
		Language:  a.Language,
		Routes:    routes,
		Functions: functions,
	})
}

func (s *Service) decodePush(c *gin.Context) (push.Notification, bool) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBody))
	if err != nil {
		httptransport.Fail(c, http.StatusBadRequest, errors.Wrap(errors.KindTransport, "webapi.push", "无法读取请求体", err))
		return push.Notification{}, false
	}
	n, err := s.renderer.Decode(raw)
	if err != nil {
		httptransport.Fail(c, http.StatusBadRequest, errors.Wrap(errors.KindDomain, "webapi.push", err.Error(), err))
		return push.Notification{}, false
	}
	return n, true
}

func (s *Service) handlePushRender(c *gin.Context) {
	n, ok := s.decodePush(c)
	if !ok {
		return
	}
	httptransport.OK(c, n)
}

func (s *Service) handlePushBroadcast(c *gin.Context) {
	n, ok := s.decodePush(c)
	if !ok {
		return
	}
	if s.sessions == nil {
		httptransport.Fail(c, http.StatusServiceUnavailable, errors.New(errors.KindBootstrap, "webapi.broadcast", "语音会话服务未就绪"))
		return
	}
	delivered := s.sessions.Broadcast(n)
	httptransport.OK(c, BroadcastReport{Delivered: delivered, Notification: n})
}

// BroadcastReport /api/push/broadcast 返回内容
type BroadcastReport struct {
	Delivered    int               `json:"delivered"`
	Notification push.Notification `json:"notification"`
}

// TokenReply /api/auth/token 返回内容
type TokenReply struct {
	Token string `json:"token"`
}

type tokenRequest struct {
	ClientID string `json:"client_id" binding:"required"`
}

func (s *Service) handleIssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.Fail(c, http.StatusBadRequest, errors.Wrap(errors.KindTransport, "webapi.token", "缺少 client_id", err))
		return
	}
	token, err := s.issuer.Issue(req.ClientID)
	if err != nil {
		s.logger.ErrorTag(logging.TagHTTP, "签发令牌失败: %v", err)
		httptransport.Fail(c, http.StatusInternalServerError, errors.Wrap(errors.KindDomain, "webapi.token", "签发令牌失败", err))
		return
	}
	httptransport.OK(c, TokenReply{Token: token})
}

// authMiddleware 推送广播需要 AuthorToken（全局令牌）或签发器签发的 Bearer 令牌
func (s *Service) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if apikey := c.GetHeader("AuthorToken"); apikey != "" {
			if s.config.Auth.GlobalToken == "" || apikey != s.config.Auth.GlobalToken {
				s.logger.WarnTag(logging.TagHTTP, "无效的API Token")
				httptransport.Fail(c, http.StatusUnauthorized, errUnauthorized("无效的API Token"))
				return
			}
			c.Next()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			httptransport.Fail(c, http.StatusUnauthorized, errUnauthorized("未提供认证token"))
			return
		}
		if s.issuer == nil {
			httptransport.Fail(c, http.StatusUnauthorized, errUnauthorized("无效的token"))
			return
		}
		subject, err := s.issuer.Verify(token)
		if err != nil {
			s.logger.WarnTag(logging.TagHTTP, "token验证失败: %v", err)
			httptransport.Fail(c, http.StatusUnauthorized, errUnauthorized("无效的token"))
			return
		}
		c.Set("subject", subject)
		c.Next()
	}
}

func errUnauthorized(message string) error {
	return errors.New(errors.KindTransport, "webapi.auth", message)
}
