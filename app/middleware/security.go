package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/beego/beego/v2/server/web"
	beecontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// TokenHeader 管理接口令牌的备用请求头
const TokenHeader = "X-WPRS-Token"

// SecurityConfig 安全配置
type SecurityConfig struct {
	// 为空时不校验管理接口
	AdminToken        string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxies    []string
}

// Security 管理接口鉴权、限流与安全头
type Security struct {
	config      SecurityConfig
	rateLimiter *RateLimiter
	logger      *zap.Logger
}

// NewSecurity 创建安全过滤器集合
func NewSecurity(config SecurityConfig, logger *zap.Logger) *Security {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RateLimitWindow <= 0 {
		config.RateLimitWindow = time.Minute
	}
	s := &Security{config: config, logger: logger}
	if config.RateLimitRequests > 0 {
		s.rateLimiter = NewRateLimiter(config.RateLimitRequests, config.RateLimitWindow)
	}
	return s
}

// AdminRequired 要求 Bearer 令牌或 X-WPRS-Token 与配置一致
func (s *Security) AdminRequired() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		if s.config.AdminToken == "" || ctx.Input.Method() == http.MethodOptions {
			return
		}
		token := ctx.Input.Header(TokenHeader)
		if auth := ctx.Input.Header("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminToken)) == 1 {
			return
		}

		s.logger.Warn("Rejected admin request",
			zap.String("method", ctx.Input.Method()),
			zap.String("path", ctx.Input.URL()),
			zap.String("remote_addr", s.getClientIP(ctx)))
		abort(ctx, apperrors.NewBusinessError(apperrors.ErrCodeUnauthorized, "Authentication required"))
	}
}

// APIRateLimit 按客户端 IP 限流
func (s *Security) APIRateLimit() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		if s.rateLimiter == nil {
			return
		}
		if !s.rateLimiter.Allow(s.getClientIP(ctx)) {
			ctx.Output.Header("Retry-After", strconv.Itoa(int(s.config.RateLimitWindow.Seconds())))
			abort(ctx, apperrors.NewBusinessError(apperrors.ErrCodeRateLimited, "Rate limit exceeded"))
		}
	}
}

// SecurityHeaders 安全头
func (s *Security) SecurityHeaders() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		ctx.Output.Header("X-Content-Type-Options", "nosniff")
		ctx.Output.Header("X-Frame-Options", "DENY")
		ctx.Output.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	}
}

// getClientIP 获取客户端真实IP，仅信任来自可信代理的 X-Forwarded-For
func (s *Security) getClientIP(ctx *beecontext.Context) string {
	remote := remoteHost(ctx.Request.RemoteAddr)
	if xff := ctx.Input.Header("X-Forwarded-For"); xff != "" {
		for _, proxy := range s.config.TrustedProxies {
			if remote == proxy {
				if idx := strings.Index(xff, ","); idx > 0 {
					return strings.TrimSpace(xff[:idx])
				}
				return strings.TrimSpace(xff)
			}
		}
	}
	return remote
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// abort 以统一的错误结构结束请求
func abort(ctx *beecontext.Context, err *apperrors.AppError) {
	ctx.Output.SetStatus(err.HTTPCode)
	_ = ctx.Output.JSON(map[string]interface{}{
		"success": false,
		"error":   err.Message,
		"code":    err.Code,
	}, false, false)
}

// RateLimiter 滑动窗口内存限流器
type RateLimiter struct {
	mu        sync.Mutex
	requests  int
	window    time.Duration
	clients   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter 创建限流器
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: requests,
		window:   window,
		clients:  make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) > rl.window {
		rl.sweep(windowStart)
		rl.lastSweep = now
	}

	valid := prune(rl.clients[clientIP], windowStart)
	if len(valid) >= rl.requests {
		rl.clients[clientIP] = valid
		return false
	}
	rl.clients[clientIP] = append(valid, now)
	return true
}

// sweep 删除窗口内没有请求的客户端
func (rl *RateLimiter) sweep(windowStart time.Time) {
	for ip, times := range rl.clients {
		if valid := prune(times, windowStart); len(valid) == 0 {
			delete(rl.clients, ip)
		} else {
			rl.clients[ip] = valid
		}
	}
}

func prune(times []time.Time, windowStart time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(windowStart) {
		i++
	}
	return times[i:]
}
