package router

import (
	"github.com/aihub/wpredisearch/app/controllers"
	"github.com/aihub/wpredisearch/app/middleware"
	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/contentsync"
	"github.com/aihub/wpredisearch/internal/database"
	"github.com/aihub/wpredisearch/internal/features"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/search"
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Dependencies 路由所需组件，由容器注入
type Dependencies struct {
	dig.In

	Config   *config.Config
	Search   *search.Service
	Live     *features.LiveSearch
	Features *features.Registry
	Syncer   *contentsync.Syncer
	Health   *database.HealthChecker
	Manager  *index.Manager
	Registry *prometheus.Registry
	Logger   *zap.Logger `optional:"true"`
}

// Init registers all routes. Must be called after the container is built.
func Init(d Dependencies) {
	origins := []string{}
	security := middleware.SecurityConfig{}
	if d.Config != nil {
		if d.Config.Site.URL != "" {
			origins = append(origins, d.Config.Site.URL)
		}
		security.AdminToken = d.Config.Server.AdminToken
		security.RateLimitRequests = d.Config.Server.RateLimit
	}
	sec := middleware.NewSecurity(security, d.Logger)

	web.InsertFilter("/*", web.BeforeRouter, middleware.RequestStart())
	web.InsertFilter("/*", web.BeforeRouter, sec.SecurityHeaders())
	web.InsertFilter("/api/*", web.BeforeRouter, middleware.CORS(origins))
	web.InsertFilter("/api/search", web.BeforeRouter, sec.APIRateLimit())
	web.InsertFilter("/api/suggest", web.BeforeRouter, sec.APIRateLimit())
	web.InsertFilter("/api/content/*", web.BeforeRouter, sec.AdminRequired())
	web.InsertFilter("/api/features/*", web.BeforeRouter, sec.AdminRequired())

	web.InsertFilter("/*", web.FinishRouter, middleware.RequestLogger(d.Logger), web.WithReturnOnOutput(false))
	web.InsertFilter("/api/content/*", web.FinishRouter, middleware.Audit(d.Logger, "content"), web.WithReturnOnOutput(false))
	web.InsertFilter("/api/features/*", web.FinishRouter, middleware.Audit(d.Logger, "feature"), web.WithReturnOnOutput(false))

	health := controllers.NewHealthController(d.Health, d.Manager)
	web.Router("/health", health, "get:Health")
	web.Router("/api/index/info", health, "get:Info")

	web.Router("/metrics", controllers.NewMetricsController(d.Registry), "get:Metrics")

	searchController := controllers.NewSearchController(d.Search, d.Live, d.Features)
	web.Router("/api/search", searchController, "get:Search")
	web.Router("/api/suggest", searchController, "get:Suggest")

	content := controllers.NewContentController(d.Syncer)
	web.Router("/api/content/:id/sync", content, "post:Sync")
	web.Router("/api/content/:id", content, "delete:Remove")

	featureController := controllers.NewFeatureController(d.Features)
	web.Router("/api/features", featureController, "get:List")
	web.Router("/api/features/:slug/activate", featureController, "post:Activate")
	web.Router("/api/features/:slug/deactivate", featureController, "post:Deactivate")
}
