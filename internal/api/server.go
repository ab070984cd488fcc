package api

import (
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/dunamismax/iconforge/internal/config"
	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/dunamismax/iconforge/internal/events"
	"github.com/dunamismax/iconforge/internal/intake"
	"github.com/dunamismax/iconforge/internal/queue"
	"github.com/dunamismax/iconforge/internal/ratelimit"
	"github.com/dunamismax/iconforge/internal/service"
	"github.com/dunamismax/iconforge/internal/store"
	"github.com/dunamismax/iconforge/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

//go:embed templates/*.html
var templateFS embed.FS

// Studio is the set of image operations the HTTP layer drives.
type Studio interface {
	Convert(ctx context.Context, token, sourceKey string, width, height int) (domain.DerivedAsset, error)
	IconSet(ctx context.Context, token, sourceKey string) (domain.DerivedAsset, error)
	Filter(ctx context.Context, token, sourceKey string, kind domain.FilterKind) (domain.DerivedAsset, error)
	HomescreenMockup(ctx context.Context, token, iconName string) (domain.DerivedAsset, error)
	FrameScreenshot(ctx context.Context, token, sourceKey string) (domain.DerivedAsset, error)
	NormalizeColor(ctx context.Context, token, sourceKey string) (domain.DerivedAsset, error)
	LaunchScreen(ctx context.Context, token, sourceKey string) (domain.DerivedAsset, error)
	Typography(ctx context.Context, token, text string, fontSize int) (domain.DerivedAsset, error)
	Open(ctx context.Context, token, name string) (service.Object, error)
	Exists(ctx context.Context, token, name string) (bool, error)
	Assets(ctx context.Context, token string) ([]domain.DerivedAsset, error)
}

type queueEnqueuer interface {
	EnqueueIconSet(ctx context.Context, payload queue.IconSetPayload) (*asynq.TaskInfo, error)
}

type Deps struct {
	Logger    logrus.FieldLogger
	Studio    Studio
	Intake    *intake.Intake
	Jobs      store.JobStore
	Queue     queueEnqueuer
	Publisher events.Publisher
	Limiter   ratelimit.Limiter
	Registry  *prometheus.Registry
	HTTP      config.HTTPConfig
	RateLimit config.RateLimitConfig
}

type Server struct {
	logger    logrus.FieldLogger
	studio    Studio
	intake    *intake.Intake
	jobs      store.JobStore
	queue     queueEnqueuer
	publisher events.Publisher
	limiter   ratelimit.Limiter
	metrics   *metrics
	tracer    trace.Tracer
	httpCfg   config.HTTPConfig
	limitCfg  config.RateLimitConfig
	engine    *gin.Engine
}

func NewServer(deps Deps) (*Server, error) {
	if deps.Registry == nil {
		deps.Registry = telemetry.NewRegistry()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}

	s := &Server{
		logger:    deps.Logger,
		studio:    deps.Studio,
		intake:    deps.Intake,
		jobs:      deps.Jobs,
		queue:     deps.Queue,
		publisher: deps.Publisher,
		limiter:   deps.Limiter,
		metrics:   newMetrics(deps.Registry),
		tracer:    otel.Tracer("iconforge/api"),
		httpCfg:   deps.HTTP,
		limitCfg:  deps.RateLimit,
	}
	if !deps.RateLimit.Enabled {
		s.limiter = nil
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{"form": uploadForm}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)
	engine.MaxMultipartMemory = 8 << 20
	engine.Use(
		gin.Recovery(),
		s.withTracing(),
		accessLog(s.logger),
		s.metrics.withHTTPMetrics(),
		limitBody(s.httpCfg.MaxUploadBytes),
		s.withRateLimit(),
	)
	s.engine = engine
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(s.metrics.handler()))

	r.GET("/", s.handleIndex)
	r.GET("/instructions", s.handleInstructions)
	r.GET("/convert", s.handleConvertForm)
	r.POST("/convert", s.handleConvert)
	r.GET("/preview/:token/:filename", s.handlePreview)
	r.GET("/image/:token/:filename", s.handleInline)
	r.GET("/download/:token/:filename", s.handleDownload)
	r.POST("/generate_icon_set", s.handleIconSet)
	r.GET("/download_assets/:token/:filename", s.handleDownloadAssets)
	r.GET("/filters", s.handleFiltersForm)
	r.POST("/filters", s.handleFilters)
	r.GET("/homescreen_mockup/:token/:filename", s.handleHomescreenMockup)
	r.POST("/frame_screenshot", s.handleFrameScreenshot)
	r.POST("/convert_color_profile", s.handleColorProfile)
	r.POST("/generate_launch_screen", s.handleLaunchScreen)
	r.GET("/typography_preview", s.handleTypographyForm)
	r.POST("/typography_preview", s.handleTypography)

	v1 := r.Group("/v1")
	v1.GET("/assets/:token", s.handleListAssets)
	v1.POST("/icon-sets", s.handleCreateIconSet)
	v1.GET("/icon-sets/:id", s.handleGetIconSet)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
