// Package api exposes the relay over HTTP.
package api

import (
	"context"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"pos-voice-relay/internal/dataset"
	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/metrics"
	"pos-voice-relay/internal/types"
)

// Classifier runs one audio classification request.
type Classifier interface {
	Process(ctx context.Context, req types.ClassifyRequest) (types.ClassifyResponse, error)
}

// Loader is a synchronous bulk-load job.
type Loader interface {
	Load(ctx context.Context) (dataset.Summary, error)
}

// Options wires the Server.
type Options struct {
	Classifier     Classifier
	CSVLoader      Loader
	GeoJSONLoader  Loader
	Contract       string
	RequirePuntoID bool
	CORSOrigins    []string
	Logger         *logger.Logger
	Metrics        *metrics.Manager
}

type Server struct {
	classifier     Classifier
	csvLoader      Loader
	geoLoader      Loader
	contract       string
	requirePuntoID bool
	corsOrigins    []string
	log            *logger.Logger
	metrics        *metrics.Manager
}

func NewServer(opts Options) *Server {
	return &Server{
		classifier:     opts.Classifier,
		csvLoader:      opts.CSVLoader,
		geoLoader:      opts.GeoJSONLoader,
		contract:       opts.Contract,
		requirePuntoID: opts.RequirePuntoID,
		corsOrigins:    opts.CORSOrigins,
		log:            opts.Logger.Component("api"),
		metrics:        opts.Metrics,
	}
}

// GinMode maps the deployment environment to a gin mode: debug only for local runs.
func GinMode(environment string) string {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "", "local":
		return gin.DebugMode
	default:
		return gin.ReleaseMode
	}
}

// Router builds the gin engine with middleware and every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(s.observe())
	r.Use(cors.New(s.corsConfig()))

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	r.POST("/audio-clasificar", s.ClassifyAudio)
	r.POST("/cargar-csv", s.LoadCSV)
	r.POST("/cargar-geojson", s.LoadGeoJSON)

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", logger.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", logger.RequestIDHeader, ContractHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range s.corsOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = s.corsOrigins
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}
