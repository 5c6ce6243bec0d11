package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/threatlens/threatlens/docs"
	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/middleware"
	"github.com/threatlens/threatlens/internal/modules/handler"
	"github.com/threatlens/threatlens/internal/modules/serializer"
	"github.com/threatlens/threatlens/internal/telemetry"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	Config            *config.Config
	Log               *zap.Logger
	AssignmentHandler *handler.AssignmentHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	serializer.SetLogger(d.Log)

	r := gin.New()
	r.Use(gin.Recovery())

	if telemetry.Enabled(d.Config) {
		r.Use(middleware.OtelTracing(d.Config.App.Name))
		r.Use(middleware.TraceID())
	}

	r.Use(middleware.ZapLogger(d.Log))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	// swagger
	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		v1.Use(middleware.BearerAuth(d.Config))

		v1.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "pong"}) })

		project := v1.Group("/project")
		{
			project.GET("/threat_model_counts", d.AssignmentHandler.GetThreatModelCounts)

			threatModels := project.Group("/:project_id/threat_models")
			{
				threatModels.GET("", d.AssignmentHandler.GetThreatModels)
				threatModels.POST("", d.AssignmentHandler.AssignThreatModels)
				threatModels.DELETE("/:id", d.AssignmentHandler.RemoveThreatModel)
			}
		}
	}
	return r
}
