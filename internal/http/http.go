package http

import (
	"github.com/gin-gonic/gin"

	"github.com/datashed/datashed/internal/appcontext"
	"github.com/datashed/datashed/internal/http/middleware"
)

type APIService struct {
	engine  *gin.Engine
	context *appcontext.Context
}

func NewHTTPService(ctx *appcontext.Context) *APIService {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORSMiddleware())

	service := &APIService{
		engine:  engine,
		context: ctx,
	}
	service.setupRoutes()
	return service
}

func (h *APIService) Engine() *gin.Engine {
	return h.engine
}

func (h *APIService) setupRoutes() {
	v1 := h.engine.Group("/api/v1")
	h.setupProjectRoutes(v1)
	h.setupDatasetRoutes(v1)
}

func (h *APIService) setupProjectRoutes(group *gin.RouterGroup) {
	projects := group.Group("/projects")
	projects.Use(middleware.JWTAuthMiddleware())

	projects.GET("/", GetProjectsByUserID(h.context))
	projects.POST("/", CreateProject(h.context))
	projects.GET("/:projectID/datasets", GetDatasets(h.context))
	projects.POST("/:projectID/datasets", CreateDataset(h.context))
	projects.GET("/:projectID/statistics", GetProjectStatistics(h.context))
}

func (h *APIService) setupDatasetRoutes(group *gin.RouterGroup) {
	datasets := group.Group("/datasets")
	datasets.Use(middleware.JWTAuthMiddleware())

	datasets.GET("/:datasetID", GetDataset(h.context))
	datasets.DELETE("/:datasetID", DeleteDataset(h.context))
	datasets.PUT("/:datasetID/columns", UpdateColumns(h.context))
	datasets.DELETE("/:datasetID/columns", DeleteColumns(h.context))
	datasets.GET("/:datasetID/rows", SearchRows(h.context))
	datasets.POST("/:datasetID/files", UploadSourceFile(h.context))
	datasets.POST("/:datasetID/files/:fileID/import", ImportSourceFile(h.context))
}
