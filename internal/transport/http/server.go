package http

import (
	"github.com/gin-gonic/gin"

	"docqa-client/internal/bootstrap"
	"docqa-client/internal/transport/http/handler"
	"docqa-client/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.Console.GinMode)
	router := gin.New()
	router.Use(middleware.Logger(app.Logger.Named("console")), gin.Recovery())
	router.MaxMultipartMemory = 16 << 20

	healthHandler := handler.NewHealthHandler(app)
	sessionHandler := handler.NewSessionHandler(app.Session, app.Auth)
	documentHandler := handler.NewDocumentHandler(app.Documents)
	queryHandler := handler.NewQueryHandler(app.Queries)
	journalHandler := handler.NewJournalHandler(app.Journal)

	router.GET("/healthz", healthHandler.Check)

	v1 := router.Group("/api/v1")
	v1.GET("/session", sessionHandler.Status)
	v1.GET("/session/events", sessionHandler.Events)

	authGroup := v1.Group("/auth")
	authGroup.POST("/login", sessionHandler.Login)
	authGroup.POST("/logout", sessionHandler.Logout)
	authGroup.POST("/register", sessionHandler.Register)

	guarded := v1.Group("")
	guarded.Use(middleware.RequireSession(app.Session))
	guarded.GET("/documents", documentHandler.List)
	guarded.POST("/documents", documentHandler.Upload)
	guarded.GET("/documents/events", documentHandler.Events)
	guarded.GET("/documents/:id", documentHandler.Get)
	guarded.DELETE("/documents/:id", documentHandler.Delete)
	guarded.POST("/queries", queryHandler.Ask)
	guarded.GET("/queries", queryHandler.History)
	guarded.GET("/queries/:id", queryHandler.Get)
	guarded.GET("/journal", journalHandler.List)

	return router
}
