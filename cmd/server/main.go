package main

import (
	"fmt"
	"log"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/openclass/classroom-api/api/swagger"
	"github.com/openclass/classroom-api/internal/handler"
	"github.com/openclass/classroom-api/internal/middleware"
	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/repository"
	"github.com/openclass/classroom-api/internal/service"
	"github.com/openclass/classroom-api/pkg/config"
	"github.com/openclass/classroom-api/pkg/database"
	"github.com/openclass/classroom-api/pkg/export"
	"github.com/openclass/classroom-api/pkg/logger"
	corsmiddleware "github.com/openclass/classroom-api/pkg/middleware/cors"
	reqidmiddleware "github.com/openclass/classroom-api/pkg/middleware/requestid"
	"github.com/openclass/classroom-api/pkg/storage"
)

// @title Classroom API
// @version 1.0.0
// @description Classroom management backend: classes, join codes, materials, assignments, submissions and grading
// @BasePath /v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	classSvc := service.NewClassService(classRepo, enrollmentRepo, submissionRepo, materialRepo, assignmentRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, validate, logr)
	materialSvc := service.NewMaterialService(materialRepo, classRepo, enrollmentRepo, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, classRepo, enrollmentRepo, submissionRepo, store, cfg.Uploads.MaxFileSizeBytes, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, assignmentRepo, classRepo, enrollmentRepo, store, cfg.Uploads.MaxFileSizeBytes, export.NewCSVExporter(), export.NewPDFExporter(), validate, logr)
	metricsSvc := service.NewMetricsService()

	fileHandler := handler.NewFileHandler(store, signer, path.Join(cfg.APIPrefix, "files"), logr)
	authHandler := handler.NewAuthHandler(authSvc)
	classHandler := handler.NewClassHandler(classSvc, enrollmentSvc, fileHandler)
	materialHandler := handler.NewMaterialHandler(materialSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, fileHandler)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, fileHandler)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	api.GET("/files/:token", fileHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	teacherOnly := middleware.RequireRoles(models.RoleTeacher)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	classes := protected.Group("/classes")
	{
		classes.POST("", teacherOnly, middleware.Audit(userRepo, "create", "class"), classHandler.Create)
		classes.PUT("/update/:id", teacherOnly, middleware.Audit(userRepo, "update", "class"), classHandler.Update)
		classes.DELETE("/delete/:id", teacherOnly, middleware.Audit(userRepo, "delete", "class"), classHandler.Delete)
		classes.GET("/mine", teacherOnly, classHandler.ListMine)
		classes.GET("/others", teacherOnly, classHandler.ListOthers)
		classes.GET("/available", studentOnly, classHandler.ListAvailable)
		classes.GET("/enrolled", studentOnly, classHandler.ListEnrolled)
		classes.POST("/join", studentOnly, middleware.Audit(userRepo, "join", "class"), classHandler.Join)
		classes.GET("/:id", classHandler.Details)
		classes.POST("/:id/leave", studentOnly, middleware.Audit(userRepo, "leave", "class"), classHandler.Leave)
		classes.GET("/:id/students", teacherOnly, classHandler.Roster)
		classes.POST("/:id/rooms", teacherOnly, classHandler.CreateRoom)
		classes.DELETE("/:id/rooms/:roomId", teacherOnly, classHandler.DeleteRoom)
		classes.POST("/:id/materials", teacherOnly, materialHandler.Create)
		classes.GET("/:id/materials", materialHandler.ListByClass)
		classes.POST("/:id/assignments", teacherOnly, assignmentHandler.Create)
		classes.GET("/:id/assignments", assignmentHandler.ListByClass)
	}

	materials := protected.Group("/materials")
	{
		materials.GET("/:id", materialHandler.Get)
		materials.PUT("/:id", teacherOnly, materialHandler.Update)
		materials.DELETE("/:id", teacherOnly, materialHandler.Delete)
	}

	assignments := protected.Group("/assignments")
	{
		assignments.GET("/:id", assignmentHandler.Get)
		assignments.PUT("/:id", teacherOnly, assignmentHandler.Update)
		assignments.DELETE("/:id", teacherOnly, assignmentHandler.Delete)
		assignments.POST("/:id/submit", studentOnly, middleware.Audit(userRepo, "submit", "assignment"), submissionHandler.Submit)
		assignments.GET("/:id/submissions", teacherOnly, submissionHandler.List)
		assignments.GET("/:id/submissions/export", teacherOnly, submissionHandler.Export)
		assignments.GET("/:id/my-submission", studentOnly, submissionHandler.MySubmission)
	}

	submissions := protected.Group("/submissions")
	{
		submissions.POST("/:id/grade", teacherOnly, middleware.Audit(userRepo, "grade", "submission"), submissionHandler.Grade)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
