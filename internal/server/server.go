package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/config"
	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
	"tutorme.app/marketplace/internal/middleware"
	"tutorme.app/marketplace/internal/scheduler"
	"tutorme.app/marketplace/pkg/logger"
	"tutorme.app/marketplace/pkg/metrics"
	"tutorme.app/marketplace/pkg/storage"

	dashboardHttp "tutorme.app/marketplace/internal/modules/dashboard/delivery/http"
	dashboardService "tutorme.app/marketplace/internal/modules/dashboard/service"

	profileHttp "tutorme.app/marketplace/internal/modules/profile/delivery/http"
	profileService "tutorme.app/marketplace/internal/modules/profile/service"

	realtimeHttp "tutorme.app/marketplace/internal/modules/realtime/delivery/http"

	resourceHttp "tutorme.app/marketplace/internal/modules/resource/delivery/http"
	resourceRepo "tutorme.app/marketplace/internal/modules/resource/repository"
	resourceService "tutorme.app/marketplace/internal/modules/resource/service"

	reviewRepo "tutorme.app/marketplace/internal/modules/review/repository"

	searchService "tutorme.app/marketplace/internal/modules/search/service"

	studentHttp "tutorme.app/marketplace/internal/modules/student/delivery/http"
	studentRepo "tutorme.app/marketplace/internal/modules/student/repository"
	studentService "tutorme.app/marketplace/internal/modules/student/service"

	subjectHttp "tutorme.app/marketplace/internal/modules/subject/delivery/http"
	subjectRepo "tutorme.app/marketplace/internal/modules/subject/repository"
	subjectService "tutorme.app/marketplace/internal/modules/subject/service"

	planHttp "tutorme.app/marketplace/internal/modules/subscription/delivery/http"
	planRepo "tutorme.app/marketplace/internal/modules/subscription/repository"
	planService "tutorme.app/marketplace/internal/modules/subscription/service"

	tutorHttp "tutorme.app/marketplace/internal/modules/tutor/delivery/http"
	tutorRepo "tutorme.app/marketplace/internal/modules/tutor/repository"
	tutorService "tutorme.app/marketplace/internal/modules/tutor/service"

	sessionHttp "tutorme.app/marketplace/internal/modules/tutoring/delivery/http"
	sessionRepo "tutorme.app/marketplace/internal/modules/tutoring/repository"
	sessionService "tutorme.app/marketplace/internal/modules/tutoring/service"

	userHttp "tutorme.app/marketplace/internal/modules/user/delivery/http"
	userRepo "tutorme.app/marketplace/internal/modules/user/repository"
	userService "tutorme.app/marketplace/internal/modules/user/service"
)

// Deps are the backends the HTTP server is built on.
type Deps struct {
	Store        gateway.Store
	Auth         gateway.Auth
	TutorSearch  searchService.TutorSearch
	ImageStorage storage.ImageStorage
	Metrics      *metrics.Metrics
	Log          *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	engine    *gin.Engine
	scheduler *scheduler.Scheduler
	http      *http.Server
	log       *zap.Logger
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	log := logger.OrNop(deps.Log)
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New("tutorme")
	}
	tutorSearch := deps.TutorSearch
	if tutorSearch == nil {
		tutorSearch = searchService.NewNopTutorSearch()
	}

	users := userRepo.NewUserRepository(deps.Store, log, now)
	subjects := subjectRepo.NewSubjectRepository(deps.Store, log)
	plans := planRepo.NewPlanRepository(deps.Store)
	tutors := tutorRepo.NewTutorRepository(deps.Store, log, now)
	students := studentRepo.NewStudentRepository(deps.Store, log, now)
	reviews := reviewRepo.NewReviewRepository(deps.Store, now)
	resources := resourceRepo.NewResourceRepository(deps.Store)
	sessions := sessionRepo.NewSessionRepository(deps.Store, log, now)

	subjectSvc := subjectService.NewSubjectService(subjects)
	planSvc := planService.NewPlanService(plans)
	tutorSvc := tutorService.NewTutorService(tutors, reviews, tutorSearch, cfg.MeiliSearchHost, log)
	studentSvc := studentService.NewStudentService(students, plans, log, now)
	resourceSvc := resourceService.NewResourceService(resources, students, log)
	sessionSvc := sessionService.NewSessionService(sessions, tutors, students, reviews, log, now)
	authSvc := userService.NewAuthService(deps.Auth, users, subjectSvc, tutorSearch, log)
	profileSvc := profileService.NewProfileService(users, subjectSvc, deps.Auth, deps.ImageStorage, tutorSearch, log)
	dashboardSvc := dashboardService.NewDashboardService(users, sessions, subjectSvc, planSvc, tutorSvc, studentSvc, resourceSvc, log, now)

	authHandler := userHttp.NewAuthHandler(authSvc, m, cfg.SecureCookies)
	profileHandler := profileHttp.NewProfileHandler(profileSvc)
	subjectHandler := subjectHttp.NewSubjectHandler(subjectSvc)
	planHandler := planHttp.NewPlanHandler(planSvc)
	tutorHandler := tutorHttp.NewTutorHandler(tutorSvc)
	studentHandler := studentHttp.NewStudentHandler(studentSvc)
	resourceHandler := resourceHttp.NewResourceHandler(resourceSvc)
	sessionHandler := sessionHttp.NewSessionHandler(sessionSvc)
	pageHandler := dashboardHttp.NewPageHandler(dashboardSvc)
	realtimeHandler := realtimeHttp.NewRealtimeHandler(deps.Auth, users, subjects, tutors, sessions, m, log, cfg.AllowedOrigins)

	jobs := scheduler.New(log, cfg.JobTimeout)
	if err := jobs.Register(scheduler.NewPlanExpiryJob(studentSvc, cfg.PlanExpirySchedule, log)); err != nil {
		return nil, err
	}
	if err := jobs.Register(scheduler.NewTutorReindexJob(tutorSvc, cfg.TutorReindexSchedule, log)); err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	router.Use(m.Middleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(deps.Auth, users, m, log)
	anyRole := authMiddleware.RequireRole(entity.RoleStudent, entity.RoleTutor)

	// Pages
	router.GET("/", pageHandler.Landing)
	router.GET("/register", pageHandler.Register)
	router.GET("/login", pageHandler.Login)
	router.GET("/forgot-password", pageHandler.ForgotPassword)
	router.GET("/dashboard", authMiddleware.DashboardDispatch())
	router.GET("/student-dashboard/*section", authMiddleware.PageGuard(entity.RoleStudent), pageHandler.StudentDashboard)
	router.GET("/tutor-dashboard/*section", authMiddleware.PageGuard(entity.RoleTutor), pageHandler.TutorDashboard)
	router.NoRoute(middleware.NoRoute)

	api := router.Group("/api")

	// Public routes (no auth required)
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
	}
	api.GET("/subjects", subjectHandler.GetSubjects)
	api.GET("/plans", planHandler.GetPlans)

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)
		protected.GET("/realtime/ws", realtimeHandler.HandleWebSocket)

		protected.GET("/profile", anyRole, profileHandler.GetCurrentProfile)
		protected.PUT("/profile", anyRole, profileHandler.UpdateProfile)

		protected.GET("/tutors", anyRole, tutorHandler.ListTutors)
		protected.GET("/tutors/search-token", anyRole, tutorHandler.SearchToken)
		protected.PUT("/tutors/me/availability", authMiddleware.RequireRole(entity.RoleTutor), tutorHandler.UpdateAvailability)
		protected.GET("/tutors/:id", anyRole, tutorHandler.GetTutor)
		protected.GET("/tutors/:id/reviews", anyRole, tutorHandler.GetReviews)

		protected.GET("/students/mine", authMiddleware.RequireRole(entity.RoleTutor), studentHandler.MyStudents)
		protected.PUT("/students/me/plan", authMiddleware.RequireRole(entity.RoleStudent), studentHandler.ChangePlan)

		protected.GET("/sessions", anyRole, sessionHandler.ListSessions)
		protected.POST("/sessions", authMiddleware.RequireRole(entity.RoleStudent), sessionHandler.Book)
		protected.POST("/sessions/schedule", authMiddleware.RequireRole(entity.RoleTutor), sessionHandler.Schedule)
		protected.PUT("/sessions/:id/confirm", authMiddleware.RequireRole(entity.RoleTutor), sessionHandler.Confirm)
		protected.PUT("/sessions/:id/cancel", anyRole, sessionHandler.Cancel)
		protected.PUT("/sessions/:id/complete", anyRole, sessionHandler.Complete)

		protected.GET("/resources", anyRole, resourceHandler.ListResources)
		protected.POST("/resources/:subject/:category/:id/access", anyRole, resourceHandler.Access)
	}

	return &Server{
		engine:    router,
		scheduler: jobs,
		log:       log,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the scheduled jobs and serves HTTP until Shutdown.
func (s *Server) Run(addr string) error {
	s.scheduler.Start()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("server listening", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.scheduler.Stop(ctx)
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
