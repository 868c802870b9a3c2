package main

import (
	"context"
	"net/http"

	"whispr/backend/internal/auth"
	"whispr/backend/internal/cache"
	"whispr/backend/internal/config"
	"whispr/backend/internal/database"
	"whispr/backend/internal/events"
	"whispr/backend/internal/handler"
	"whispr/backend/internal/service"
	"whispr/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	// Swagger imports
	_ "whispr/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Whispr API
// @version         1.0
// @description     This is the API for the Whispr service.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.LogLevel, cfg.LogFile)
	defer logger.Sync()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}

	// Redis is optional; without it every read goes straight to Postgres.
	var snapshots *cache.Cache
	if cfg.RedisAddr != "" {
		snapshots, err = cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", zap.Error(err))
			snapshots = nil
		}
	}

	// Kafka is optional; without brokers the outbox is never written.
	brokers := cfg.KafkaBrokerList()
	eventsEnabled := len(brokers) > 0
	if eventsEnabled {
		producer := events.NewProducer(brokers, cfg.KafkaTopic)
		defer producer.Close()
		relayer := events.NewRelayer(db, producer.Send)
		go relayer.Run(context.Background())
	}

	friendService := service.NewFriendService(db, snapshots, eventsEnabled)
	feedService := service.NewFeedService(db, friendService, snapshots)

	authHandler := handler.NewAuthHandler(db, cfg.JWTSecret)
	userHandler := handler.NewUserHandler(db, friendService, snapshots)
	friendHandler := handler.NewFriendHandler(friendService)
	feedHandler := handler.NewFeedHandler(feedService)
	postHandler := handler.NewPostHandler(feedService)

	router := gin.New()
	router.Use(logger.RequestLogger(), logger.Recovery())

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
		}

		// A user's posts are public; like state is only filled in for
		// logged-in viewers.
		apiV1.GET("/users/:id/posts", auth.OptionalAuthMiddleware(cfg.JWTSecret), postHandler.GetUserPosts)

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware(cfg.JWTSecret))
		{
			userRoutes.GET("", userHandler.SearchUsers) // Must be before /:id
			userRoutes.GET("/me", userHandler.Me)
			userRoutes.PUT("/me", userHandler.UpdateProfile)
			userRoutes.GET("/me/requests", friendHandler.ListPendingRequests)
			userRoutes.GET("/:id", userHandler.GetUserByID)

			// Friendship routes
			userRoutes.POST("/:id/request", friendHandler.SendRequest)
			userRoutes.POST("/:id/accept", friendHandler.AcceptRequest)
			userRoutes.POST("/:id/reject", friendHandler.RejectRequest)
			userRoutes.POST("/:id/cancel", friendHandler.CancelRequest)
			userRoutes.POST("/:id/unfriend", friendHandler.Unfriend)
			userRoutes.GET("/:id/relationship", friendHandler.GetRelationship)
			userRoutes.GET("/:id/friends", friendHandler.ListFriends)
			userRoutes.GET("/:id/friends/count", friendHandler.CountFriends)
		}

		// Feed routes (protected)
		feedRoutes := apiV1.Group("/feed")
		feedRoutes.Use(auth.AuthMiddleware(cfg.JWTSecret))
		{
			feedRoutes.GET("", feedHandler.GetFeed)
			feedRoutes.GET("/new-count", feedHandler.GetNewPostsCount)
		}

		// Post routes (protected)
		postRoutes := apiV1.Group("/posts")
		postRoutes.Use(auth.AuthMiddleware(cfg.JWTSecret))
		{
			postRoutes.POST("", postHandler.CreatePost)
			postRoutes.DELETE("/:id", postHandler.DeletePost)
			postRoutes.POST("/:id/like", postHandler.ToggleLike)
			postRoutes.GET("/:id/likes", postHandler.ListLikers)
			postRoutes.POST("/:id/comments", postHandler.AddComment)
			postRoutes.GET("/:id/comments", postHandler.ListComments)
		}
	}

	logger.Info("server starting", zap.String("addr", cfg.ServerAddr))
	if err := router.Run(cfg.ServerAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
