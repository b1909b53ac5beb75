package routes

import (
	"github.com/gin-gonic/gin"

	"kakachat/internal/handlers"
	"kakachat/internal/middleware"
	"kakachat/internal/services"
)

func SetupRoutes(
	r *gin.Engine,
	authService services.AuthService,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	conversationHandler *handlers.ConversationHandler,
	messageHandler *handlers.MessageHandler,
	storageHandler *handlers.StorageHandler,
) *gin.Engine {

	// ---- public
	r.POST("/register", userHandler.Register)
	r.POST("/login", authHandler.Login)
	r.POST("/refresh", authHandler.RefreshToken)
	r.POST("/forgot-password", authHandler.ForgotPassword)
	r.POST("/reset-password", authHandler.ResetPassword)
	r.POST("/storage/upload/:token", storageHandler.Upload)
	r.GET("/files/:id", storageHandler.ServeFile)

	// ---- protected
	r.Use(middleware.AuthMiddleware(authService))

	r.POST("/logout", authHandler.Logout)
	r.GET("/me", userHandler.Me)
	r.GET("/users", userHandler.ListUsers)

	r.POST("/storage/upload-url", storageHandler.CreateUploadURL)

	conversations := r.Group("/conversations")
	{
		conversations.POST("", conversationHandler.Create)
		conversations.GET("", conversationHandler.List)
		conversations.GET("/:id/members", conversationHandler.Members)
		conversations.POST("/:id/members", conversationHandler.AddMember)
		conversations.DELETE("/:id/members/:userID", conversationHandler.RemoveMember)

		conversations.GET("/:id/messages", messageHandler.List)
		conversations.POST("/:id/messages", messageHandler.SendText)
		conversations.POST("/:id/messages/image", messageHandler.SendImage)
		conversations.POST("/:id/messages/video", messageHandler.SendVideo)
		conversations.GET("/:id/stream", messageHandler.Stream)
	}

	return r
}
