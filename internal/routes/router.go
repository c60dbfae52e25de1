package routes

import (
	"todo-api/internal/controller"
	"todo-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Router mounts the todo API under /api/v1. When jwtSecret is set, mutating routes
// require a bearer token; reads stay public.
func Router(todos *controller.TodoController, jwtSecret string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())

	api := router.Group("/api/v1")
	api.GET("/health", todos.Health)
	api.GET("/ready", todos.Ready)
	api.GET("/todos", todos.ListTodos)
	api.GET("/todos/:id", todos.GetTodo)

	write := api.Group("")
	if jwtSecret != "" {
		write.Use(middleware.AuthMiddleware(jwtSecret))
	}
	{
		write.POST("/todos", todos.CreateTodo)
		write.PUT("/todos/:id", todos.UpdateTodo)
		write.DELETE("/todos/:id", todos.DeleteTodo)
		write.POST("/todos/:id/complete", todos.CompleteTodo)
	}

	return router
}
