package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/echolabs/echocore/internal/api/handlers"
	"github.com/echolabs/echocore/internal/api/middleware"
)

type Deps struct {
	Process *handlers.ProcessHandler
	Billing *handlers.BillingHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/api")
	auth.Use(middleware.JWTAuth())

	auth.GET("/process/:organization_id/:interview_id/:respondent_hash", d.Process.Trigger)
	auth.GET("/respondents/:respondent_id/runs", d.Process.Runs)

	auth.GET("/organizations/:organization_id/balance", d.Billing.Balance)

	// Admin only
	admin := auth.Group("/")
	admin.Use(middleware.RequireAdmin())

	admin.POST("/respondents/:respondent_id/reset", d.Process.Reset)
	admin.POST("/organizations/:organization_id/payments", d.Billing.AddPayment)
}
