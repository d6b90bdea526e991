package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/attendees"
	"github.com/reservas-events/backend/internal/auth"
	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/events"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/internal/notifications"
	"github.com/reservas-events/backend/internal/organizations"
	"github.com/reservas-events/backend/internal/purchases"
	"github.com/reservas-events/backend/internal/raffle"
	"github.com/reservas-events/backend/internal/realtime"
	"github.com/reservas-events/backend/internal/tickets"
	"github.com/reservas-events/backend/pkg/response"
)

type handlers struct {
	auth          *auth.Handler
	organizations *organizations.Handler
	events        *events.Handler
	attendees     *attendees.Handler
	tickets       *tickets.Handler
	purchases     *purchases.Handler
	raffle        *raffle.Handler
	notifications *notifications.Handler
}

type routeDeps struct {
	authenticate   middleware.Authenticator
	gate           *authz.Gate
	hub            *realtime.Hub
	loginLimit     gin.HandlerFunc
	lookupLimit    gin.HandlerFunc
	allowedOrigins string
	logger         *zap.Logger
}

// registerRoutes mounts the HTTP API. Everything outside the public block requires a bearer token.
func registerRoutes(router *gin.Engine, h handlers, d routeDeps) {
	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", d.loginLimit, h.auth.Register)
		authGroup.POST("/login", d.loginLimit, h.auth.Login)
	}

	// Public lookups: organization landing pages and tickets by code
	router.GET("/organizations/slug/:slug", h.organizations.GetBySlug)
	router.GET("/attendees/by-code/:code", d.lookupLimit, h.attendees.GetByCode)
	router.GET("/attendees/by-code/:code/qr.png", d.lookupLimit, h.attendees.TicketQR)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(d.authenticate, d.logger))
	{
		api.GET("/auth/me", h.auth.Me)
		api.PATCH("/auth/me", h.auth.UpdateProfile)

		// Users
		api.GET("/users", middleware.RequirePermission(authz.ManageUsers), h.auth.List)
		api.POST("/users", middleware.RequirePermission(authz.ManageUsers), h.auth.Create)
		api.PATCH("/users/:id/role", middleware.RequirePermission(authz.ManageUsers), h.auth.SetRole)

		// Organizations
		api.GET("/organizations", h.organizations.List)
		api.POST("/organizations", h.organizations.Create)
		api.PATCH("/organizations/:id", h.organizations.Update)
		api.DELETE("/organizations/:id", h.organizations.Delete)

		// Events
		api.GET("/events", h.events.List)
		api.POST("/events", middleware.RequirePermission(authz.CreateEvents), h.events.Create)
		api.GET("/events/:id", h.events.Get)
		api.PATCH("/events/:id", h.events.Update)
		api.DELETE("/events/:id", h.events.Delete)
		api.POST("/events/:id/assets/upload-url", h.events.AssetUploadURL)

		// Attendees
		api.GET("/events/:id/attendees", h.attendees.List)
		api.POST("/events/:id/attendees", h.attendees.Add)
		api.POST("/events/:id/attendees/bulk", h.attendees.AddMany)
		api.POST("/events/:id/attendees/remove-duplicates", h.attendees.RemoveDuplicates)
		api.POST("/events/:id/attendees/check-in-all", h.attendees.CheckInAll)
		api.POST("/events/:id/attendees/export", h.attendees.Export)
		api.POST("/attendees/:id/check-in", h.attendees.CheckIn)
		api.POST("/attendees/:id/toggle-check-in", h.attendees.ToggleCheckIn)

		// Tickets and capacity pools
		api.GET("/events/:id/tickets", h.tickets.ListTickets)
		api.POST("/events/:id/tickets", h.tickets.CreateTicket)
		api.GET("/tickets/:id", h.tickets.GetTicket)
		api.PATCH("/tickets/:id", h.tickets.UpdateTicket)
		api.DELETE("/tickets/:id", h.tickets.DeleteTicket)
		api.GET("/events/:id/capacity-pools", h.tickets.ListPools)
		api.POST("/events/:id/capacity-pools", h.tickets.CreatePool)
		api.PATCH("/capacity-pools/:id", h.tickets.UpdatePool)
		api.DELETE("/capacity-pools/:id", h.tickets.DeletePool)

		// Purchases
		api.POST("/purchases", h.purchases.Create)
		api.GET("/purchases", h.purchases.List)
		api.GET("/purchases/:id", h.purchases.Get)
		api.PATCH("/purchases/:id/status", h.purchases.UpdateStatus)

		// Raffle
		api.GET("/events/:id/prizes", h.raffle.ListPrizes)
		api.POST("/events/:id/prizes", h.raffle.AddPrize)
		api.POST("/events/:id/prizes/bulk", h.raffle.AddPrizes)
		api.DELETE("/prizes/:id", h.raffle.DeletePrize)
		api.GET("/events/:id/winners", h.raffle.ListWinners)
		api.POST("/events/:id/winners", h.raffle.AddWinner)
		api.POST("/events/:id/winners/bulk", h.raffle.AddWinners)
		api.DELETE("/events/:id/winners", h.raffle.DeleteAllWinners)
		api.DELETE("/winners/:id", h.raffle.DeleteWinner)

		// Messages and delivery logs
		api.GET("/events/:id/messages", h.notifications.List)
		api.POST("/events/:id/messages", h.notifications.Send)
		api.GET("/events/:id/emails", h.notifications.EmailLogs)
	}

	// WebSocket check-in feed (token in query; browsers cannot set headers on upgrade)
	router.GET("/ws/events/:id/check-ins",
		middleware.JWTQuery(d.authenticate, d.logger),
		events.RequireAccess(d.gate, authz.ActionView, d.logger),
		realtime.ServeWs(d.hub, d.allowedOrigins, d.logger),
	)
}
