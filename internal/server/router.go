package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"calixo/internal/config"
	"calixo/internal/handler"
	"calixo/internal/model"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Profiles      *handler.ProfileHandler
	Challenges    *handler.ChallengeHandler
	Store         *handler.StoreHandler
	Coupons       *handler.CouponHandler
	Social        *handler.SocialHandler
	Notifications *handler.NotificationHandler
	Moderation    *handler.ModerationHandler
	Admin         *handler.AdminHandler
}

// Deps are the collaborators of the router besides the handlers.
type Deps struct {
	Tokens  TokenVerifier
	Users   UserProvisioner
	Limiter *RateLimiter
	DB      Pinger
}

// NewRouter builds the gin engine serving /api/v1 and /healthz.
func NewRouter(cfg config.ServerConfig, deps Deps, h Handlers) *gin.Engine {
	r := gin.New()
	r.ContextWithFallback = true
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(RecoveryMiddleware(), LoggingMiddleware())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", healthz(deps.DB))

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(deps.Tokens, deps.Users), deps.Limiter.Limit("api"))
	{
		api.GET("/me", h.Profiles.Me)
		api.GET("/me/transactions", h.Profiles.Transactions)
		api.POST("/me/avatar-image", h.Profiles.AvatarImage)
		api.GET("/leaderboard", h.Profiles.Leaderboard)

		api.GET("/challenges", h.Challenges.List)
		api.POST("/challenges/:id/start", h.Challenges.Start)

		sessions := api.Group("/user-challenges")
		{
			sessions.GET("", h.Challenges.History)
			sessions.GET("/active", h.Challenges.Active)
			sessions.POST("/:id/cancel", h.Challenges.Cancel)
			sessions.POST("/:id/fail", h.Challenges.Fail)
			sessions.POST("/:id/complete", h.Challenges.Complete)
		}

		api.GET("/store/items", h.Store.ListItems)
		api.POST("/store/items/:id/purchase", h.Store.Purchase)
		api.GET("/avatar/items", h.Store.Inventory)
		api.POST("/avatar/items/:id/equip", h.Store.Equip)

		coupons := api.Group("/coupons")
		{
			coupons.GET("", h.Coupons.ListForSale)
			coupons.GET("/mine", h.Coupons.Mine)
			coupons.POST("/validate", h.Coupons.Validate)
			coupons.POST("/:id/purchase", h.Coupons.Purchase)
		}

		api.POST("/users/:id/follow", h.Social.Follow)
		api.DELETE("/users/:id/follow", h.Social.Unfollow)
		api.GET("/feed", h.Social.Feed)
		api.POST("/feed", h.Social.Post)

		invites := api.Group("/social/invites")
		{
			invites.GET("", h.Social.ListInvites)
			invites.POST("", h.Social.Invite)
			invites.POST("/:id/accept", h.Social.Accept)
			invites.POST("/:id/decline", h.Social.Decline)
		}

		api.GET("/notifications", h.Notifications.List)
		api.POST("/notifications/seen", h.Notifications.MarkAllSeen)
		api.POST("/notifications/:id/seen", h.Notifications.MarkSeen)

		api.POST("/reports", h.Moderation.Report)

		mod := api.Group("/admin/reports", RequireRole(model.RoleModerator, model.RoleAdmin))
		{
			mod.GET("", h.Moderation.List)
			mod.POST("/:id/resolve", h.Moderation.Resolve)
		}

		admin := api.Group("/admin", RequireRole(model.RoleAdmin))
		{
			admin.GET("/challenges", h.Admin.ListChallenges)
			admin.POST("/challenges", h.Admin.CreateChallenge)
			admin.PUT("/challenges/:id", h.Admin.UpdateChallenge)
			admin.DELETE("/challenges/:id", h.Admin.DeactivateChallenge)

			admin.POST("/store/items", h.Admin.CreateItem)
			admin.PUT("/store/items/:id", h.Admin.UpdateItem)
			admin.POST("/store/items/:id/image", h.Admin.ItemImage)
			admin.DELETE("/store/items/:id", h.Admin.DeactivateItem)

			admin.GET("/coupons", h.Admin.ListCoupons)
			admin.POST("/coupons", h.Admin.CreateCoupon)
			admin.DELETE("/coupons/:id", h.Admin.DeactivateCoupon)

			admin.PUT("/users/:id/premium", h.Admin.SetPremium)
			admin.PUT("/users/:id/role", h.Admin.SetRole)
			admin.GET("/users/:id/ledger-audit", h.Admin.LedgerAudit)

			admin.GET("/settings/daily-limits", h.Admin.DailyLimits)
			admin.PUT("/settings/daily-limits", h.Admin.SetDailyLimits)
		}
	}

	return r
}

func healthz(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
