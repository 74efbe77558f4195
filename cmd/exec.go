package cmd

import (
	"context"
	"log"
	"log/slog"

	"meetup-system/config"
	"meetup-system/handlers"
	"meetup-system/models"
	"meetup-system/monitoring"
	"meetup-system/security"
	"meetup-system/services"
	"meetup-system/store"
	"meetup-system/utils"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	_ "meetup-system/migrations"
)

func Start() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	var notifier services.Notifier = services.NopNotifier{}
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		notifier = services.NewPubNubNotifier(pubnub.NewPubNub(pnConfig))
	} else {
		slog.Warn("pubnub keys missing, notifications disabled")
	}

	codec, err := utils.NewSealedCodec(cfg.QRSealKey)
	if err != nil {
		return err
	}

	var joinLock *utils.MeetupLock
	if cfg.JoinLockEnabled {
		joinLock = utils.NewMeetupLock(redisClient, cfg.JoinLockTTL)
	}

	st := store.NewPocketBase(app)
	lifecycle := services.NewMeetupService(st, notifier)
	membership := services.NewMembershipService(st, codec, notifier, joinLock, cfg.TicketGraceTTL, cfg.TicketFallbackTTL)
	discovery := services.NewDiscoveryService(st, cfg.DefaultNearbyRadiusKm, cfg.BlindRevealWindow)

	meetupHandler := handlers.NewMeetupHandler(lifecycle, cfg.BlindRevealWindow)
	membershipHandler := handlers.NewMembershipHandler(membership)
	discoveryHandler := handlers.NewDiscoveryHandler(discovery)
	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	if cfg.EnableMetrics {
		monitoring.StartMetricsServer(cfg.MetricsPort)
		monitoring.NewMonitor(redisClient)
	}

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncActiveMeetupsToRedis(app, redisClient)

		g := e.Router.Group("/api/v1")
		g.Bind(apis.BodyLimit(1 << 20))

		g.POST("/meetups", meetupHandler.Create).Bind(apis.RequireAuth("users"))
		g.GET("/meetups", discoveryHandler.List)
		g.GET("/meetups/nearby", discoveryHandler.Nearby)
		g.GET("/meetups/{meetupId}", meetupHandler.Get)
		g.PATCH("/meetups/{meetupId}", meetupHandler.Update).Bind(apis.RequireAuth("users"))
		g.DELETE("/meetups/{meetupId}", meetupHandler.Delete).Bind(apis.RequireAuth("users"))

		g.POST("/meetups/{meetupId}/decision", meetupHandler.Decide).Bind(apis.RequireAuth("venues"))
		g.GET("/venues/{venueId}/pending", meetupHandler.PendingForVenue).Bind(apis.RequireAuth("venues"))

		joinRoute := g.POST("/meetups/{meetupId}/join", membershipHandler.Join)
		joinRoute.Bind(apis.RequireAuth("users"))
		joinRoute.BindFunc(limiter.Middleware())
		g.POST("/meetups/{meetupId}/leave", membershipHandler.Leave).Bind(apis.RequireAuth("users"))

		g.POST("/tickets/checkin", membershipHandler.CheckIn).Bind(apis.RequireAuth("users", "venues"))

		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		setupMeetupHooks(app, redisClient)

		log.Println("Server routes registered")
		return e.Next()
	})

	return app.Start()
}

// syncActiveMeetupsToRedis rebuilds the Redis mirror of discoverable meetup
// ids at boot so the gauge and any cached consumers start from truth.
func syncActiveMeetupsToRedis(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()

	var records []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT id FROM meetups WHERE status IN ('UPCOMING', 'ONGOING')",
	).All(&records); err != nil {
		log.Printf("Error fetching active meetups: %v", err)
		return
	}

	redisClient.Del(ctx, "active_meetups")

	var ids []interface{}
	for _, record := range records {
		if id := record["id"].String; id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		redisClient.SAdd(ctx, "active_meetups", ids...)
		log.Printf("Synced %d active meetups to Redis", len(ids))
	}
}

// setupMeetupHooks keeps the active_meetups set current as records change,
// regardless of whether the change came through the API or the admin UI.
func setupMeetupHooks(app *pocketbase.PocketBase, redisClient *redis.Client) {
	upsert := func(record *core.Record) {
		ctx := context.Background()
		status := models.MeetupStatus(record.GetString("status"))

		discoverable := false
		for _, s := range models.DiscoverableStatuses {
			if status == s {
				discoverable = true
				break
			}
		}

		var err error
		if discoverable {
			err = redisClient.SAdd(ctx, "active_meetups", record.Id).Err()
		} else {
			err = redisClient.SRem(ctx, "active_meetups", record.Id).Err()
		}
		if err != nil {
			slog.Error("active_meetups sync failed", "meetupID", record.Id, "error", err)
		}
	}

	app.OnRecordAfterCreateSuccess("meetups").BindFunc(func(e *core.RecordEvent) error {
		upsert(e.Record)
		return e.Next()
	})
	app.OnRecordAfterUpdateSuccess("meetups").BindFunc(func(e *core.RecordEvent) error {
		upsert(e.Record)
		return e.Next()
	})
	app.OnRecordAfterDeleteSuccess("meetups").BindFunc(func(e *core.RecordEvent) error {
		if err := redisClient.SRem(context.Background(), "active_meetups", e.Record.Id).Err(); err != nil {
			slog.Error("active_meetups removal failed", "meetupID", e.Record.Id, "error", err)
		}
		return e.Next()
	})
}
