package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"choreboard/api"
	"choreboard/domain"
	"choreboard/storage"
	"choreboard/syncer"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	boardsTableName := os.Getenv("BOARDS_TABLE")
	commandQueueName := os.Getenv("COMMAND_QUEUE")
	if connStr == "" || boardsTableName == "" || commandQueueName == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, boardsTableName, commandQueueName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)

	logger := log.New()

	snapshotTTL := 7 * 24 * time.Hour
	if v := os.Getenv("SNAPSHOT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid SNAPSHOT_TTL: %v", err)
		}
		snapshotTTL = d
	}
	cache := storage.NewCache(store, rc, snapshotTTL, logger)

	deduperTTL := 24 * time.Hour
	if v := os.Getenv("DEDUPER_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid DEDUPER_TTL: %v", err)
		}
		deduperTTL = d
	}
	deduper := api.NewRedisDeduper(rc, deduperTTL)

	testMode := os.Getenv("AUTH_TEST_MODE") == "1"
	var auth *api.Auth
	if testMode {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		authDomain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || authDomain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+authDomain+"/")
	}

	registry := syncer.NewRegistry(cache, logger, syncer.DefaultUndoExpiry)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))
	e.Use(api.GzipRequestMiddleware())
	e.Use(echoprometheus.NewMiddleware("choreboard"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, func(entryID string) api.Controller {
		return registry.Controller(entryID)
	}, auth, deduper, logger)

	go runRefreshScheduler(registry, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// runRefreshScheduler fires the weekly rollover for each managed board at the
// moment its settings ask for, checking once a minute. A board is only
// managed once something has touched it, which matches how boards come into
// existence in the first place.
func runRefreshScheduler(registry *syncer.Registry, logger *log.Logger) {
	fired := map[string]string{}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for now := range ticker.C {
		slot := now.Format("2006-01-02T15:04")
		for _, entryID := range registry.Entries() {
			ctrl := registry.Controller(entryID)
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			b, err := ctrl.Load(ctx)
			if err != nil {
				cancel()
				continue
			}
			schedule := b.Settings.WeeklyRefresh
			if !refreshDue(schedule, now) || fired[entryID] == slot {
				cancel()
				continue
			}
			if _, err := ctrl.WeeklyRefresh(ctx); err != nil {
				logger.WithError(err).WithField("entry_id", entryID).Error("Weekly refresh failed")
			} else {
				fired[entryID] = slot
			}
			cancel()
		}
	}
}

func refreshDue(s domain.WeeklyRefreshSchedule, now time.Time) bool {
	return domain.WeekdayKeyFor(now) == s.Weekday && now.Hour() == s.Hour && now.Minute() == s.Minute
}
