package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zonewars/liveclient/go/internal/client"
	"github.com/zonewars/liveclient/go/internal/geometry"
	"github.com/zonewars/liveclient/go/internal/metrics"
	"github.com/zonewars/liveclient/go/internal/notify"
	"github.com/zonewars/liveclient/go/internal/session"
	"github.com/zonewars/liveclient/go/internal/statusapi"
	"github.com/zonewars/liveclient/go/internal/transport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("liveclient exited with error")
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
}

func run(ctx context.Context, cfg *Config) error {
	store, err := session.Open(cfg.SessionPath)
	if err != nil {
		return err
	}
	defer store.Close()

	api := client.NewAPI(cfg.Server.BaseURL, nil)
	sess, err := ensureSession(ctx, store, api)
	if err != nil {
		return err
	}
	log.Info().Str("role", sess.Role).Str("team", sess.TeamName).Msg("session ready")

	m := metrics.New()
	clock := clockwork.NewRealClock()
	presenter := statusapi.NewPresenter()
	queue := notify.NewQueue(presenter, clock)

	fetcher := transport.NewHTTPFetcher(cfg.Server.BaseURL, nil)
	dialer, err := pushDialer(cfg)
	if err != nil {
		return err
	}

	clnt := client.New(identityFrom(sess), client.Deps{
		API:     api,
		Fetcher: fetcher,
		Queue:   queue,
		Pres:    presenter,
		Locator: locatorFromEnv(),
		Clock:   clock,
		Metrics: m,
	})

	mgr := transport.NewManager(cfg.transportConfig(), dialer, fetcher, clnt.HandleSnapshot, nil, clock, m)
	mgr.OnStateChange = clnt.HandleTransportState

	srv := statusapi.NewServer(cfg.Listen, clnt, presenter, mgr, m)
	errCh := make(chan error, 2)
	go func() { errCh <- mgr.Run(ctx, sess.Token) }()
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ensureSession restores a persisted login, or performs a fresh one from
// environment credentials when none exists.
func ensureSession(ctx context.Context, store *session.Store, api *client.API) (session.Session, error) {
	sess, ok, err := store.Load(ctx)
	if err != nil {
		return session.Session{}, err
	}
	if ok {
		return sess, nil
	}

	if pin := os.Getenv("ADMIN_PIN"); pin != "" {
		res, err := api.AdminLogin(ctx, pin)
		if err != nil {
			return session.Session{}, err
		}
		sess = session.Session{Token: res.Token, Role: client.RoleAdmin}
	} else if teamID := os.Getenv("TEAM_ID"); teamID != "" {
		res, err := api.TeamLogin(ctx, teamID, os.Getenv("TEAM_PIN"))
		if err != nil {
			return session.Session{}, err
		}
		sess = session.Session{Token: res.Token, Role: client.RoleTeam, TeamID: teamID}
		if res.Team != nil {
			sess.TeamID = res.Team.ID
			sess.TeamName = res.Team.Name
			sess.TeamColor = res.Team.Color
		}
	} else {
		return session.Session{}, errors.New("no stored session and no ADMIN_PIN or TEAM_ID credentials set")
	}

	if err := store.Save(ctx, sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func identityFrom(sess session.Session) client.Identity {
	return client.Identity{
		Token:     sess.Token,
		Role:      sess.Role,
		TeamID:    sess.TeamID,
		TeamName:  sess.TeamName,
		TeamColor: sess.TeamColor,
	}
}

func pushDialer(cfg *Config) (transport.Dialer, error) {
	switch cfg.Server.Push {
	case "sse", "":
		return transport.NewSSEDialer(cfg.Server.BaseURL, nil), nil
	case "websocket":
		return transport.NewWebsocketDialer(cfg.Server.BaseURL), nil
	default:
		return nil, errors.New("unknown push transport: " + cfg.Server.Push)
	}
}

// locatorFromEnv wires a positioning source. Headless deployments pin the
// position via GPS_LAT/GPS_LNG; without them every location verification
// fails with a geolocation error, same as a browser with GPS denied.
func locatorFromEnv() client.Locator {
	latStr, lngStr := os.Getenv("GPS_LAT"), os.Getenv("GPS_LNG")
	if latStr == "" || lngStr == "" {
		return client.LocatorFunc(func(context.Context) (geometry.Point, error) {
			return geometry.Point{}, errors.New("no positioning source configured")
		})
	}
	lat := getEnvAsFloat("GPS_LAT", 0)
	lng := getEnvAsFloat("GPS_LNG", 0)
	return client.LocatorFunc(func(context.Context) (geometry.Point, error) {
		return geometry.Point{lat, lng}, nil
	})
}
