package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"github.com/beekhof/eventsync/internal/auth"
	calclient "github.com/beekhof/eventsync/internal/calendar"
	"github.com/beekhof/eventsync/internal/config"
	"github.com/beekhof/eventsync/internal/geocode"
	"github.com/beekhof/eventsync/internal/ics"
	"github.com/beekhof/eventsync/internal/log"
	"github.com/beekhof/eventsync/internal/sync"
	"github.com/beekhof/eventsync/internal/wizkids"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "eventsync",
		Usage: "Copy WizKids store events near your cities into Google Calendar.",
		Description: `Looks up each configured city, fetches the store events around it and
inserts every event whose title is not already on the calendar.

Configuration precedence (highest to lowest): command-line flags, environment
variables (EVENTSYNC_TOKEN_PATH, GOOGLE_CREDENTIALS_PATH, EVENTSYNC_CALENDAR_ID,
EVENTSYNC_TIME_ZONE, EVENTSYNC_RADIUS_MILES, EVENTSYNC_PAGINATE), the config
file, defaults.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to JSON or YAML config file"},
			&cli.StringFlag{Name: "token-path", Usage: "Path to store the OAuth token (overrides config file and EVENTSYNC_TOKEN_PATH)"},
			&cli.StringFlag{Name: "google-credentials-path", Usage: "Path to Google OAuth credentials JSON file (overrides config file and GOOGLE_CREDENTIALS_PATH)"},
			&cli.StringFlag{Name: "calendar-id", Usage: "Calendar to sync into (overrides config file and EVENTSYNC_CALENDAR_ID)"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Enable verbose output (show DEBUG logs)"},
		},
		Commands: []*cli.Command{
			syncCommand(),
			authCommand(),
		},
		Action: runSync,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "eventsync: %v\n", err)
		os.Exit(1)
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run the store event synchronization (default).",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Report what would be created without inserting anything"},
			&cli.StringFlag{Name: "ics-out", Usage: "Also write the created events to this .ics file"},
		},
		Action: runSync,
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize calendar access and store the token.",
		Action: func(c *cli.Context) error {
			ctx, cfg, err := setup(c)
			if err != nil {
				return err
			}
			defer log.FromContext(ctx).Sync()

			oauthConfig, err := newOAuthConfig(cfg)
			if err != nil {
				return err
			}
			if _, err := auth.GetAuthenticatedClient(ctx, oauthConfig, auth.NewFileTokenStore(cfg.TokenPath)); err != nil {
				return err
			}
			log.FromContext(ctx).Info("token ready", zap.String("path", cfg.TokenPath))
			return nil
		},
	}
}

// setup loads the configuration and returns a context carrying the logger.
func setup(c *cli.Context) (context.Context, *config.Config, error) {
	logger, err := log.New(c.Bool("verbose"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	ctx := log.ToContext(c.Context, logger)

	cfg, err := config.LoadConfig(c.String("config"), config.Overrides{
		TokenPath:             c.String("token-path"),
		GoogleCredentialsPath: c.String("google-credentials-path"),
		CalendarID:            c.String("calendar-id"),
	})
	if err != nil {
		return nil, nil, err
	}
	return ctx, cfg, nil
}

func newOAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	clientID, clientSecret, err := config.LoadGoogleCredentials(cfg.GoogleCredentialsPath)
	if err != nil {
		return nil, err
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://127.0.0.1:8080", // Will be updated dynamically by auth flow
		Scopes:       []string{calendar.CalendarScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}, nil
}

func runSync(c *cli.Context) error {
	ctx, cfg, err := setup(c)
	if err != nil {
		return err
	}
	logger := log.FromContext(ctx)
	defer logger.Sync()

	if len(cfg.Locations) == 0 {
		logger.Warn("no locations configured, nothing to sync")
		return nil
	}

	oauthConfig, err := newOAuthConfig(cfg)
	if err != nil {
		return err
	}

	httpClient, err := auth.GetAuthenticatedClient(ctx, oauthConfig, auth.NewFileTokenStore(cfg.TokenPath))
	if err != nil {
		return err
	}

	calendarClient, err := calclient.NewClient(ctx, httpClient)
	if err != nil {
		return err
	}
	calendarClient.Paginate = cfg.Paginate

	var exporter *ics.Exporter
	icsOut := c.String("ics-out")
	if icsOut != "" {
		exporter = ics.NewExporter()
	}

	dryRun := c.Bool("dry-run")
	if dryRun {
		logger.Info("performing a dry run, no events will be inserted")
	}

	syncer, err := sync.NewSyncer(geocode.NewNominatim(), wizkids.NewClient(), calendarClient, sync.Options{
		CalendarID:  cfg.CalendarID,
		TimeZone:    cfg.TimeZone,
		RadiusMiles: cfg.RadiusMiles,
		GuestList:   cfg.GuestList,
		DryRun:      dryRun,
		Exporter:    exporter,
	})
	if err != nil {
		return err
	}

	totals, runErr := syncer.Run(ctx, cfg.Locations)

	if exporter != nil {
		if err := exporter.WriteFile(icsOut); err != nil {
			logger.Error("failed to write calendar export", zap.String("path", icsOut), zap.Error(err))
		} else {
			logger.Info("wrote calendar export", zap.String("path", icsOut), zap.Int("events", exporter.Len()))
		}
	}

	if runErr != nil {
		return fmt.Errorf("%d of %d location(s) failed: %w", totals.FailedLocations, len(cfg.Locations), runErr)
	}
	return nil
}
