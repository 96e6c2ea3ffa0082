package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"contactdesk/internal/application/factories/infrastructure"
	"contactdesk/internal/cache"
	"contactdesk/internal/client"
	"contactdesk/internal/config"
	"contactdesk/internal/domain/event"
	"contactdesk/internal/registry"
	"contactdesk/internal/staleness"
)

// The agent is a headless stand-in for one open session of the contact UI:
// it keeps a local query cache consistent with edits made in other sessions
// and surfaces staleness notices for one contact under "editing".
func main() {
	watchID := flag.String("watch", "", "contact id to watch for staleness notices")
	flag.Parse()

	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	sessionBus, err := infraFactory.SessionBus(ctx)
	if err != nil {
		logger.Error("failed to start session bus", "error", err)
		os.Exit(1)
	}
	defer sessionBus.Close()

	logger.Info("session agent started", "origin", sessionBus.OriginID())

	// Diagnostics: log every event crossing the bus.
	offAny := sessionBus.OnAny(func(evt event.Envelope) {
		logger.Info("bus event", "type", evt.Type, "origin", evt.OriginID, "ts", evt.Timestamp)
	})
	defer offAny()

	queryCache := cache.NewMemory()
	var teardown func()
	registry.RegisterOnce("contact-subscriptions", func() {
		teardown = registry.RegisterContactSubscriptions(sessionBus, queryCache)
	})
	if teardown != nil {
		defer teardown()
	}

	contactClient := client.New(cfg.Client, sessionBus)

	if *watchID != "" {
		monitor := staleness.NewMonitor(sessionBus, contactClient)
		watcher := monitor.Watch(*watchID, func(n staleness.Notice) {
			switch n.Kind {
			case staleness.NoticeChanged:
				logger.Warn("contact changed in another session, reload to continue",
					"id", n.ContactID, "dismissible", n.Dismissible)
			case staleness.NoticeDeleted:
				logger.Warn("contact was deleted in another session, editing blocked",
					"id", n.ContactID)
			}
		})
		defer watcher.Close()

		if c, err := contactClient.Get(ctx, *watchID); err != nil {
			logger.Warn("initial fetch failed", "id", *watchID, "error", err)
		} else {
			queryCache.Set(registry.DetailKey(c.ID), c)
			logger.Info("watching contact", "id", c.ID, "name", c.Name, "revision", c.Revision)
		}
	}

	<-ctx.Done()
	logger.Info("Agent exiting")
}
