package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PostgresChangeListener forwards catalog_changes notifications for one app id into a ChangeFeed.
type PostgresChangeListener struct {
	databaseURL string
	appID       string
	feed        *ChangeFeed
	log         *logrus.Logger
}

func NewPostgresChangeListener(databaseURL, appID string, feed *ChangeFeed, logger *logrus.Logger) *PostgresChangeListener {
	return &PostgresChangeListener{
		databaseURL: databaseURL,
		appID:       appID,
		feed:        feed,
		log:         logger,
	}
}

// Run listens until ctx is cancelled.
func (l *PostgresChangeListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.databaseURL, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.log.Info("Repository: Change listener connected")
		case pq.ListenerEventDisconnected:
			l.log.Warnf("Repository: Change listener disconnected: %v", err)
		case pq.ListenerEventReconnected:
			l.log.Info("Repository: Change listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			l.log.Warnf("Repository: Change listener connection attempt failed: %v", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(ChangesChannel); err != nil {
		return fmt.Errorf("could not listen on %s: %w", ChangesChannel, err)
	}

	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			l.dispatch(n)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.log.Warnf("Repository: Change listener ping failed: %v", err)
				}
			}()
		}
	}
}

func (l *PostgresChangeListener) dispatch(n *pq.Notification) {
	// A nil notification follows a reconnect; anything may have changed meanwhile.
	if n == nil {
		l.feed.NotifyAll()
		return
	}
	appID, collection, ok := strings.Cut(n.Extra, ":")
	if !ok || appID != l.appID {
		return
	}
	l.log.Debugf("Repository: Change notification for %s", collection)
	l.feed.Notify(collection)
}
