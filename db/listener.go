package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Channels the database notifies on. Triggers in schema.sql emit a
// pg_notify on every insert/update/delete to the corresponding table,
// with no diff payload; consumers are expected to do a full re-fetch.
const (
	ChannelEventsChanged  = "events_changed"
	ChannelPlayersChanged = "players_changed"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
)

// ChangeListener is the store's change-notification stream. It wraps a
// pq.Listener subscribed to the events and players channels and fans
// notifications out as plain channel-name strings. Writes made by other
// clients of the same database become visible through it.
type ChangeListener struct {
	listener *pq.Listener
	logger   *slog.Logger
	out      chan string
	done     chan struct{}
}

func NewChangeListener(dsn string, logger *slog.Logger) (*ChangeListener, error) {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error("postgres listener problem", slog.Any("error", err))
		}
	}

	l := pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect, reportProblem)
	for _, channel := range []string{ChannelEventsChanged, ChannelPlayersChanged} {
		if err := l.Listen(channel); err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
		}
	}

	return &ChangeListener{
		listener: l,
		logger:   logger,
		out:      make(chan string, 16),
		done:     make(chan struct{}),
	}, nil
}

// Notifications returns the stream of channel names that fired. The
// channel is closed when the listener shuts down.
func (c *ChangeListener) Notifications() <-chan string {
	return c.out
}

// Run pumps notifications until Close is called. After a reconnect the
// notification can be nil, which is forwarded as an events change so
// consumers re-fetch anything missed while disconnected.
func (c *ChangeListener) Run() {
	defer close(c.out)
	for {
		select {
		case n := <-c.listener.Notify:
			channel := ChannelEventsChanged
			if n != nil {
				channel = n.Channel
			}
			select {
			case c.out <- channel:
			default:
				// A refresh is already pending; dropping the signal is
				// safe because every refresh re-fetches everything.
			}
		case <-c.done:
			return
		}
	}
}

func (c *ChangeListener) Close() error {
	close(c.done)
	return c.listener.Close()
}
