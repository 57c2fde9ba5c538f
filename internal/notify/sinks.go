package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/vrsandeep/mango-shelf/internal/websocket"
)

// HubSink broadcasts notifications to websocket clients.
type HubSink struct {
	hub *websocket.Hub
}

func NewHubSink(hub *websocket.Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "websocket" }

func (s *HubSink) Send(_ context.Context, _ Notification, payload []byte) error {
	if !s.hub.Broadcast(payload) {
		return errors.New("broadcast queue full")
	}
	return nil
}

// Publisher is the part of *nats.Conn the NATS sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
	Flush() error
}

// NATSSink publishes notifications on a NATS subject.
type NATSSink struct {
	conn    Publisher
	subject string
	closeFn func()
}

// ConnectNATS dials url and returns a sink publishing on subject.
func ConnectNATS(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("mango-shelf"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	log.Printf("Connected to NATS at %s, publishing on '%s'", url, subject)
	return &NATSSink{conn: nc, subject: subject, closeFn: nc.Close}, nil
}

// NewNATSSink wraps an existing connection.
func NewNATSSink(conn Publisher, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Send(_ context.Context, n Notification, payload []byte) error {
	if err := s.conn.Publish(s.subject, payload); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return s.conn.Flush()
}

// Close closes the connection when the sink owns it.
func (s *NATSSink) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// LogSink writes a one-line summary of each notification.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Send(_ context.Context, n Notification, _ []byte) error {
	var parts []string
	if len(n.NewDuplicates) > 0 {
		parts = append(parts, fmt.Sprintf("%d new duplicate(s)", len(n.NewDuplicates)))
	}
	if len(n.UpdatedChapters) > 0 {
		parts = append(parts, fmt.Sprintf("%d updated chapter(s)", len(n.UpdatedChapters)))
	}
	if len(n.RemovedFromRemote) > 0 {
		parts = append(parts, fmt.Sprintf("%d removed from remote", len(n.RemovedFromRemote)))
	}
	log.Printf("Chapter changes for '%s' (bookmark %d): %s", n.Title, n.BookmarkID, strings.Join(parts, ", "))
	return nil
}
