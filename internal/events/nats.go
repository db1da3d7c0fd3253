// Package events publishes pipeline notifications over NATS so downstream
// consumers (dashboards, alerting) learn about fresh data without polling.
package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/seatrace/seatrace_core/internal/trips"
)

// PublisherMetrics is the subset of the metrics collector the publisher needs.
type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

// Publisher emits build and import events.
type Publisher struct {
	nc      *nats.Conn
	metrics PublisherMetrics
}

// NewPublisher connects to NATS with reconnect handlers wired into the
// metrics collector. Pass a nil metrics to skip instrumentation.
func NewPublisher(url string, m PublisherMetrics) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("seatrace-core"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &Publisher{nc: nc, metrics: m}, nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// BuildCompleted is published after every trip build run.
type BuildCompleted struct {
	FinishedAt time.Time   `json:"finishedAt"`
	Duration   float64     `json:"durationSeconds"`
	Stats      trips.Stats `json:"stats"`
	Error      string      `json:"error,omitempty"`
}

// ImportCompleted is published after every raw data import.
type ImportCompleted struct {
	FinishedAt time.Time `json:"finishedAt"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	Error      string    `json:"error,omitempty"`
}

// PublishBuildCompleted emits a build event on ais.build.completed.
func (p *Publisher) PublishBuildCompleted(msg BuildCompleted) error {
	return p.publish("ais.build.completed", msg)
}

// PublishImportCompleted emits an import event on ais.import.completed.
func (p *Publisher) PublishImportCompleted(msg ImportCompleted) error {
	return p.publish("ais.import.completed", msg)
}

func (p *Publisher) publish(subject string, msg interface{}) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}
