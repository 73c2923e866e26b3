package overlay

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// PlacementMessage is the payload published for one placed robot
type PlacementMessage struct {
	ID        string  `json:"id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Heading   float64 `json:"heading"`
	PixelX    float64 `json:"pixelX"`
	PixelY    float64 `json:"pixelY"`
	Sequence  uint64  `json:"sequence"`
	Timestamp int64   `json:"timestamp"`
}

// OverlayMessage describes the overlay polygon and its size
type OverlayMessage struct {
	Bounds         BoundingBox    `json:"bounds"`
	Metrics        PolygonMetrics `json:"metrics"`
	AreaLabel      string         `json:"areaLabel"`
	PerimeterLabel string         `json:"perimeterLabel"`
	Timestamp      int64          `json:"timestamp"`
}

// Publisher publishes placements and overlay metrics to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	last          map[string]*PlacementMessage
	mu            sync.RWMutex
}

// NewPublisher creates a new placement publisher.
// prefix falls back to MQTT_PUBLISH_PREFIX, then "floorgeo".
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = os.Getenv("MQTT_PUBLISH_PREFIX")
	}
	if prefix == "" {
		prefix = "floorgeo"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true,
		last:          make(map[string]*PlacementMessage),
	}
}

// PublishSnapshot publishes every placement to {prefix}/{id}, then the whole
// batch to {prefix}/placements.
func (p *Publisher) PublishSnapshot(s Snapshot) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	now := time.Now().Unix()
	messages := make([]*PlacementMessage, len(s.Placements))
	for i, pe := range s.Placements {
		messages[i] = &PlacementMessage{
			ID:        pe.ID,
			Lat:       pe.Geo.Lat,
			Lng:       pe.Geo.Lng,
			Heading:   pe.Heading,
			PixelX:    pe.Position.X,
			PixelY:    pe.Position.Y,
			Sequence:  s.Sequence,
			Timestamp: now,
		}
	}

	p.mu.Lock()
	p.last = make(map[string]*PlacementMessage, len(messages))
	for _, m := range messages {
		p.last[m.ID] = m
	}
	p.mu.Unlock()

	for _, m := range messages {
		if err := p.publishJSON(fmt.Sprintf("%s/%s", p.publishPrefix, m.ID), m); err != nil {
			log.Printf("[MQTT] error publishing placement for %s: %v", m.ID, err)
			return err
		}
	}

	combined := struct {
		Sequence   uint64              `json:"sequence"`
		Placements []*PlacementMessage `json:"placements"`
		Timestamp  int64               `json:"timestamp"`
	}{s.Sequence, messages, now}

	if err := p.publishJSON(p.publishPrefix+"/placements", combined); err != nil {
		log.Printf("[MQTT] error publishing combined placements: %v", err)
		return err
	}

	log.Printf("[MQTT] published %d placements (sequence %d)", len(messages), s.Sequence)
	return nil
}

// PublishOverlay publishes the overlay bounds and metrics to {prefix}/overlay
func (p *Publisher) PublishOverlay(bounds BoundingBox, metrics PolygonMetrics) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	msg := OverlayMessage{
		Bounds:         bounds,
		Metrics:        metrics,
		AreaLabel:      FormatArea(metrics),
		PerimeterLabel: FormatPerimeter(metrics),
		Timestamp:      time.Now().Unix(),
	}
	return p.publishJSON(p.publishPrefix+"/overlay", msg)
}

func (p *Publisher) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// GetPlacement returns the last published placement for a robot
func (p *Publisher) GetPlacement(id string) (*PlacementMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.last[id]
	if !ok {
		return nil, false
	}
	c := *m
	return &c, true
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
