package emitter

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"potholytics/internal/logger"
	"potholytics/internal/model"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTEmitter publishes result and completion events to a broker under
// {topic}/{request_id}/{type}. Progress events are not forwarded.
type MQTTEmitter struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger *logger.Logger

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
}

// Connect dials broker ("host:port" or a full URL) and returns a ready emitter.
func Connect(broker, topic string, logger *logger.Logger) (*MQTTEmitter, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("potholytics-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("📡 MQTT connection established (%s)", broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warning("MQTT connection lost, will auto-reconnect: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return New(client, topic, logger), nil
}

// New wraps an existing client.
func New(client mqtt.Client, topic string, logger *logger.Logger) *MQTTEmitter {
	return &MQTTEmitter{
		client:    client,
		topic:     strings.TrimRight(topic, "/"),
		qos:       1,
		logger:    logger,
		published: make(map[string]uint64),
	}
}

// Publish hands the event to the client without waiting for the broker.
func (e *MQTTEmitter) Publish(event model.Event) {
	if event.Type != model.EventResult && event.Type != model.EventDone {
		return
	}
	if !e.client.IsConnected() {
		e.fail("mqtt not connected, dropping %s event", event.Type)
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		e.fail("failed to marshal event: %v", err)
		return
	}

	topic := fmt.Sprintf("%s/%s/%s", e.topic, event.RequestID, event.Type)
	token := e.client.Publish(topic, e.qos, false, payload)
	go e.await(topic, token)
}

func (e *MQTTEmitter) await(topic string, token mqtt.Token) {
	if !token.WaitTimeout(2 * time.Second) {
		e.fail("publish to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		e.fail("publish to %s failed: %v", topic, err)
		return
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()
}

func (e *MQTTEmitter) fail(format string, v ...any) {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
	e.logger.Warning(format, v...)
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{Connected: e.client.IsConnected(), Published: published, Errors: e.errors}
}

// Disconnect closes the broker connection with a short grace period.
func (e *MQTTEmitter) Disconnect() {
	stats := e.Stats()
	var published uint64
	for _, n := range stats.Published {
		published += n
	}
	if e.client.IsConnected() {
		e.client.Disconnect(250)
	}
	e.logger.Info("MQTT disconnected after %d event(s), %d error(s)", published, stats.Errors)
}
