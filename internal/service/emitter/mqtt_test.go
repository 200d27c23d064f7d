package emitter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"potholytics/internal/logger"
	"potholytics/internal/model"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type publishCall struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mqtt.Client
	connected bool
	err       error

	mu    sync.Mutex
	calls []publishCall
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Disconnect(uint) { c.connected = false }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, publishCall{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken{err: c.err}
}

func TestMQTTEmitter_PublishesResultsAndDone(t *testing.T) {
	client := &fakeClient{connected: true}
	e := New(client, "potholytics/results/", logger.Discard())

	e.Publish(model.Event{Type: model.EventProgress, RequestID: "r1"})
	e.Publish(model.Event{Type: model.EventResult, RequestID: "r1", Result: &model.AnnotatedResult{DetectionsCount: 2}})
	e.Publish(model.Event{Type: model.EventDone, RequestID: "r1", State: "COMPLETED"})

	client.mu.Lock()
	calls := append([]publishCall{}, client.calls...)
	client.mu.Unlock()

	require.Len(t, calls, 2)
	require.Equal(t, "potholytics/results/r1/result", calls[0].topic)
	require.Equal(t, byte(1), calls[0].qos)
	require.Equal(t, "potholytics/results/r1/done", calls[1].topic)

	var event model.Event
	require.NoError(t, json.Unmarshal(calls[0].payload, &event))
	require.Equal(t, 2, event.Result.DetectionsCount)

	require.Eventually(t, func() bool {
		return e.Stats().Published["potholytics/results/r1/done"] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMQTTEmitter_CountsFailures(t *testing.T) {
	offline := New(&fakeClient{}, "t", logger.Discard())
	offline.Publish(model.Event{Type: model.EventDone, RequestID: "x"})
	require.Equal(t, uint64(1), offline.Stats().Errors)
	require.False(t, offline.Stats().Connected)

	failing := New(&fakeClient{connected: true, err: errors.New("not authorized")}, "t", logger.Discard())
	failing.Publish(model.Event{Type: model.EventDone, RequestID: "x"})
	require.Eventually(t, func() bool { return failing.Stats().Errors == 1 }, time.Second, 5*time.Millisecond)
	require.Empty(t, failing.Stats().Published)
}

func TestMQTTEmitter_DisconnectLogsTotals(t *testing.T) {
	dir := t.TempDir()
	l, err := logger.New(dir, slog.LevelInfo)
	require.NoError(t, err)
	defer l.Close()

	client := &fakeClient{connected: true}
	e := New(client, "potholytics/results", l)
	e.Publish(model.Event{Type: model.EventResult, RequestID: "r1", Result: &model.AnnotatedResult{}})
	e.Publish(model.Event{Type: model.EventDone, RequestID: "r1"})
	require.Eventually(t, func() bool { return len(e.Stats().Published) == 2 }, time.Second, 5*time.Millisecond)

	e.Disconnect()
	require.False(t, client.connected)

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	require.Contains(t, string(info), "MQTT disconnected after 2 event(s), 0 error(s)")
}
