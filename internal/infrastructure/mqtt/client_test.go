package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/agentpppp/medRec/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration for a local broker at 127.0.0.1:1883.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "patientreg-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local broker or skips the test.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()

	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	client, err := Connect(cfg)
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// =============================================================================
// Broker-free tests
// =============================================================================

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should fail for refused connection")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "a/b", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "a/b", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"PatientRegistered", Topics{}.PatientRegistered(), "patientreg/event/patient_registered"},
		{"Event", Topics{}.Event("custom"), "patientreg/event/custom"},
		{"SystemStatus", Topics{}.SystemStatus(), "patientreg/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var p statusPayload
	if err := json.Unmarshal(buildStatusPayload("offline", "reg-1", "graceful_shutdown"), &p); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if p.Status != "offline" || p.ClientID != "reg-1" || p.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", p)
	}
	if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", p.Timestamp, err)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "registry"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.Username != "registry" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS not configured")
	}
	if !opts.AutoReconnect || opts.ConnectRetry {
		t.Errorf("AutoReconnect = %v ConnectRetry = %v", opts.AutoReconnect, opts.ConnectRetry)
	}
}

// fakePublisher records publishes.
type fakePublisher struct {
	mu       sync.Mutex
	topic    string
	payload  []byte
	qos      byte
	retained bool
	err      error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic, f.payload, f.qos, f.retained = topic, payload, qos, retained
	return f.err
}

func (f *fakePublisher) QoS() byte { return 1 }

func TestEventPublisher_PatientRegistered(t *testing.T) {
	fake := &fakePublisher{}
	p := &EventPublisher{pub: fake}
	at := time.Date(2026, 10, 19, 8, 15, 30, 0, time.FixedZone("CEST", 2*3600))

	if err := p.PatientRegistered("3f0c2a4e-0000-4000-8000-000000000001", at); err != nil {
		t.Fatalf("PatientRegistered() error = %v", err)
	}

	if fake.topic != "patientreg/event/patient_registered" || fake.retained || fake.qos != 1 {
		t.Errorf("published to %q qos=%d retained=%v", fake.topic, fake.qos, fake.retained)
	}

	var ev map[string]any
	if err := json.Unmarshal(fake.payload, &ev); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if len(ev) != 2 {
		t.Errorf("payload has %d keys, want only patient_id and registered_at: %s", len(ev), fake.payload)
	}
	if ev["patient_id"] != "3f0c2a4e-0000-4000-8000-000000000001" {
		t.Errorf("patient_id = %v", ev["patient_id"])
	}
	if ev["registered_at"] != "2026-10-19T06:15:30Z" {
		t.Errorf("registered_at = %v, want UTC", ev["registered_at"])
	}
}

func TestEventPublisher_PublishError(t *testing.T) {
	p := &EventPublisher{pub: &fakePublisher{err: ErrNotConnected}}

	if err := p.PatientRegistered("id", time.Now()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PatientRegistered() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Broker tests (skipped without a local broker)
// =============================================================================

func TestConnectAndClose(t *testing.T) {
	client := connectOrSkip(t, "patientreg-test-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

// warnRecorder captures Warn calls.
type warnRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (w *warnRecorder) Warn(msg string, _ ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msg)
}

func TestHandleDisconnect_LogsAndMarksDisconnected(t *testing.T) {
	logger := &warnRecorder{}
	client := &Client{connected: true}
	client.SetLogger(logger)

	client.handleDisconnect(errors.New("broker went away"))

	client.connMu.RLock()
	connected := client.connected
	client.connMu.RUnlock()
	if connected {
		t.Error("connected = true after connection lost")
	}
	if len(logger.msgs) != 1 {
		t.Errorf("Warn called %d times, want 1", len(logger.msgs))
	}
}

func TestEventRoundtrip(t *testing.T) {
	client := connectOrSkip(t, "patientreg-test-roundtrip")

	// A separate plain paho client plays the downstream consumer.
	cfg := testConfig()
	listener := pahomqtt.NewClient(pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID("patientreg-test-listener"))
	if token := listener.Connect(); !token.WaitTimeout(2*time.Second) || token.Error() != nil {
		t.Skipf("listener could not connect: %v", token.Error())
	}
	defer listener.Disconnect(100)

	received := make(chan []byte, 1)
	token := listener.Subscribe(Topics{}.PatientRegistered(), 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		select {
		case received <- msg.Payload():
		default:
		}
	})
	if !token.WaitTimeout(2*time.Second) || token.Error() != nil {
		t.Fatalf("listener subscribe failed: %v", token.Error())
	}

	if err := NewEventPublisher(client).PatientRegistered("roundtrip-id", time.Now()); err != nil {
		t.Fatalf("PatientRegistered() error = %v", err)
	}

	select {
	case payload := <-received:
		var ev RegisteredEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if ev.PatientID != "roundtrip-id" {
			t.Errorf("patient_id = %q", ev.PatientID)
		}
	case <-time.After(2 * time.Second):
		t.Error("registration event not received")
	}
}
