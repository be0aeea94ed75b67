package miio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu          sync.Mutex
	published   []mockPublish
	handlers    map[string]func(topic string, payload []byte)
	connected   bool
	publishErr  error
	onPublish   func(topic string, payload []byte)
	subscribers []string
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	if m.publishErr != nil {
		err := m.publishErr
		m.mu.Unlock()
		return err
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	hook := m.onPublish
	m.mu.Unlock()

	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, topic)
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
}

func (m *MockMQTTClient) SetOnPublish(fn func(topic string, payload []byte)) {
	m.mu.Lock()
	m.onPublish = fn
	m.mu.Unlock()
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

// PublishedOn returns the messages published on topic.
func (m *MockMQTTClient) PublishedOn(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	m.published = nil
	m.mu.Unlock()
}

// SimulateMessage delivers a message to the handler whose subscription
// matches topic (exact or trailing "#" wildcard).
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	var handler func(string, []byte)
	for pattern, h := range m.handlers {
		if pattern == topic || (strings.HasSuffix(pattern, "/#") && strings.HasPrefix(topic, strings.TrimSuffix(pattern, "#"))) {
			handler = h
			break
		}
	}
	m.mu.Unlock()
	if handler != nil {
		handler(topic, payload)
	}
}

// mockCall is one recorded device call.
type mockCall struct {
	Method string
	Params []any
}

func (c mockCall) String() string {
	return fmt.Sprintf("%s%v", c.Method, c.Params)
}

// MockDevice implements Device with scripted properties and replies.
// get_prop answers from props; commands answer ["ok"] unless a reply or
// error is scripted for the method.
type MockDevice struct {
	mu      sync.Mutex
	props   map[string]any
	replies map[string][]any
	errs    map[string]error
	calls   []mockCall
}

func NewMockDevice() *MockDevice {
	return &MockDevice{
		props:   make(map[string]any),
		replies: make(map[string][]any),
		errs:    make(map[string]error),
	}
}

func (m *MockDevice) SetProp(name string, v any) {
	m.mu.Lock()
	m.props[name] = v
	m.mu.Unlock()
}

// SetReply scripts the result of a command, or of get_prop when key is
// "get_prop:<prop>".
func (m *MockDevice) SetReply(key string, result ...any) {
	m.mu.Lock()
	m.replies[key] = result
	m.mu.Unlock()
}

func (m *MockDevice) SetError(key string, err error) {
	m.mu.Lock()
	m.errs[key] = err
	m.mu.Unlock()
}

func (m *MockDevice) Call(_ context.Context, method string, params []any) ([]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, mockCall{Method: method, Params: params})

	key := method
	if method == methodGetProp && len(params) > 0 {
		key = fmt.Sprintf("%s:%v", method, params[0])
	}
	if err, ok := m.errs[key]; ok {
		return nil, err
	}
	if r, ok := m.replies[key]; ok {
		return r, nil
	}
	if method == methodGetProp {
		out := make([]any, 0, len(params))
		for _, p := range params {
			out = append(out, m.props[fmt.Sprint(p)])
		}
		return out, nil
	}
	return []any{resultOK}, nil
}

func (m *MockDevice) Calls() []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Commands returns the recorded calls other than get_prop.
func (m *MockDevice) Commands() []mockCall {
	var out []mockCall
	for _, c := range m.Calls() {
		if c.Method != methodGetProp {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockDevice) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

// MockLogger records log calls.
type MockLogger struct {
	mu     sync.Mutex
	errors []string
	debugs []string
}

func (l *MockLogger) Debug(msg string, _ ...any) {
	l.mu.Lock()
	l.debugs = append(l.debugs, msg)
	l.mu.Unlock()
}

func (l *MockLogger) Info(string, ...any) {}
func (l *MockLogger) Warn(string, ...any) {}

func (l *MockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *MockLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

// testAccessoriesConfig enables every accessory.
func testAccessoriesConfig() AccessoriesConfig {
	return AccessoriesConfig{
		AirPurifierName:           "Air Purifier",
		AirPurifierSilentModeName: "Silent Mode",
		TemperatureName:           "Temperature",
		HumidityName:              "Humidity",
		BuzzerSwitchName:          "Buzzer",
		LEDBulbName:               "LED",
		AirQualityName:            "Air Quality",
	}
}

func testConfig() *Config {
	cfg := defaultConfig()
	cfg.Device.IP = "192.168.1.50"
	cfg.Device.Token = "00112233445566778899aabbccddeeff"
	cfg.Accessories = testAccessoriesConfig()
	return cfg
}

func newTestPlatform(t *testing.T, dev Device) *Platform {
	t.Helper()
	p, err := NewPlatform(PlatformOptions{
		Config:   testConfig(),
		Device:   dev,
		Registry: accessory.DefaultRegistry(),
	})
	if err != nil {
		t.Fatalf("NewPlatform() error = %v", err)
	}
	return p
}

// mustChar finds a characteristic or fails the test.
func mustChar(t *testing.T, p *Platform, accessoryID, service, char string) *accessory.Characteristic {
	t.Helper()
	acc := p.Accessory(accessoryID)
	if acc == nil {
		t.Fatalf("accessory %s not found", accessoryID)
	}
	c, err := acc.Find(service, char)
	if err != nil {
		t.Fatalf("Find(%s, %s) error = %v", service, char, err)
	}
	return c
}
