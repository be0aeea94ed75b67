package miio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// commandTimeout bounds one command; a set may chain up to three calls.
	commandTimeout = 15 * time.Second

	// readAllTimeout bounds a read_all request.
	readAllTimeout = 60 * time.Second
)

// Bridge exposes the platform accessories over MQTT:
//   - "set" commands from Core are applied through Characteristic.Set
//   - every cached value change is published as retained accessory state
//   - read_state, read_all and describe requests are answered
//   - health is reported periodically
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg      *Config
	mqtt     MQTTClient
	platform *Platform
	stats    StatsSource
	health   *HealthReporter

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded bridge configuration.
	Config *Config

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Platform holds the accessories to expose.
	Platform *Platform

	// Stats is optional device call statistics for health reporting.
	Stats StatsSource

	// Version is reported in health messages.
	Version string

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, errors.New("MQTT client is required")
	}
	if opts.Platform == nil {
		return nil, errors.New("platform is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Config,
		mqtt:      opts.MQTTClient,
		platform:  opts.Platform,
		stats:     opts.Stats,
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
		Device:    opts.Config.Device,
		Stats:     opts.Stats,
	})
	b.health.SetAccessoryCount(len(opts.Platform.Accessories()))
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to command and request topics, publishes the initial
// accessory state and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.platform.Observe(b.handleEvent)
	for _, acc := range b.platform.Accessories() {
		b.publishState(acc, "")
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"device", b.cfg.Device.String(),
		"accessories", len(b.platform.Accessories()))

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	select {
	case <-b.done:
		return
	default:
	}

	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	b.wg.Add(1)
	defer b.wg.Done()

	switch parts[1] {
	case "command":
		b.handleCommand(payload)
	case "request":
		b.handleRequest(payload)
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
	}
}

// handleCommand applies a "set" command and acknowledges it.
func (b *Bridge) handleCommand(payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	acc := b.platform.Accessory(cmd.DeviceID)
	if acc == nil {
		b.publishAckError(cmd, "", ErrCodeNotConfigured,
			fmt.Sprintf("accessory %s not configured", cmd.DeviceID), nil)
		return
	}
	if cmd.Command != "set" {
		b.publishAckError(cmd, "", ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command: %s", cmd.Command), nil)
		return
	}

	charName, _ := cmd.Parameters["characteristic"].(string)
	if charName == "" {
		b.publishAckError(cmd, "", ErrCodeInvalidParameters,
			"missing 'characteristic' parameter", nil)
		return
	}
	value, ok := cmd.Parameters["value"]
	if !ok {
		b.publishAckError(cmd, charName, ErrCodeInvalidParameters,
			"missing 'value' parameter", nil)
		return
	}
	serviceName, _ := cmd.Parameters["service"].(string)

	c, err := acc.Find(serviceName, charName)
	if err != nil {
		b.publishAckError(cmd, charName, ErrCodeNotConfigured, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := c.Set(ctx, value); err != nil {
		b.publishAckError(cmd, charName, ErrorCode(err), err.Error(), rejectionPayload(err))
		return
	}
	b.publishAck(cmd, charName)
}

// ErrorCode maps a characteristic read or write failure to an ack code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, accessory.ErrInvalidValue), errors.Is(err, accessory.ErrReadOnly):
		return ErrCodeInvalidParameters
	case errors.Is(err, accessory.ErrNotFound):
		return ErrCodeNotConfigured
	case IsRejection(err), errors.Is(err, ErrUnexpectedValue):
		return ErrCodeDeviceRejected
	default:
		return ErrCodeDeviceUnreachable
	}
}

func rejectionPayload(err error) any {
	var dr *DeviceRejection
	if errors.As(err, &dr) {
		return dr.Payload()
	}
	return nil
}

func (b *Bridge) publishAck(cmd CommandMessage, characteristic string) {
	b.publishJSON(AckTopic(cmd.DeviceID), NewAckMessage(cmd, AckAccepted, characteristic), false)
}

func (b *Bridge) publishAckError(cmd CommandMessage, characteristic, code, message string, payload any) {
	ack := NewAckError(cmd, characteristic, code, message)
	ack.Error.Payload = payload
	b.publishJSON(AckTopic(cmd.DeviceID), ack, false)

	b.logError("command failed",
		fmt.Errorf("device=%s code=%s message=%s", cmd.DeviceID, code, message))
}

// handleEvent publishes the accessory snapshot after every cached change.
func (b *Bridge) handleEvent(e accessory.Event) {
	acc := b.platform.Accessory(e.AccessoryID)
	if acc == nil {
		return
	}
	b.publishState(acc, e.Characteristic)
}

func (b *Bridge) publishState(acc *accessory.Accessory, changed string) {
	msg := NewStateMessage(acc.ID(), changed, acc.Snapshot())
	b.publishJSON(StateTopic(acc.ID()), msg, true)
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to marshal message", err)
		return
	}
	if err := b.mqtt.Publish(topic, payload, 1, retained); err != nil {
		b.logError("failed to publish message", fmt.Errorf("topic=%s: %w", topic, err))
	}
}

// handleRequest processes a request message from Core.
func (b *Bridge) handleRequest(payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	var resp ResponseMessage
	switch req.Action {
	case "read_state":
		resp = b.handleReadState(req)
	case "read_all":
		resp = b.handleReadAll(req)
	case "describe":
		resp = b.handleDescribe(req)
	default:
		resp = errorResponse(req.RequestID, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown action: %s", req.Action))
	}

	b.publishJSON(ResponseTopic(req.RequestID), resp, false)
}

func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return errorResponse(req.RequestID, ErrCodeInvalidParameters, "device_id is required")
	}
	acc := b.platform.Accessory(req.DeviceID)
	if acc == nil {
		return errorResponse(req.RequestID, ErrCodeNotConfigured,
			fmt.Sprintf("accessory %s not configured", req.DeviceID))
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	state, errs := readAccessory(ctx, acc)
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"device_id": acc.ID(),
			"state":     state,
			"errors":    errs,
		},
	}
}

func (b *Bridge) handleReadAll(req RequestMessage) ResponseMessage {
	ctx, cancel := context.WithTimeout(b.ctx, readAllTimeout)
	defer cancel()

	accessories := make(map[string]any)
	failed := 0
	for _, acc := range b.platform.Accessories() {
		state, errs := readAccessory(ctx, acc)
		failed += len(errs)
		accessories[acc.ID()] = map[string]any{
			"state":  state,
			"errors": errs,
		}
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"accessories": accessories,
			"failed":      failed,
		},
	}
}

func (b *Bridge) handleDescribe(req RequestMessage) ResponseMessage {
	var out []accessory.Description
	if req.DeviceID != "" {
		acc := b.platform.Accessory(req.DeviceID)
		if acc == nil {
			return errorResponse(req.RequestID, ErrCodeNotConfigured,
				fmt.Sprintf("accessory %s not configured", req.DeviceID))
		}
		out = append(out, acc.Describe())
	} else {
		for _, acc := range b.platform.Accessories() {
			out = append(out, acc.Describe())
		}
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      map[string]any{"accessories": out},
	}
}

// readAccessory invokes Get on every readable characteristic outside the
// information service. Failures are keyed "service/characteristic".
func readAccessory(ctx context.Context, acc *accessory.Accessory) (map[string]map[string]any, map[string]string) {
	state := make(map[string]map[string]any)
	errs := make(map[string]string)

	for _, svc := range acc.Services() {
		if svc.Type() == accessory.ServiceAccessoryInformation {
			continue
		}
		values := make(map[string]any)
		for _, c := range svc.Characteristics() {
			if !c.Readable() {
				continue
			}
			v, err := c.Get(ctx)
			if err != nil {
				errs[svc.Type()+"/"+c.Name()] = err.Error()
				continue
			}
			values[c.Name()] = v
		}
		state[svc.Type()] = values
	}
	return state, errs
}

// BridgeMetrics contains bridge status for the API health endpoint.
type BridgeMetrics struct {
	Connected          bool
	Status             string
	Calls              uint64
	Failures           uint64
	AccessoriesManaged int
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() BridgeMetrics {
	m := BridgeMetrics{
		Connected:          b.mqtt.IsConnected(),
		AccessoriesManaged: len(b.platform.Accessories()),
	}
	status, _ := b.health.determineStatus()
	m.Status = string(status)
	if b.stats != nil {
		s := b.stats.Stats()
		m.Calls = s.Calls
		m.Failures = s.Rejections + s.TransportErrors
	}
	return m
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
