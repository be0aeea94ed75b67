package miio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultCallTimeout bounds a relayed call when no timeout is configured.
const defaultCallTimeout = 5 * time.Second

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// RelayRequest is published to the miio gateway for every device call.
// Topic: graylogic/miio/rpc/{device_id}/request
type RelayRequest struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params []any       `json:"params"`
	Device RelayTarget `json:"device"`
}

// RelayTarget tells the gateway which appliance to talk to.
type RelayTarget struct {
	IP    string `json:"ip"`
	Token string `json:"token"`
}

// RelayReply is the gateway answer to a RelayRequest.
// Topic: graylogic/miio/rpc/{device_id}/reply
type RelayReply struct {
	ID     string      `json:"id"`
	Result []any       `json:"result"`
	Error  *RelayError `json:"error,omitempty"`
}

// RelayError is a failure reported by the gateway (session, timeout,
// protocol). It never carries a device rejection.
type RelayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Code, e.Message)
}

// RelayOptions configures a RelayDevice.
type RelayOptions struct {
	// Client carries requests and replies.
	Client MQTTClient

	// DeviceID selects the relay topics.
	DeviceID string

	// IP and Token are forwarded to the gateway with every request.
	IP    string
	Token string

	// Timeout bounds each call. Default: 5 seconds.
	Timeout time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// RelayDevice implements Device by relaying calls through an MQTT gateway
// that owns the encrypted UDP session with the appliance.
//
// Thread Safety: Call may be used concurrently. Replies are matched to
// calls by request id.
type RelayDevice struct {
	client   MQTTClient
	deviceID string
	target   RelayTarget
	timeout  time.Duration
	logger   Logger

	mu      sync.Mutex
	pending map[string]chan RelayReply

	done      chan struct{}
	closeOnce sync.Once
}

// NewRelayDevice creates a relay device. Call Start before the first Call.
func NewRelayDevice(opts RelayOptions) (*RelayDevice, error) {
	if opts.Client == nil {
		return nil, errors.New("MQTT client is required")
	}
	if opts.DeviceID == "" {
		return nil, errors.New("device id is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &RelayDevice{
		client:   opts.Client,
		deviceID: opts.DeviceID,
		target:   RelayTarget{IP: opts.IP, Token: opts.Token},
		timeout:  timeout,
		logger:   opts.Logger,
		pending:  make(map[string]chan RelayReply),
		done:     make(chan struct{}),
	}, nil
}

// Start subscribes to the reply topic.
func (r *RelayDevice) Start() error {
	topic := RelayReplyTopic(r.deviceID)
	if err := r.client.Subscribe(topic, 1, r.handleReply); err != nil {
		return fmt.Errorf("subscribe to relay replies: %w", err)
	}
	if r.logger != nil {
		r.logger.Info("subscribed to relay replies", "topic", topic)
	}
	return nil
}

// Close fails every pending and future call with ErrRelayClosed.
func (r *RelayDevice) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

// Call implements Device.
//
// Returns:
//   - []any: The result array reported by the device
//   - error: *TransportError on publish failure, gateway error, timeout,
//     cancellation or a closed relay
func (r *RelayDevice) Call(ctx context.Context, method string, params []any) ([]any, error) {
	select {
	case <-r.done:
		return nil, &TransportError{Method: method, Err: ErrRelayClosed}
	default:
	}

	if params == nil {
		params = []any{}
	}
	req := RelayRequest{
		ID:     uuid.NewString(),
		Method: method,
		Params: params,
		Device: r.target,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Method: method, Err: fmt.Errorf("marshal request: %w", err)}
	}

	replies := make(chan RelayReply, 1)
	r.mu.Lock()
	r.pending[req.ID] = replies
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, req.ID)
		r.mu.Unlock()
	}()

	if err := r.client.Publish(RelayRequestTopic(r.deviceID), payload, 1, false); err != nil {
		return nil, &TransportError{Method: method, Err: fmt.Errorf("publish request: %w", err)}
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		if reply.Error != nil {
			return nil, &TransportError{Method: method, Err: reply.Error}
		}
		return reply.Result, nil
	case <-timer.C:
		return nil, &TransportError{Method: method, Err: fmt.Errorf("%w after %s", ErrCallTimeout, r.timeout)}
	case <-ctx.Done():
		return nil, &TransportError{Method: method, Err: ctx.Err()}
	case <-r.done:
		return nil, &TransportError{Method: method, Err: ErrRelayClosed}
	}
}

// PendingCalls returns the number of calls waiting for a reply.
func (r *RelayDevice) PendingCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *RelayDevice) handleReply(_ string, payload []byte) {
	var reply RelayReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		if r.logger != nil {
			r.logger.Warn("failed to parse relay reply", "error", err)
		}
		return
	}

	r.mu.Lock()
	replies, ok := r.pending[reply.ID]
	r.mu.Unlock()

	if !ok {
		if r.logger != nil {
			r.logger.Debug("dropping relay reply without pending call", "id", reply.ID)
		}
		return
	}

	select {
	case replies <- reply:
	default:
	}
}
