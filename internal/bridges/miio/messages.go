package miio

import (
	"encoding/json"
	"fmt"
	"time"
)

// Protocol is the protocol identifier used in topics and messages.
const Protocol = "miio"

// TopicPrefix is the base topic for all Gray Logic messages.
const TopicPrefix = "graylogic"

// CommandMessage asks the bridge to write a characteristic.
// Topic: graylogic/command/miio/{accessory_id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgment.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the accessory identifier (e.g. "air-purifier").
	DeviceID string `json:"device_id"`

	// Command is the command name. Only "set" is supported.
	Command string `json:"command"`

	// Parameters for "set":
	//   {"characteristic": "rotation_speed", "value": 40}
	//   {"service": "switch", "characteristic": "on", "value": true}
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("api", "automation", "voice").
	Source string `json:"source"`

	UserID string `json:"user_id,omitempty"`
}

// UnmarshalJSON accepts an empty or missing timestamp.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the device acknowledged the write.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the device did not answer in time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage acknowledges a command.
// Topic: graylogic/ack/miio/{accessory_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`

	// Characteristic is the characteristic the command addressed.
	Characteristic string `json:"characteristic,omitempty"`

	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "DEVICE_UNREACHABLE", "DEVICE_REJECTED").
	Code string `json:"code"`

	Message string `json:"message"`

	// Payload is the value the device returned instead of "ok".
	Payload any `json:"payload,omitempty"`
}

// Error codes for command and request failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeDeviceRejected    = "DEVICE_REJECTED"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeTimeout           = "TIMEOUT"
)

// StateMessage carries the cached values of one accessory.
// Topic: graylogic/state/miio/{accessory_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	// State maps service type to characteristic values:
	//   {"air_purifier": {"active": 1, "rotation_speed": 40}}
	State map[string]map[string]any `json:"state"`

	// Changed names the characteristic that triggered the message.
	Changed  string `json:"changed,omitempty"`
	Protocol string `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge status.
// Topic: graylogic/health/miio
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge             string            `json:"bridge"`
	Timestamp          time.Time         `json:"timestamp"`
	Status             HealthStatus      `json:"status"`
	Version            string            `json:"version"`
	UptimeSeconds      int64             `json:"uptime_seconds"`
	Device             *DeviceHealth     `json:"device,omitempty"`
	Statistics         *BridgeStatistics `json:"statistics,omitempty"`
	AccessoriesManaged int               `json:"accessories_managed"`
	Reason             string            `json:"reason,omitempty"`
}

// DeviceHealth describes the purifier as seen from the bridge.
type DeviceHealth struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	IP          string     `json:"ip"`
	Reachable   bool       `json:"reachable"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

// BridgeStatistics contains device call counters.
type BridgeStatistics struct {
	Calls           uint64 `json:"calls"`
	Rejections      uint64 `json:"rejections"`
	TransportErrors uint64 `json:"transport_errors"`
}

// RequestMessage asks the bridge for a request/response operation.
// Topic: graylogic/request/miio/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is one of "read_state", "read_all", "describe".
	Action string `json:"action"`

	// DeviceID is the target accessory (read_state, describe).
	DeviceID string `json:"device_id,omitempty"`

	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/miio/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus, characteristic string) AckMessage {
	return AckMessage{
		CommandID:      cmd.ID,
		Timestamp:      time.Now().UTC(),
		DeviceID:       cmd.DeviceID,
		Status:         status,
		Protocol:       Protocol,
		Characteristic: characteristic,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, characteristic, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, status, characteristic)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage creates a state message for an accessory.
func NewStateMessage(accessoryID, changed string, state map[string]map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  accessoryID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Changed:   changed,
		Protocol:  Protocol,
	}
}

// NewLWTMessage creates the Last Will and Testament health message.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

func errorResponse(requestID, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     &ResponseError{Code: code, Message: message},
	}
}

// CommandTopic returns the MQTT topic for commands to an accessory.
// Example: graylogic/command/miio/air-purifier
func CommandTopic(accessoryID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, accessoryID)
}

// AckTopic returns the MQTT topic for command acknowledgments.
func AckTopic(accessoryID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, accessoryID)
}

// StateTopic returns the MQTT topic for accessory state.
func StateTopic(accessoryID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, accessoryID)
}

// HealthTopic returns the MQTT topic for health status.
func HealthTopic() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// RequestTopic returns the MQTT topic for requests.
func RequestTopic(requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, Protocol, requestID)
}

// ResponseTopic returns the MQTT topic for responses.
func ResponseTopic(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, Protocol, requestID)
}

// CommandSubscribeTopic returns the subscription pattern for all commands.
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/command/%s/#", TopicPrefix, Protocol)
}

// RequestSubscribeTopic returns the subscription pattern for all requests.
func RequestSubscribeTopic() string {
	return fmt.Sprintf("%s/request/%s/#", TopicPrefix, Protocol)
}

// RelayRequestTopic returns the topic the gateway reads device calls from.
// Example: graylogic/miio/rpc/air-purifier-01/request
func RelayRequestTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/rpc/%s/request", TopicPrefix, Protocol, deviceID)
}

// RelayReplyTopic returns the topic the gateway answers on.
func RelayReplyTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/rpc/%s/reply", TopicPrefix, Protocol, deviceID)
}
