package mqtt

import "fmt"

const (
	// TopicPrefix is the root of every topic the service uses.
	TopicPrefix = "graylogic"

	// TopicPrefixSystem is the base for process status topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics builds the service-level topics. Bridge message topics are built
// by the bridge package itself.
type Topics struct{}

// ServiceStatus returns the retained online/offline topic of one client.
//
// Example: graylogic/system/airpurifier/status
func (Topics) ServiceStatus(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixSystem, clientID)
}

// AllServiceStatus matches the status topic of every client.
func (Topics) AllServiceStatus() string {
	return TopicPrefixSystem + "/+/status"
}
