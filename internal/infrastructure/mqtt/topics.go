package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes.
const (
	// TopicPrefix is the base for every Grapher topic.
	TopicPrefix = "grapher"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "grapher/system"

	// TopicPrefixGraphs is the base for graph change events.
	TopicPrefixGraphs = "grapher/graphs"
)

// Topics provides builders for Grapher MQTT topics.
//
//	topic := mqtt.Topics{}.GraphEvent("1234", "updated")
//	// Returns: "grapher/graphs/1234/updated"
type Topics struct{}

// SystemStatus returns the retained online/offline status topic.
//
// Example: grapher/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// GraphEvent returns the topic for a change to one of owner's graphs.
// MQTT wildcard and separator characters in either part are replaced
// with "_".
//
// Example: grapher/graphs/1234/created
func (Topics) GraphEvent(owner, action string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixGraphs, sanitizeLevel(owner), sanitizeLevel(action))
}

var levelReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

func sanitizeLevel(s string) string {
	if s == "" {
		return "_"
	}
	return levelReplacer.Replace(s)
}
