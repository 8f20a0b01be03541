package transport

import "strings"

const sharedPrefix = "$share/"

// MatchTopic reports whether topic matches the MQTT topic filter,
// including + and # wildcards and shared subscriptions.
func MatchTopic(filter, topic string) bool {
	if tf, ok := strings.CutPrefix(filter, sharedPrefix); ok {
		idx := strings.Index(tf, "/")
		if idx == -1 {
			return false
		}
		filter = tf[idx+1:]
	}

	filters := strings.Split(filter, "/")
	names := strings.Split(topic, "/")

	for i, level := range filters {
		switch level {
		case "#":
			return i == len(filters)-1
		case "+":
			if i >= len(names) {
				return false
			}
			continue
		}
		if i >= len(names) || level != names[i] {
			return false
		}
	}

	return len(filters) == len(names)
}
