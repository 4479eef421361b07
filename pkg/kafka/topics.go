package kafka

// TopicPrefix namespaces every topic this platform writes.
const TopicPrefix = "marketplace"

// Topic builds "<prefix>.<domain>.<action>".
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}
