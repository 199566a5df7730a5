package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// TopicPrefix is the base for topics owned by versionwatch itself. File
// versions go to each file's configured topic instead.
const TopicPrefix = "versionwatch"

// StatusTopic returns the retained online/offline topic for a client.
//
// Example: versionwatch/versionwatch-01/status
func StatusTopic(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, clientID)
}

// statusPayload is published on StatusTopic.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildStatusPayload(status, clientID, reason string, now time.Time) []byte {
	data, _ := json.Marshal(statusPayload{ //nolint:errcheck // Plain struct of strings
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return data
}

func buildOnlinePayload(clientID string) []byte {
	return buildStatusPayload("online", clientID, "", time.Now())
}

func buildOfflinePayload(clientID string) []byte {
	return buildStatusPayload("offline", clientID, "graceful_shutdown", time.Now())
}

func buildWillPayload(clientID string) []byte {
	return buildStatusPayload("offline", clientID, "unexpected_disconnect", time.Now())
}
