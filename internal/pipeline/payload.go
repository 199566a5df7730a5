package pipeline

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/versionwatch/internal/store"
)

// dataTypeString is the only measure type versionwatch publishes.
const dataTypeString = "String"

// Measurement is the JSON document published for one file version.
type Measurement struct {
	DeviceID  string            `json:"deviceId"`
	Timestamp string            `json:"timestamp"`
	Group     string            `json:"group"`
	Measures  map[string]string `json:"measures"`
}

// NewMeasurement builds the payload announcing file's current version.
func NewMeasurement(b store.BrokerConfig, file store.WatchedFile, at time.Time) Measurement {
	return Measurement{
		DeviceID:  b.DeviceID,
		Timestamp: at.UTC().Format(time.RFC3339),
		Group:     b.DeviceGroup,
		Measures: map[string]string{
			file.Name:              file.LastVersion,
			file.Name + "DataType": dataTypeString,
		},
	}
}

// Marshal encodes m as JSON.
func (m Measurement) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
