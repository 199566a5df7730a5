package store

// Snapshot keys.
const (
	KeyFiles  = "files"
	KeyBroker = "broker"
)

// Update states written to WatchedFile.UpdateState.
const (
	StateSuccess           = "Success"
	StateBrokerUnavailable = "Broker not connected, version not published"
)

// WatchedFile is one monitored file entry. Several entries may reference the
// same path; each is published to its own topic.
type WatchedFile struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	Enabled       bool   `json:"enabled"`
	MQTTTopic     string `json:"mqtt_topic"`
	LastVersion   string `json:"last_version"`
	LastUpdateUTC string `json:"last_update_utc"`
	UpdateState   string `json:"update_state"`
}

// Files is the "files" snapshot keyed by WatchedFile.ID.
type Files map[string]WatchedFile

// Enabled returns the enabled entries.
func (f Files) Enabled() []WatchedFile {
	out := make([]WatchedFile, 0, len(f))
	for _, file := range f {
		if file.Enabled {
			out = append(out, file)
		}
	}
	return out
}

// Clone returns a shallow copy safe to mutate.
func (f Files) Clone() Files {
	out := make(Files, len(f))
	for id, file := range f {
		out[id] = file
	}
	return out
}

// BrokerConfig is the "broker" snapshot: connection parameters, publish
// identity and the status fields owned by the connection manager.
type BrokerConfig struct {
	ClientID    string `json:"client_id"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Protocol    string `json:"protocol"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DeviceID    string `json:"device_id"`
	DeviceGroup string `json:"device_group"`

	Connected bool   `json:"connected"`
	State     string `json:"state"`
}

// ConnectionSettings is the subset of BrokerConfig that requires a new
// connection when it changes.
type ConnectionSettings struct {
	ClientID string
	Host     string
	Port     int
	Protocol string
	Username string
	Password string
}

// Connection returns the connection-relevant fields of b.
func (b BrokerConfig) Connection() ConnectionSettings {
	return ConnectionSettings{
		ClientID: b.ClientID,
		Host:     b.Host,
		Port:     b.Port,
		Protocol: b.Protocol,
		Username: b.Username,
		Password: b.Password,
	}
}
