package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Point schema for version history.
const (
	measurementFileVersion = "file_version"
	tagFileID              = "file_id"
	tagName                = "name"
	fieldVersion           = "version"
)

// WriteFileVersion queues one file_version point stamped with at. It returns
// at once; a closed client drops the point.
func (c *Client) WriteFileVersion(fileID, name, version string, at time.Time) {
	if c.closed.Load() {
		return
	}
	tags := map[string]string{tagFileID: fileID, tagName: name}
	fields := map[string]any{fieldVersion: version}
	c.points.WritePoint(write.NewPoint(measurementFileVersion, tags, fields, at))
}
