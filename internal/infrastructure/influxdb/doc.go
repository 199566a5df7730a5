// Package influxdb records file version history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Each successful
// version resolution becomes one point:
//
//	file_version,file_id=<id>,name=<name> version="<version>" <time>
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteFileVersion(file.ID, file.Name, "1.2.3.4", time.Now())
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); batch
// failures are delivered to the SetOnError callback. Connection and health
// check errors are returned directly.
package influxdb
