package util

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api/write"
)

func TimeOperationMicroseconds(op func()) int64 {
	start := time.Now()
	op()
	return time.Since(start).Microseconds()
}

// NewPoint builds a measurement tagged with the system id.
func NewPoint(measurement, systemID string, tags map[string]string, fields map[string]interface{}, ts time.Time) *write.Point {
	allTags := map[string]string{"system": systemID}
	for k, v := range tags {
		allTags[k] = v
	}
	return influxdb2.NewPoint(measurement, allTags, fields, ts)
}
