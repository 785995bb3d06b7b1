package diag

import (
	"fmt"
	"time"

	influx "github.com/influxdata/influxdb1-client/v2"
)

// InfluxClient pushes recorded outcomes to a real InfluxDB instance.
// Grounded on dropbox-llama's influx.go/tags.go DataPoint/TagSet shape,
// adapted to build github.com/influxdata/influxdb1-client/v2 points
// directly instead of hand-rolling the wire JSON dropbox-llama used for
// its own HTTP-polled client/mock pair.
type InfluxClient struct {
	httpClient influx.Client
	database   string
}

// NewInfluxClient dials addr (e.g. "http://localhost:8086") and returns a
// client that writes to database.
func NewInfluxClient(addr, database, username, password string) (*InfluxClient, error) {
	c, err := influx.NewHTTPClient(influx.HTTPConfig{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("diag: connecting to influxdb at %s: %w", addr, err)
	}
	return &InfluxClient{httpClient: c, database: database}, nil
}

// Close releases the underlying HTTP client.
func (c *InfluxClient) Close() error {
	return c.httpClient.Close()
}

// WriteOutcomes converts each Outcome to an InfluxDB point in the
// "nat_traversal_outcomes" measurement and writes them in one batch.
func (c *InfluxClient) WriteOutcomes(outcomes []Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	bp, err := influx.NewBatchPoints(influx.BatchPointsConfig{
		Database:  c.database,
		Precision: "s",
	})
	if err != nil {
		return fmt.Errorf("diag: building batch points: %w", err)
	}

	for _, o := range outcomes {
		tags := map[string]string{
			"operation": o.Operation,
			"success":   fmt.Sprintf("%t", o.Success),
			"id":        o.ID,
		}
		fields := map[string]interface{}{
			"warning_count": len(o.Warnings),
		}
		pt, err := influx.NewPoint("nat_traversal_outcomes", tags, fields, pointTime(o.At))
		if err != nil {
			return fmt.Errorf("diag: building point for %s: %w", o.Operation, err)
		}
		bp.AddPoint(pt)
	}

	if err := c.httpClient.Write(bp); err != nil {
		return fmt.Errorf("diag: writing batch to influxdb: %w", err)
	}
	return nil
}

func pointTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
