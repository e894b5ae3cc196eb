package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// MockWriteAPI stands in for the influx writer when no database is
// configured. It keeps the points it receives so tests can inspect them.
type MockWriteAPI struct {
	mu     sync.Mutex
	points []*write.Point
	keep   bool
}

// NewRecordingWriteAPI returns a mock that retains every point.
func NewRecordingWriteAPI() *MockWriteAPI {
	return &MockWriteAPI{keep: true}
}

func (m *MockWriteAPI) WriteRecord(line string) {}

func (m *MockWriteAPI) WritePoint(point *write.Point) {
	if !m.keep {
		return
	}
	m.mu.Lock()
	m.points = append(m.points, point)
	m.mu.Unlock()
}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

func (m *MockWriteAPI) Errors() <-chan error { return nil }

// Points returns the retained points whose measurement matches name, or
// all of them when name is empty.
func (m *MockWriteAPI) Points(name string) []*write.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ret []*write.Point
	for _, p := range m.points {
		if name == "" || p.Name() == name {
			ret = append(ret, p)
		}
	}
	return ret
}
