package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/order-tagger/internal/tagger"
)

// MockWriter is a mock ReportWriter for testing.
type MockWriter struct {
	WriteFunc  func(ctx context.Context, report tagger.Report) error
	Reports    []tagger.Report
	WriteCalls int
	mu         sync.Mutex
}

// WriteReport implements ReportWriter.
func (m *MockWriter) WriteReport(ctx context.Context, report tagger.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCalls++
	m.Reports = append(m.Reports, report)
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, report)
	}
	return nil
}

// LastReport returns the most recently written report.
func (m *MockWriter) LastReport() (tagger.Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Reports) == 0 {
		return tagger.Report{}, false
	}
	return m.Reports[len(m.Reports)-1], true
}

var _ ReportWriter = (*MockWriter)(nil)
