package appointments

import (
	"context"

	"github.com/callthedoctor/call-relay/pkg/logging"
)

// NullStore satisfies Store when no record store is configured. Writes are
// acknowledged without persisting anything so the relay keeps routing
// calls; every call logs a warning so the misconfiguration is visible.
type NullStore struct {
	logger *logging.Logger
}

// NewNullStore creates a store that persists nothing.
func NewNullStore(logger *logging.Logger) *NullStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &NullStore{logger: logger}
}

func (s *NullStore) Insert(_ context.Context, rec Record) (*Record, error) {
	s.logger.Warn("record store not configured, skipping insert")
	return &rec, nil
}

func (s *NullStore) UpdateDateTime(context.Context, int, int, string, string) (*Record, error) {
	s.logger.Warn("record store not configured, skipping update")
	return nil, nil
}

func (s *NullStore) UpdateStatus(context.Context, int, int, string) (*Record, error) {
	s.logger.Warn("record store not configured, skipping status update")
	return nil, nil
}

func (s *NullStore) Configured() bool { return false }
