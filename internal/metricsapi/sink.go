package metricsapi

import (
	"context"
	"time"

	"gamecore/internal/anticheat"
	"gamecore/internal/log"
	"gamecore/internal/metricsapi/store"
)

// StoreSink adapts the MySQL store to the Sink contract, for deployments
// that run the metrics sink in-process instead of over HTTP.
type StoreSink struct {
	st     *store.Store
	logger log.Logger
}

// NewStoreSink wraps a store.
func NewStoreSink(st *store.Store, logger log.Logger) *StoreSink {
	return &StoreSink{st: st, logger: logger}
}

func (s *StoreSink) CurrentGameID(roomCode int32) (int64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, err := s.st.GameIDForRoom(ctx, roomCode)
	if err != nil {
		s.logger.Debugf("game id for room %d: %v", roomCode, err)
		return 0, false
	}
	return id, true
}

func (s *StoreSink) FlushInfractions(batch []anticheat.Infraction) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.st.InsertInfractions(ctx, batch)
}
