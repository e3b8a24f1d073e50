package symmetry

import (
	"context"
	"log"
	"time"
)

// Service runs Mirror for snapshots arriving over MQTT or HTTP, using the
// configured defaults, and records every outcome.
type Service struct {
	Config    *Config
	State     *StateTracker
	Publisher *Publisher // optional
}

// NewService creates a service; a nil config means DefaultConfig
func NewService(cfg *Config, state *StateTracker, pub *Publisher) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if state == nil {
		state = NewStateTracker()
	}
	return &Service{Config: cfg, State: state, Publisher: pub}
}

// Handle resolves and runs one snapshot. The outcome is recorded and, when a
// publisher is set, published on the result or error topic.
func (s *Service) Handle(ctx context.Context, snap *Snapshot) (*Result, error) {
	start := time.Now()

	res, err := s.run(ctx, snap)

	requestID := ""
	if snap != nil {
		requestID = snap.RequestID
	}
	s.State.Record(Outcome{
		RequestID: requestID,
		Snapshot:  snap,
		Result:    res,
		Err:       err,
		At:        start,
		Elapsed:   time.Since(start),
	})

	if s.Publisher != nil {
		var pubErr error
		if err != nil {
			pubErr = s.Publisher.PublishError(requestID, err)
		} else {
			pubErr = s.Publisher.PublishResult(requestID, res)
		}
		if pubErr != nil {
			log.Printf("[MIRROR] error publishing outcome for %q: %v", requestID, pubErr)
		}
	}
	return res, err
}

// HandleDecodeError records and publishes a payload that never became a snapshot.
func (s *Service) HandleDecodeError(err error) {
	s.State.Record(Outcome{Err: err, At: time.Now()})
	if s.Publisher != nil {
		if pubErr := s.Publisher.PublishError("", err); pubErr != nil {
			log.Printf("[MIRROR] error publishing decode failure: %v", pubErr)
		}
	}
}

func (s *Service) run(ctx context.Context, snap *Snapshot) (*Result, error) {
	if snap == nil {
		return nil, ErrInvalidSnapshot
	}
	req, err := snap.Request(s.Config)
	if err != nil {
		return nil, err
	}
	return Mirror(ctx, req, s.Config.Options())
}
