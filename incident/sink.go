package incident

import (
	"context"

	"github.com/rs/zerolog"

	"rampart/waf"
)

type sinkImpl struct {
	logger zerolog.Logger
	store  *Store
}

// NewSink creates the incident sink the engine reports to. store may be nil,
// in which case events are only logged. Record never returns an error;
// failures are logged and swallowed so they cannot reach the response path.
func NewSink(logger zerolog.Logger, store *Store) waf.IncidentSink {
	return &sinkImpl{logger: logger, store: store}
}

func (s *sinkImpl) Record(req waf.HTTPRequest, d waf.Decision, backgroundSignals []waf.AnalysisResult) {
	s.logger.Info().
		Str("txid", req.TransactionID()).
		Str("sourceIP", req.RemoteAddr()).
		Str("path", req.Path()).
		Str("category", d.Category.String()).
		Float64("score", d.Score).
		Str("action", d.Action.String()).
		Int("findings", len(d.Findings)).
		Int("backgroundSignals", len(backgroundSignals)).
		Msg("incident recorded")

	if s.store == nil {
		return
	}
	if err := s.store.RecordEvent(context.Background(), req, d, backgroundSignals); err != nil {
		s.logger.Error().Err(err).Str("txid", req.TransactionID()).Msg("failed to persist incident")
	}
}
