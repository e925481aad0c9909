package protocol

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"chainscan/internal/model"
	"chainscan/internal/token"
)

// Decoder turns raw log records of one protocol into typed events.
type Decoder interface {
	Protocol() string
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.TypedEvent, error)
}

// Registry routes logs to the first decoder claiming the topic0 and
// collects per-log decode failures instead of aborting the batch.
type Registry struct {
	decoders []Decoder
	tokens   *token.Service
	logger   *zap.Logger
	errs     []model.DecodeError
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithTokenService enables ERC20 metadata enrichment on decoded events.
func WithTokenService(service *token.Service) RegistryOption {
	return func(r *Registry) { r.tokens = service }
}

func NewRegistry(logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Register(decoder Decoder) {
	r.decoders = append(r.decoders, decoder)
}

// Decode decodes a single log. A nil event with nil error means no
// registered decoder claims the log.
func (r *Registry) Decode(ctx context.Context, log model.LogRecord) (*model.TypedEvent, error) {
	topic0 := log.Topic0()
	if topic0 == "" {
		return nil, nil
	}
	for _, decoder := range r.decoders {
		if !decoder.CanDecode(topic0) {
			continue
		}
		event, err := decoder.Decode(log)
		if err != nil {
			return nil, err
		}
		r.enrich(ctx, event)
		return event, nil
	}
	return nil, nil
}

// DecodeBatch decodes a batch, skipping unclaimed logs and recording
// failures. The returned slice keeps the input order.
func (r *Registry) DecodeBatch(ctx context.Context, logs []model.LogRecord) []model.TypedEvent {
	events := make([]model.TypedEvent, 0, len(logs))
	for _, log := range logs {
		event, err := r.Decode(ctx, log)
		if err != nil {
			r.recordError(log, err)
			continue
		}
		if event == nil {
			continue
		}
		events = append(events, *event)
	}
	return events
}

// Errors returns the decode failures collected so far.
func (r *Registry) Errors() []model.DecodeError {
	return r.errs
}

func (r *Registry) recordError(log model.LogRecord, err error) {
	r.logger.Warn("decode failed",
		zap.Error(err),
		zap.Uint64("block", log.BlockNumber),
		zap.String("tx", log.TxHash),
		zap.String("address", log.Address))
	r.errs = append(r.errs, model.DecodeError{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		Topic0:      log.Topic0(),
		Error:       err.Error(),
	})
}

// enrich attaches token metadata to events emitted by the token
// contract itself.
func (r *Registry) enrich(ctx context.Context, event *model.TypedEvent) {
	if r.tokens == nil || event == nil || event.Protocol != ProtocolERC20 {
		return
	}
	if !common.IsHexAddress(event.Address) {
		return
	}
	meta, err := r.tokens.Fetch(ctx, common.HexToAddress(event.Address))
	if err != nil {
		r.logger.Debug("token metadata fetch failed",
			zap.String("token", event.Address), zap.Error(err))
		return
	}
	event.TokenMeta = &meta
}
