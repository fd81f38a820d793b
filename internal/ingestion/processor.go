package ingestion

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"solana-event-log/internal/domain"
	"solana-event-log/internal/idhash"
	"solana-event-log/internal/observability"
	"solana-event-log/internal/solana"
)

// Processor turns raw upstream frames into persistence jobs.
// HandleMessage is called sequentially by a single reader.
type Processor struct {
	classifier *Classifier
	projectors *ProjectorRegistry
	submitter  Submitter
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// ProcessorOptions contains configuration for creating a Processor.
type ProcessorOptions struct {
	Classifier *Classifier        // Default: NewClassifier(nil)
	Projectors *ProjectorRegistry // required
	Submitter  Submitter          // required
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time // Default: time.Now
}

// NewProcessor creates a new Processor.
func NewProcessor(opts ProcessorOptions) *Processor {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Processor{
		classifier: classifier,
		projectors: opts.Projectors,
		submitter:  opts.Submitter,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}
}

// HandleMessage processes one upstream frame. Malformed frames are logged and
// discarded; they never terminate the stream.
func (p *Processor) HandleMessage(ctx context.Context, raw []byte) {
	p.metrics.RecordMessage()

	env, err := solana.ParseEnvelope(raw)
	if err != nil {
		p.metrics.RecordMalformed()
		p.logger.Warn("discarding malformed message", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}

	switch {
	case env.Error != nil:
		p.logger.Error("upstream error reply",
			zap.Int("code", env.Error.Code),
			zap.String("message", env.Error.Message))
		return
	case env.ID != nil && len(env.Result) > 0:
		var subscription json.Number
		_ = json.Unmarshal(env.Result, &subscription)
		p.logger.Info("subscription confirmed",
			zap.Uint64("request_id", *env.ID),
			zap.String("subscription", subscription.String()))
		return
	case !env.IsNotification():
		p.logger.Debug("ignoring message", zap.String("method", env.Method))
		return
	}

	n, err := env.Notification()
	if err != nil {
		p.metrics.RecordMalformed()
		p.logger.Warn("discarding malformed notification", zap.Error(err))
		return
	}
	p.metrics.UpdateHighestSlot(n.Slot)

	jobs := p.Jobs(n)
	for i, job := range jobs {
		if err := p.submitter.Submit(ctx, job); err != nil {
			// Submit fails once the dispatcher is closed or ctx ends; the rest
			// of the transaction is dropped with it.
			p.logger.Warn("dispatch stopped, dropping remaining events of transaction",
				zap.String("signature", n.Signature),
				zap.String("fingerprint", job.Fingerprint),
				zap.Int("dropped", len(jobs)-i),
				zap.Int("total", len(jobs)),
				zap.Error(err))
			return
		}
	}
}

// Jobs classifies and projects every instruction of n.
func (p *Processor) Jobs(n *solana.TransactionNotification) []Job {
	tx := n.Transaction
	txc := TxContext{
		Signature:  n.Signature,
		Slot:       n.Slot,
		HasErr:     tx.Meta.HasError(),
		Err:        tx.Meta.ErrorDetail(),
		Fee:        domain.LamportsToSOL(tx.Meta.Fee),
		ObservedAt: p.now().Unix(),
	}

	classified, skips := p.classifier.Classify(tx)
	for _, s := range skips {
		p.metrics.RecordSkipped(string(s.Reason))
		p.logSkip(n.Signature, s)
	}

	var jobs []Job
	for _, c := range classified {
		family, typ := string(c.Family), c.Record.Instruction
		p.metrics.RecordClassified(family, typ)

		projector, ok := p.projectors.Lookup(c.Family, typ)
		if !ok {
			continue
		}
		e, ok := projector.Project(c, txc)
		if !ok {
			p.metrics.RecordFiltered(family, typ)
			continue
		}
		p.metrics.RecordProjected(family, typ)

		jobs = append(jobs, Job{Event: e, Fingerprint: idhash.ComputeFingerprint(e)})
	}
	return jobs
}

func (p *Processor) logSkip(signature string, s Skip) {
	fields := []zap.Field{
		zap.String("signature", signature),
		zap.Int("instruction", s.Index),
		zap.String("program", s.Program),
		zap.String("reason", string(s.Reason)),
	}
	if s.Err != nil {
		fields = append(fields, zap.Error(s.Err))
	}

	switch s.Reason {
	case SkipUnmappedProgram, SkipUnrecognized:
		p.logger.Debug("instruction skipped", fields...)
	default:
		p.logger.Warn("instruction skipped", fields...)
	}
}
