// Package pipeline runs one delivery pass: fetch the batch, extract each
// record, drop those without an identity or already in the ledger, notify
// the rest and record them.
//
// Records are handled one at a time in source order. Only a fetch failure
// fails the pass; per-record delivery and persist errors are logged,
// counted in the Report and the loop continues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderbot/internal/source"
	kit "orderbot/internal/transport"
	logx "orderbot/pkg/logx"
)

type Deps struct {
	Source    Source
	Extractor Extractor
	Ledger    Ledger
	Notifier  Notifier
	Recorder  Recorder // optional
	Log       logx.Logger

	Target kit.ChatTarget
	Policy MarkPolicy
}

type Pipeline struct {
	d   Deps
	log logx.Logger
	now func() time.Time
}

func New(d Deps) (*Pipeline, error) {
	switch {
	case d.Source == nil:
		return nil, errors.New("pipeline: source is nil")
	case d.Extractor == nil:
		return nil, errors.New("pipeline: extractor is nil")
	case d.Ledger == nil:
		return nil, errors.New("pipeline: ledger is nil")
	case d.Notifier == nil:
		return nil, errors.New("pipeline: notifier is nil")
	}
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{d: d, log: log.With(logx.String("comp", "pipeline")), now: time.Now}, nil
}

// Run executes one pass. The returned error is non-nil only when the batch
// could not be fetched (it wraps source.ErrUnavailable) or ctx ended.
func (p *Pipeline) Run(ctx context.Context) (rep Report, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rep.Started = p.now()
	defer func() {
		rep.Duration = p.now().Sub(rep.Started)
		rep.Err = err
		switch {
		case err != nil:
			rep.Result = ResultFailed
		case rep.Delivered+rep.DeliveryFailed == 0:
			rep.Result = ResultNoop
		default:
			rep.Result = ResultOK
		}
		p.enter(StateDone)
		if p.d.Recorder != nil {
			p.d.Recorder.ObservePass(rep)
		}
		p.logReport(rep)
	}()

	p.enter(StateFetching)
	recs, err := p.d.Source.Fetch(ctx)
	if err != nil {
		return rep, fmt.Errorf("fetch records: %w", err)
	}
	rep.Fetched = len(recs)
	if len(recs) == 0 {
		p.log.Info("no records in source")
		return rep, nil
	}

	loaded := p.d.Ledger.Load(ctx)
	p.log.Debug("ledger loaded", logx.Int("entries", loaded))

	for i, rec := range recs {
		if cerr := ctx.Err(); cerr != nil {
			rep.LedgerSize = p.d.Ledger.Len()
			return rep, fmt.Errorf("pass interrupted after %d of %d records: %w", i, len(recs), cerr)
		}
		p.processRecord(ctx, rec, &rep)
	}
	rep.LedgerSize = p.d.Ledger.Len()
	return rep, nil
}

func (p *Pipeline) processRecord(ctx context.Context, rec source.Record, rep *Report) {
	p.enter(StateExtracting)
	n := p.d.Extractor.Extract(rec)

	p.enter(StateFiltering)
	if !n.HasIdentity() {
		rep.NoIdentity++
		p.log.Debug("record has no identity; skipped", logx.String("page_id", n.PageID))
		return
	}
	if p.d.Ledger.Contains(n.Identity) {
		rep.Known++
		p.log.Trace("already delivered", logx.String("identity", n.Identity))
		return
	}

	p.enter(StateNotifying)
	derr := p.d.Notifier.Notify(ctx, p.d.Target, n)
	if derr != nil {
		rep.DeliveryFailed++
		p.log.Error("notification failed", logx.String("identity", n.Identity), logx.Err(derr))
	} else {
		rep.Delivered++
	}

	if !p.d.Policy.shouldMark(derr) {
		rep.Unmarked++
		p.log.Warn("identity left unmarked; it will be retried", logx.String("identity", n.Identity), logx.String("policy", p.d.Policy.String()))
		return
	}

	p.enter(StatePersisting)
	if perr := p.d.Ledger.Append(ctx, n.Identity); perr != nil {
		rep.PersistFailed++
		p.log.Error("ledger persist failed", logx.String("identity", n.Identity), logx.Err(perr))
		return
	}
	rep.Marked++
}

func (p *Pipeline) enter(s State) {
	p.log.Trace("state", logx.String("state", s.String()))
}

func (p *Pipeline) logReport(r Report) {
	fields := []logx.Field{
		logx.String("result", string(r.Result)),
		logx.Int("fetched", r.Fetched),
		logx.Int("delivered", r.Delivered),
		logx.Int("delivery_failed", r.DeliveryFailed),
		logx.Int("known", r.Known),
		logx.Int("no_identity", r.NoIdentity),
		logx.Int("persist_failed", r.PersistFailed),
		logx.Duration("took", r.Duration),
	}
	if r.Err != nil {
		p.log.Error("pass failed", append(fields, logx.Err(r.Err))...)
		return
	}
	p.log.Info("pass finished", fields...)
}
