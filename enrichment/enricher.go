// Package enrichment enriches a single IP address: it validates the inputs,
// fetches the detail record through a lookup handler and exposes the record,
// its labels, the derived STIX objects and a Markdown note.
package enrichment

import (
	"context"
	"fmt"

	"github.com/imnitish-dev/ipenrich/details"
	"github.com/imnitish-dev/ipenrich/lookup"
	"github.com/imnitish-dev/ipenrich/stix"
	"go.uber.org/zap"
)

// Transformer derives labels and intelligence objects from a detail record.
// Whether Objects caches its result is up to the implementation.
type Transformer interface {
	Labels() []string
	Objects() ([]stix.Object, error)
}

// TransformerFunc builds the Transformer of one lookup.
type TransformerFunc func(rec *details.Record, author, markingRefs, entityID string) Transformer

type options struct {
	markingRefs    string
	entityID       string
	tokenRule      string
	log            *zap.Logger
	newTransformer TransformerFunc
}

// Option configures New.
type Option func(*options)

// WithMarkingRefs overrides the default marking reference "TLP:CLEAP".
func WithMarkingRefs(refs string) Option {
	return func(o *options) { o.markingRefs = refs }
}

// WithEntityID sets the STIX id of the observable being enriched.
func WithEntityID(id string) Option {
	return func(o *options) { o.entityID = id }
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithTransformer replaces the default STIX transformer.
func WithTransformer(fn TransformerFunc) Option {
	return func(o *options) { o.newTransformer = fn }
}

// WithTokenRule replaces DefaultTokenRule with another validator tag set,
// e.g. for handlers that accept an empty token.
func WithTokenRule(rule string) Option {
	return func(o *options) { o.tokenRule = rule }
}

// Enricher holds the outcome of one successful lookup. It is never mutated
// after New returns.
type Enricher struct {
	ip          string
	author      string
	markingRefs string
	entityID    string

	details   *details.Record
	labels    []string
	transform Transformer
	log       *zap.Logger
}

// New validates token and ip, then performs exactly one lookup through the
// handler built by factory. Validation failures return ErrInvalidCredential or
// ErrInvalidAddress before any handler is built. Errors from the factory or
// the handler are returned as is.
func New(ctx context.Context, factory lookup.Factory, token, ip, author string, opts ...Option) (*Enricher, error) {
	o := options{
		markingRefs: stix.DefaultMarking,
		tokenRule:   DefaultTokenRule,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With(zap.String("ip", ip))
	if o.newTransformer == nil {
		o.newTransformer = func(rec *details.Record, author, markingRefs, entityID string) Transformer {
			return stix.NewTransformer(rec, author, markingRefs, entityID, stix.WithLogger(log))
		}
	}

	if !validToken(token, o.tokenRule) {
		log.Error("invalid API token provided")
		return nil, ErrInvalidCredential
	}
	if !ValidIP(ip) {
		log.Error("invalid IP address")
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}

	handler, err := factory(token)
	if err != nil {
		return nil, err
	}
	rec, err := handler.FetchDetails(ctx, ip)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = details.NewRecord()
	}

	e := &Enricher{
		ip:          ip,
		author:      author,
		markingRefs: o.markingRefs,
		entityID:    o.entityID,
		details:     rec,
		log:         log,
	}
	e.transform = o.newTransformer(rec, author, o.markingRefs, o.entityID)
	e.labels = e.transform.Labels()

	log.Info("IP lookup successful", zap.Int("keys", rec.Len()), zap.Strings("labels", e.labels))
	return e, nil
}

// IP returns the enriched address.
func (e *Enricher) IP() string { return e.ip }

// Author returns the author name or identity id given to New.
func (e *Enricher) Author() string { return e.author }

// MarkingRefs returns the marking references applied to emitted objects.
func (e *Enricher) MarkingRefs() string { return e.markingRefs }

// EntityID returns the observable id override, or "".
func (e *Enricher) EntityID() string { return e.entityID }

// Details returns the record exactly as the handler produced it.
func (e *Enricher) Details() *details.Record {
	return e.details
}

// Labels returns the labels computed when the enricher was built.
func (e *Enricher) Labels() []string {
	labels := make([]string, len(e.labels))
	copy(labels, e.labels)
	return labels
}

// StixObjects returns the STIX objects derived from the detail record.
func (e *Enricher) StixObjects() ([]stix.Object, error) {
	return e.transform.Objects()
}

// NoteContent renders the detail record as Markdown, see details.RenderNote.
func (e *Enricher) NoteContent() string {
	return details.RenderNote(e.details, e.log)
}
