package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/finstate/internal/cache"
	"github.com/ppiankov/finstate/internal/convert"
	"github.com/ppiankov/finstate/internal/extract"
	"github.com/ppiankov/finstate/internal/model"
	"github.com/ppiankov/finstate/internal/source"
	"github.com/ppiankov/finstate/internal/worker"
)

// ErrNoDocuments is returned when no document could be converted
var ErrNoDocuments = errors.New("no documents converted")

// Converter obtains conversion results for one document
type Converter interface {
	ConvertByReference(ctx context.Context, doc model.SourceDocument) (*model.ConversionResult, error)
	ConvertByContent(ctx context.Context, doc model.SourceDocument) (*model.ConversionResult, error)
}

// Resolver attaches metadata to a document path
type Resolver interface {
	Resolve(path string) (model.SourceDocument, error)
}

// Pacer spaces documents
type Pacer interface {
	Between(ctx context.Context) error
}

// Pipeline drives a batch run: convert every document in order, extract the
// three statements from each result, combine them per kind and write them out.
type Pipeline struct {
	converter Converter
	resolver  Resolver
	pacer     Pacer
	extractor *extract.StatementExtractor
	renderer  *Renderer
	fallback  model.FallbackMode
	xlsx      bool
	log       logrus.FieldLogger
}

// NewPipeline wires a pipeline from configuration
func NewPipeline(cfg *model.Config, log logrus.FieldLogger) (*Pipeline, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	pacer := worker.NewPacer(cfg.Pacing.Interval, cfg.Pacing.RequestsPerSecond)

	var memo cache.Cache
	if cfg.Cache.Enabled {
		memo = cache.NewMemoryCache(cfg.Cache.TTL)
	}

	client, err := convert.NewClient(convert.Options{
		Endpoint:          cfg.API.Endpoint,
		Token:             cfg.API.Token,
		UserAgent:         cfg.API.UserAgent,
		Timeout:           cfg.API.Timeout,
		MaxBodyBytes:      cfg.API.MaxBodyBytes,
		HTTPProxy:         cfg.HTTP.HTTPProxy,
		HTTPSProxy:        cfg.HTTP.HTTPSProxy,
		ReferenceTemplate: cfg.Reference.Template,
		Cache:             memo,
		CacheTTL:          cfg.Cache.TTL,
		Waiter:            pacer,
		Log:               log,
	})
	if err != nil {
		return nil, fmt.Errorf("create conversion client: %w", err)
	}

	fallback := cfg.Fallback
	switch fallback {
	case "":
		fallback = model.FallbackContent
	case model.FallbackContent, model.FallbackNone:
	default:
		return nil, fmt.Errorf("unknown fallback %q (supported: content, none)", cfg.Fallback)
	}

	return &Pipeline{
		converter: client,
		resolver:  source.NewResolver(cfg.Documents, cfg.Issuer, true, log),
		pacer:     pacer,
		extractor: extract.NewStatementExtractor(log),
		renderer:  NewRenderer(cfg.Output.Dir),
		fallback:  fallback,
		xlsx:      cfg.Output.XLSX,
		log:       log,
	}, nil
}

// converted is one successful document
type converted struct {
	doc    model.SourceDocument
	result *model.ConversionResult
}

// Run processes paths in order. Per-document failures never stop the batch;
// the returned report is always populated. The error is ErrNoDocuments when
// nothing converted, an output write error, or the context error.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*model.RunReport, error) {
	report := model.NewRunReport()
	var results []converted
	var runErr error

	for i, path := range paths {
		if i > 0 {
			if err := p.pacer.Between(ctx); err != nil {
				runErr = err
				break
			}
		}

		report.Attempted++
		log := p.log.WithField("document", filepath.Base(path))
		log.Info("processing document")

		doc, res, err := p.convert(ctx, path, log)
		if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
			log.WithError(ctxErr).Warn("run interrupted")
			report.Failures["interrupted"]++
			report.FailedDocs = append(report.FailedDocs, model.FailedDocument{
				Document: filepath.Base(path),
				Kind:     "interrupted",
				Reason:   ctxErr.Error(),
			})
			runErr = ctxErr
			break
		}
		if err != nil {
			kind := string(convert.KindOf(err))
			if kind == "" {
				kind = "unknown"
			}
			report.Failures[kind]++
			report.FailedDocs = append(report.FailedDocs, model.FailedDocument{
				Document: filepath.Base(path),
				Kind:     kind,
				Reason:   err.Error(),
			})
			continue
		}

		report.Succeeded++
		report.Strategies[res.Strategy]++
		log.WithField("strategy", res.Strategy).Info("document converted")
		results = append(results, converted{doc: doc, result: res})
	}

	tables := make(map[model.StatementKind][]*extract.Table, len(model.StatementKinds))
	for _, c := range results {
		for _, kind := range model.StatementKinds {
			table, ok := p.extractor.Extract(c.result, kind, c.doc.ID())
			if !ok {
				continue
			}
			tables[kind] = append(tables[kind], table)
			report.Extracted[kind.String()]++
		}
	}

	var combined []*extract.Table
	var writeErrs []error
	for _, kind := range model.StatementKinds {
		table := extract.Combine(kind, tables[kind])
		if table == nil {
			p.log.WithField("statement", kind.String()).Info("no tables extracted, output skipped")
			continue
		}
		combined = append(combined, table)

		path, err := p.renderer.RenderCSV(table)
		if err != nil {
			p.log.WithError(err).WithField("statement", kind.String()).Error("write combined table failed")
			writeErrs = append(writeErrs, err)
			continue
		}
		report.Outputs = append(report.Outputs, path)
		p.log.WithFields(logrus.Fields{
			"statement": kind.String(),
			"rows":      len(table.Rows),
			"path":      path,
		}).Info("combined table saved")
	}

	if p.xlsx && len(combined) > 0 {
		path, err := p.renderer.RenderWorkbook(combined)
		if err != nil {
			p.log.WithError(err).Error("write workbook failed")
			writeErrs = append(writeErrs, err)
		} else {
			report.Outputs = append(report.Outputs, path)
		}
	}

	p.log.WithFields(logrus.Fields{
		"attempted":      report.Attempted,
		"succeeded":      report.Succeeded,
		"income":         report.Extracted[model.StatementIncome.String()],
		"balance_sheets": report.Extracted[model.StatementBalance.String()],
		"cash_flows":     report.Extracted[model.StatementCashFlow.String()],
	}).Info("batch complete")

	switch {
	case runErr == nil && ctx.Err() != nil:
		return report, ctx.Err()
	case runErr != nil:
		return report, runErr
	case len(writeErrs) > 0:
		return report, errors.Join(writeErrs...)
	case report.Succeeded == 0:
		return report, ErrNoDocuments
	}
	return report, nil
}

// convert resolves one document and tries the reference strategy, then the
// configured fallback.
func (p *Pipeline) convert(ctx context.Context, path string, log logrus.FieldLogger) (model.SourceDocument, *model.ConversionResult, error) {
	doc, err := p.resolver.Resolve(path)
	if err != nil {
		log.WithError(err).Error("source document unreadable")
		return doc, nil, &convert.Error{Kind: convert.KindIO, Document: filepath.Base(path), Err: err}
	}

	res, err := p.converter.ConvertByReference(ctx, doc)
	if err == nil {
		return doc, res, nil
	}

	if hint := convert.ArchiveHint(doc.Meta); hint != "" {
		log.WithField("archive", hint).Info("XBRL archive available for offline processing")
	}

	if ctx.Err() != nil {
		return doc, nil, err
	}

	if p.fallback == model.FallbackNone {
		log.Info("reference conversion failed, fallback disabled")
		return doc, nil, err
	}

	log.Info("reference conversion failed, uploading document content")
	res, err = p.converter.ConvertByContent(ctx, doc)
	if err != nil {
		return doc, nil, err
	}
	return doc, res, nil
}
