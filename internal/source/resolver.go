package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/finstate/internal/model"
)

// Resolver attaches filing metadata to document paths. Configured metadata
// is authoritative; inline XBRL facts and the legacy filename convention
// only fill fields it leaves empty.
type Resolver struct {
	configured map[string]model.DocumentMeta
	issuer     model.DocumentMeta
	sniff      bool
	log        logrus.FieldLogger
}

// NewResolver indexes configured documents by path and by base name
func NewResolver(specs []model.DocumentSpec, issuer model.IssuerConfig, sniff bool, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	configured := make(map[string]model.DocumentMeta, len(specs)*2)
	for _, spec := range specs {
		meta := spec.DocumentMeta
		if !meta.IsEmpty() {
			meta.Source = model.MetaSourceConfig
		}
		configured[spec.Path] = meta
		if base := filepath.Base(spec.Path); base != spec.Path {
			if _, taken := configured[base]; !taken {
				configured[base] = meta
			}
		}
	}
	return &Resolver{
		configured: configured,
		issuer:     model.DocumentMeta{CIK: issuer.CIK, Ticker: issuer.Ticker},
		sniff:      sniff,
		log:        log,
	}
}

// Resolve returns the document with its metadata. The only error is a
// failure to read the file while sniffing it.
func (r *Resolver) Resolve(path string) (model.SourceDocument, error) {
	meta, ok := r.configured[path]
	if !ok {
		meta = r.configured[filepath.Base(path)]
	}

	if r.sniff && needsMore(meta) {
		sniffed, err := SniffFile(path)
		if err != nil {
			return model.SourceDocument{Path: path, Meta: meta}, fmt.Errorf("resolve %s: %w", filepath.Base(path), err)
		}
		meta = meta.Merge(sniffed)
	}

	if needsMore(meta) {
		meta = meta.Merge(FromFilename(filepath.Base(path)))
	}

	// Issuer defaults never claim provenance
	source := meta.Source
	meta = meta.Merge(r.issuer)
	meta.Source = source

	r.log.WithFields(logrus.Fields{
		"document": filepath.Base(path),
		"source":   string(meta.Source),
		"cik":      meta.CIK,
		"year":     meta.Year,
	}).Debug("metadata resolved")

	return model.SourceDocument{Path: path, Meta: meta}, nil
}

// needsMore reports whether no reference can be built from meta yet
func needsMore(meta model.DocumentMeta) bool {
	if meta.URL != "" {
		return false
	}
	if meta.CIK != "" && meta.Accession != "" && meta.PrimaryDocument != "" {
		return false
	}
	return meta.CIK == "" || meta.Year == "" || meta.Ticker == ""
}

// FromFilename applies the legacy naming convention
// <ticker>_<form>_<fragment>.<ext>. The fragment doubles as the year and the
// accession fragment; this is a guess and only used when nothing better is known.
func FromFilename(name string) model.DocumentMeta {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return model.DocumentMeta{}
	}
	fragment := strings.SplitN(parts[2], ".", 2)[0]
	if fragment == "" {
		return model.DocumentMeta{}
	}
	return model.DocumentMeta{
		Ticker:    parts[0],
		Year:      fragment,
		Accession: fragment,
		Source:    model.MetaSourceFilename,
	}
}
