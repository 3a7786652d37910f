package convert

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/ppiankov/finstate/internal/model"
)

const edgarArchiveURL = "https://www.sec.gov/Archives/edgar/data/%s/%s/%s"

// Referencer derives the remote reference URL handed to the service
type Referencer struct {
	legacy *template.Template
}

// NewReferencer parses the legacy URL template. An empty template disables
// the legacy step.
func NewReferencer(legacyTemplate string) (*Referencer, error) {
	r := &Referencer{}
	if legacyTemplate == "" {
		return r, nil
	}
	tmpl, err := template.New("reference").Option("missingkey=error").Parse(legacyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse reference template: %w", err)
	}
	r.legacy = tmpl
	return r, nil
}

// Reference returns the URL for a document: an explicit URL wins, then the
// EDGAR archive location built from CIK, accession and primary document,
// then the legacy template.
func (r *Referencer) Reference(meta model.DocumentMeta) (string, error) {
	if meta.URL != "" {
		return meta.URL, nil
	}

	cik := trimCIK(meta.CIK)
	if cik != "" && meta.Accession != "" && meta.PrimaryDocument != "" {
		return fmt.Sprintf(edgarArchiveURL, cik, strings.ReplaceAll(meta.Accession, "-", ""), meta.PrimaryDocument), nil
	}

	if r.legacy == nil {
		return "", errors.New("no url and incomplete archive identifiers")
	}
	if cik == "" || meta.Year == "" {
		return "", fmt.Errorf("legacy reference needs cik and year (cik=%q year=%q)", meta.CIK, meta.Year)
	}

	var buf bytes.Buffer
	err := r.legacy.Execute(&buf, struct {
		CIK       string
		Ticker    string
		Year      string
		Accession string
	}{
		CIK:       cik,
		Ticker:    strings.ToLower(meta.Ticker),
		Year:      meta.Year,
		Accession: meta.Accession,
	})
	if err != nil {
		return "", fmt.Errorf("render reference template: %w", err)
	}
	return buf.String(), nil
}

// ArchiveHint returns the EDGAR XBRL bundle location implied by an accession
// fragment whose first two digits are the filing year, or "" if unknown.
func ArchiveHint(meta model.DocumentMeta) string {
	cik := trimCIK(meta.CIK)
	if cik == "" || len(meta.Accession) < 2 {
		return ""
	}
	filingYear := "20" + meta.Accession[:2]
	return fmt.Sprintf(edgarArchiveURL, cik, filingYear+meta.Accession, "xbrl.zip")
}

// trimCIK drops zero padding; archive paths use the bare number
func trimCIK(cik string) string {
	return strings.TrimLeft(strings.TrimSpace(cik), "0")
}
