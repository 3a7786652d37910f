package model

import "path/filepath"

// MetaSource records where a document's metadata came from
type MetaSource string

const (
	MetaSourceNone     MetaSource = ""
	MetaSourceConfig   MetaSource = "config"   // Explicit per-document configuration
	MetaSourceDocument MetaSource = "document" // Inline XBRL facts inside the file
	MetaSourceFilename MetaSource = "filename" // Legacy naming-convention inference
)

// DocumentMeta holds the filing identifiers used to build a remote reference
type DocumentMeta struct {
	CIK             string     `yaml:"cik,omitempty" mapstructure:"cik"`
	Ticker          string     `yaml:"ticker,omitempty" mapstructure:"ticker"`
	Year            string     `yaml:"year,omitempty" mapstructure:"year"`
	Accession       string     `yaml:"accession,omitempty" mapstructure:"accession"`
	PrimaryDocument string     `yaml:"primary_document,omitempty" mapstructure:"primary_document"`
	URL             string     `yaml:"url,omitempty" mapstructure:"url"`
	Source          MetaSource `yaml:"-" mapstructure:"-"`
}

// Merge fills empty fields of m from other and returns the result.
// Source is taken from other only when m contributed nothing.
func (m DocumentMeta) Merge(other DocumentMeta) DocumentMeta {
	empty := m.IsEmpty()
	if m.CIK == "" {
		m.CIK = other.CIK
	}
	if m.Ticker == "" {
		m.Ticker = other.Ticker
	}
	if m.Year == "" {
		m.Year = other.Year
	}
	if m.Accession == "" {
		m.Accession = other.Accession
	}
	if m.PrimaryDocument == "" {
		m.PrimaryDocument = other.PrimaryDocument
	}
	if m.URL == "" {
		m.URL = other.URL
	}
	if empty {
		m.Source = other.Source
	}
	return m
}

// IsEmpty reports whether no identifier is set
func (m DocumentMeta) IsEmpty() bool {
	return m.CIK == "" && m.Ticker == "" && m.Year == "" &&
		m.Accession == "" && m.PrimaryDocument == "" && m.URL == ""
}

// SourceDocument identifies one input filing
type SourceDocument struct {
	Path string
	Meta DocumentMeta
}

// ID returns the identifier recorded in the source column of every table
func (d SourceDocument) ID() string {
	return filepath.Base(d.Path)
}

// DocumentSpec is a configured document entry
type DocumentSpec struct {
	Path         string `yaml:"path" mapstructure:"path"`
	DocumentMeta `yaml:",inline" mapstructure:",squash"`
}
