package model

// RunReport summarizes one batch run
type RunReport struct {
	Attempted  int              `json:"attempted" yaml:"attempted"`
	Succeeded  int              `json:"succeeded" yaml:"succeeded"`
	Failures   map[string]int   `json:"failures,omitempty" yaml:"failures,omitempty"` // Failure kind -> documents
	Extracted  map[string]int   `json:"extracted" yaml:"extracted"`                   // Statement kind -> tables
	Strategies map[string]int   `json:"strategies" yaml:"strategies"`                 // Conversion strategy -> documents
	Outputs    []string         `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	FailedDocs []FailedDocument `json:"failed_documents,omitempty" yaml:"failed_documents,omitempty"`
}

// FailedDocument records why one document produced no result
type FailedDocument struct {
	Document string `json:"document" yaml:"document"`
	Kind     string `json:"kind" yaml:"kind"`
	Reason   string `json:"reason" yaml:"reason"`
}

// NewRunReport returns an empty report
func NewRunReport() *RunReport {
	return &RunReport{
		Failures:   make(map[string]int),
		Extracted:  make(map[string]int),
		Strategies: make(map[string]int),
	}
}

// Failed reports the number of documents without a result
func (r *RunReport) Failed() int {
	return r.Attempted - r.Succeeded
}
