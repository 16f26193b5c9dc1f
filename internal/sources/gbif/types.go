package gbif

// VernacularName is one entry of the GBIF species vernacularNames endpoint.
type VernacularName struct {
	VernacularName string `json:"vernacularName"`
	Language       string `json:"language"`
	Country        string `json:"country,omitempty"`
	Source         string `json:"source,omitempty"`
	Preferred      bool   `json:"preferred,omitempty"`
}

// vernacularPage is the paged envelope returned by GBIF list endpoints.
type vernacularPage struct {
	Offset       int              `json:"offset"`
	Limit        int              `json:"limit"`
	EndOfRecords bool             `json:"endOfRecords"`
	Results      []VernacularName `json:"results"`
}

// EnrichOptions controls an enrichment pass.
type EnrichOptions struct {
	Limit     int
	DryRun    bool
	Languages []string
}

// EnrichStats summarizes an enrichment pass.
type EnrichStats struct {
	Checked  int
	Updated  int
	NotFound int
	Errors   int
}
