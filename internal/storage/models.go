package storage

// Table names, one per vocabulary plus the association tables.
const (
	TableSnomed = "snomed_codes"
	TableICD10  = "icd10_codes"
	TableHCC    = "hcc_codes"
	TableCPT    = "cpt_codes"
	TableHCPCS  = "hcpcs_codes"
	TableRxNorm = "rxnorm_codes"
	TableNDC    = "ndc_codes"

	TableSnomedICD10  = "snomed_icd10_mapping"
	TableICD10HCC     = "icd10_hcc_mapping"
	TableSnomedHCC    = "snomed_hcc_mapping"
	TableRxNormSnomed = "rxnorm_snomed_mapping"
	TableNDCRxNorm    = "ndc_rxnorm_mapping"
	TableRxNormRel    = "rxnorm_relationships"
	TableConflicts    = "mapping_conflicts"
)

// Conflict lifecycle states
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
	StatusIgnored  = "ignored"
)

// Conflict reasons recorded by the mapping builders
const (
	ReasonSourceNotFound = "source_not_found"
	ReasonTargetNotFound = "target_not_found"
)

// Manual conflict actions accepted by UpdateConflict
const (
	ActionResolve = "resolve"
	ActionIgnore  = "ignore"
	ActionReopen  = "reopen"
)

// Edge provenance values on the drug mapping tables
const (
	MatchCrossReference = "cross-reference"
	MatchName           = "name-match"
	MatchNDCList        = "rxnorm_ndc_codes"
)

// SnomedCode is one active SNOMED CT concept
type SnomedCode struct {
	Code               string `json:"code"`
	Description        string `json:"description"`
	FullySpecifiedName string `json:"fullySpecifiedName,omitempty"`
	SemanticTag        string `json:"semanticTag,omitempty"`
	Active             bool   `json:"active"`
	ModuleID           string `json:"moduleId,omitempty"`
	EffectiveDate      string `json:"effectiveDate,omitempty"`
}

// ICD10Code is one ICD-10-CM code (category header or billable leaf)
type ICD10Code struct {
	Code             string `json:"code"`
	Description      string `json:"description"`
	ShortDescription string `json:"shortDescription,omitempty"`
	Category         string `json:"category,omitempty"`
	Chapter          string `json:"chapter,omitempty"`
	IsHeader         bool   `json:"isHeader"`
	Active           bool   `json:"active"`
	EffectiveDate    string `json:"effectiveDate,omitempty"`
}

// HCCCode is one Hierarchical Condition Category
type HCCCode struct {
	Code         string  `json:"code"`
	Description  string  `json:"description"`
	Category     string  `json:"category,omitempty"`
	Coefficient  float64 `json:"coefficient,omitempty"`
	ModelVersion string  `json:"modelVersion,omitempty"`
	PaymentYear  int     `json:"paymentYear,omitempty"`
	Active       bool    `json:"active"`
}

// CPTCode is one CPT procedure code
type CPTCode struct {
	Code             string `json:"code"`
	ShortDescription string `json:"shortDescription,omitempty"`
	LongDescription  string `json:"longDescription,omitempty"`
	Category         string `json:"category,omitempty"`
	DHSCategory      string `json:"dhsCategory,omitempty"`
	Status           string `json:"status,omitempty"`
	Active           bool   `json:"active"`
}

// HCPCSCode is one HCPCS Level II code
type HCPCSCode struct {
	Code             string `json:"code"`
	ShortDescription string `json:"shortDescription,omitempty"`
	LongDescription  string `json:"longDescription,omitempty"`
	Category         string `json:"category,omitempty"`
	DHSCategory      string `json:"dhsCategory,omitempty"`
	Status           string `json:"status,omitempty"`
	Active           bool   `json:"active"`
}

// RxNormCode is one RxNorm concept (RXCUI) with RXNSAT enrichment
type RxNormCode struct {
	Code                   string `json:"code"`
	Name                   string `json:"name"`
	TermType               string `json:"termType,omitempty"`
	Suppress               string `json:"suppress,omitempty"`
	Active                 bool   `json:"active"`
	RxTermForm             string `json:"rxTermForm,omitempty"`
	AvailableStrength      string `json:"availableStrength,omitempty"`
	Strength               string `json:"strength,omitempty"`
	HumanDrug              bool   `json:"humanDrug"`
	VetDrug                bool   `json:"vetDrug"`
	BNCardinality          string `json:"bnCardinality,omitempty"`
	NDCCodes               string `json:"ndcCodes,omitempty"`
	Quantity               string `json:"quantity,omitempty"`
	QualitativeDistinction string `json:"qualitativeDistinction,omitempty"`
}

// NDCCode is one National Drug Code package, keyed by the 11-digit form
type NDCCode struct {
	Code               string `json:"code"`
	DisplayCode        string `json:"displayCode,omitempty"`
	ProductNDC         string `json:"productNdc,omitempty"`
	ProprietaryName    string `json:"proprietaryName,omitempty"`
	NonProprietaryName string `json:"nonProprietaryName,omitempty"`
	DosageForm         string `json:"dosageForm,omitempty"`
	Route              string `json:"route,omitempty"`
	SubstanceName      string `json:"substanceName,omitempty"`
	Strength           string `json:"strength,omitempty"`
	ProductType        string `json:"productType,omitempty"`
	MarketingCategory  string `json:"marketingCategory,omitempty"`
	ApplicationNumber  string `json:"applicationNumber,omitempty"`
	LabelerName        string `json:"labelerName,omitempty"`
	DEASchedule        string `json:"deaSchedule,omitempty"`
	Active             bool   `json:"active"`
}

// SnomedICD10Map is one SNOMED to ICD-10 edge with ExtendedMap attributes
type SnomedICD10Map struct {
	SnomedCode    string `json:"snomedCode"`
	ICD10Code     string `json:"icd10Code"`
	MapGroup      int    `json:"mapGroup,omitempty"`
	MapPriority   int    `json:"mapPriority,omitempty"`
	MapRule       string `json:"mapRule,omitempty"`
	MapAdvice     string `json:"mapAdvice,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	MapCategoryID string `json:"mapCategoryId,omitempty"`
	Active        bool   `json:"active"`
	EffectiveDate string `json:"effectiveDate,omitempty"`
}

// ICD10HCCMap is one ICD-10 to HCC risk-adjustment edge
type ICD10HCCMap struct {
	ICD10Code    string `json:"icd10Code"`
	HCCCode      string `json:"hccCode"`
	PaymentYear  int    `json:"paymentYear,omitempty"`
	ModelVersion string `json:"modelVersion,omitempty"`
	Active       bool   `json:"active"`
}

// SnomedHCCMap is one derived SNOMED to HCC edge with its ICD-10 pivot
type SnomedHCCMap struct {
	SnomedCode   string `json:"snomedCode"`
	HCCCode      string `json:"hccCode"`
	ViaICD10Code string `json:"viaIcd10Code,omitempty"`
	Active       bool   `json:"active"`
}

// RxNormSnomedMap is one RxNorm to SNOMED drug edge
type RxNormSnomedMap struct {
	RxNormCode string `json:"rxnormCode"`
	SnomedCode string `json:"snomedCode"`
	MatchType  string `json:"matchType"`
	Active     bool   `json:"active"`
}

// NDCRxNormMap is one NDC to RxNorm edge
type NDCRxNormMap struct {
	NDCCode    string `json:"ndcCode"`
	RxNormCode string `json:"rxnormCode"`
	MatchType  string `json:"matchType"`
	Active     bool   `json:"active"`
}

// RxNormRelationship is one intra-RxNorm relationship (RXNREL)
type RxNormRelationship struct {
	SourceCode   string `json:"sourceCode"`
	TargetCode   string `json:"targetCode"`
	Relationship string `json:"relationship"`
}

// Conflict records a mapping row whose endpoint is missing from the
// canonical store. Conflicts move through open -> resolved/ignored and
// can be reopened.
type Conflict struct {
	ID                int64  `json:"id"`
	SourceSystem      string `json:"sourceSystem"`
	TargetSystem      string `json:"targetSystem"`
	SourceCode        string `json:"sourceCode"`
	TargetCode        string `json:"targetCode,omitempty"`
	SourceDescription string `json:"sourceDescription,omitempty"`
	Reason            string `json:"reason"`
	Details           string `json:"details,omitempty"`
	Status            string `json:"status"`
	Resolution        string `json:"resolution,omitempty"`
	ResolvedCode      string `json:"resolvedCode,omitempty"`
	CreatedAt         string `json:"createdAt"`
	ResolvedAt        string `json:"resolvedAt,omitempty"`
}

// CodeSummary is the lightweight row returned by paginated listings
type CodeSummary struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}
