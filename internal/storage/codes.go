package storage

import (
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
)

var (
	snomedColumns = []string{
		"code", "description", "fully_specified_name", "semantic_tag",
		"active", "module_id", "effective_date",
	}
	icd10Columns = []string{
		"code", "description", "short_description", "category", "chapter",
		"is_header", "active", "effective_date",
	}
	hccColumns = []string{
		"code", "description", "category", "coefficient", "model_version",
		"payment_year", "active",
	}
	cptColumns = []string{
		"code", "short_description", "long_description", "category",
		"dhs_category", "status", "active",
	}
	hcpcsColumns = []string{
		"code", "short_description", "long_description", "category",
		"dhs_category", "status", "active",
	}
	rxnormColumns = []string{
		"code", "name", "term_type", "suppress", "active",
	}
	ndcColumns = []string{
		"code", "display_code", "product_ndc", "proprietary_name",
		"nonproprietary_name", "dosage_form", "route", "substance_name",
		"strength", "product_type", "marketing_category",
		"application_number", "labeler_name", "dea_schedule", "active",
	}
)

// SnomedWriter batches SNOMED concept inserts
type SnomedWriter struct{ *BatchWriter }

// NewSnomedWriter creates a batch writer for snomed_codes
func (db *DB) NewSnomedWriter(size int) *SnomedWriter {
	return &SnomedWriter{NewBatchWriter(db, TableSnomed, snomedColumns, size)}
}

// Add queues one SNOMED concept
func (w *SnomedWriter) Add(c SnomedCode) error {
	return w.BatchWriter.Add(
		c.Code, c.Description, nullable(c.FullySpecifiedName), nullable(c.SemanticTag),
		boolInt(c.Active), nullable(c.ModuleID), nullable(c.EffectiveDate),
	)
}

// ICD10Writer batches ICD-10 code inserts
type ICD10Writer struct{ *BatchWriter }

// NewICD10Writer creates a batch writer for icd10_codes
func (db *DB) NewICD10Writer(size int) *ICD10Writer {
	return &ICD10Writer{NewBatchWriter(db, TableICD10, icd10Columns, size)}
}

// Add queues one ICD-10 code
func (w *ICD10Writer) Add(c ICD10Code) error {
	return w.BatchWriter.Add(
		c.Code, c.Description, nullable(c.ShortDescription), nullable(c.Category),
		nullable(c.Chapter), boolInt(c.IsHeader), boolInt(c.Active), nullable(c.EffectiveDate),
	)
}

// HCCWriter batches HCC category inserts
type HCCWriter struct{ *BatchWriter }

// NewHCCWriter creates a batch writer for hcc_codes
func (db *DB) NewHCCWriter(size int) *HCCWriter {
	return &HCCWriter{NewBatchWriter(db, TableHCC, hccColumns, size)}
}

// Add queues one HCC category
func (w *HCCWriter) Add(c HCCCode) error {
	return w.BatchWriter.Add(
		c.Code, c.Description, nullable(c.Category), c.Coefficient,
		nullable(c.ModelVersion), c.PaymentYear, boolInt(c.Active),
	)
}

// CPTWriter batches CPT code inserts
type CPTWriter struct{ *BatchWriter }

// NewCPTWriter creates a batch writer for cpt_codes
func (db *DB) NewCPTWriter(size int) *CPTWriter {
	return &CPTWriter{NewBatchWriter(db, TableCPT, cptColumns, size)}
}

// Add queues one CPT code
func (w *CPTWriter) Add(c CPTCode) error {
	return w.BatchWriter.Add(
		c.Code, nullable(c.ShortDescription), nullable(c.LongDescription),
		nullable(c.Category), nullable(c.DHSCategory), nullable(c.Status), boolInt(c.Active),
	)
}

// HCPCSWriter batches HCPCS code inserts
type HCPCSWriter struct{ *BatchWriter }

// NewHCPCSWriter creates a batch writer for hcpcs_codes
func (db *DB) NewHCPCSWriter(size int) *HCPCSWriter {
	return &HCPCSWriter{NewBatchWriter(db, TableHCPCS, hcpcsColumns, size)}
}

// Add queues one HCPCS code
func (w *HCPCSWriter) Add(c HCPCSCode) error {
	return w.BatchWriter.Add(
		c.Code, nullable(c.ShortDescription), nullable(c.LongDescription),
		nullable(c.Category), nullable(c.DHSCategory), nullable(c.Status), boolInt(c.Active),
	)
}

// RxNormWriter batches RxNorm concept inserts. Attribute enrichment
// happens separately via UpdateRxNormAttributes.
type RxNormWriter struct{ *BatchWriter }

// NewRxNormWriter creates a batch writer for rxnorm_codes
func (db *DB) NewRxNormWriter(size int) *RxNormWriter {
	return &RxNormWriter{NewBatchWriter(db, TableRxNorm, rxnormColumns, size)}
}

// Add queues one RxNorm concept
func (w *RxNormWriter) Add(c RxNormCode) error {
	return w.BatchWriter.Add(
		c.Code, c.Name, nullable(c.TermType), nullable(c.Suppress), boolInt(c.Active),
	)
}

// NDCWriter batches NDC package inserts
type NDCWriter struct{ *BatchWriter }

// NewNDCWriter creates a batch writer for ndc_codes
func (db *DB) NewNDCWriter(size int) *NDCWriter {
	return &NDCWriter{NewBatchWriter(db, TableNDC, ndcColumns, size)}
}

// Add queues one NDC package
func (w *NDCWriter) Add(c NDCCode) error {
	return w.BatchWriter.Add(
		c.Code, nullable(c.DisplayCode), nullable(c.ProductNDC),
		nullable(c.ProprietaryName), nullable(c.NonProprietaryName),
		nullable(c.DosageForm), nullable(c.Route), nullable(c.SubstanceName),
		nullable(c.Strength), nullable(c.ProductType), nullable(c.MarketingCategory),
		nullable(c.ApplicationNumber), nullable(c.LabelerName),
		nullable(c.DEASchedule), boolInt(c.Active),
	)
}

// CodeSet loads every code in a vocabulary table into a membership set.
// Mapping builders use this for O(1) endpoint checks.
func (db *DB) CodeSet(table string) (map[string]struct{}, error) {
	rows, err := db.Query("SELECT code FROM " + table)
	if err != nil {
		return nil, fmt.Errorf("failed to load code set from %s: %w", table, err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		set[code] = struct{}{}
	}
	return set, rows.Err()
}

// CountCodes returns the row count of a vocabulary or mapping table
func (db *DB) CountCodes(table string) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	return n, err
}

// listDisplayColumns maps each vocabulary table to the expression used as
// the summary description.
var listDisplayColumns = map[string]string{
	TableSnomed: "description",
	TableICD10:  "description",
	TableHCC:    "description",
	TableCPT:    "COALESCE(NULLIF(short_description, ''), long_description, '')",
	TableHCPCS:  "COALESCE(NULLIF(short_description, ''), long_description, '')",
	TableRxNorm: "name",
	TableNDC:    "COALESCE(NULLIF(proprietary_name, ''), nonproprietary_name, '')",
}

// ListCodes returns one page of codes from a vocabulary table with an
// optional case-insensitive substring filter over code and description.
func (db *DB) ListCodes(table string, page, perPage int, search string) ([]CodeSummary, int, error) {
	display, ok := listDisplayColumns[table]
	if !ok {
		return nil, 0, fmt.Errorf("unknown vocabulary table: %s", table)
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 500 {
		perPage = 50
	}

	where := ""
	var args []interface{}
	if search != "" {
		where = fmt.Sprintf(" WHERE code LIKE ? OR %s LIKE ?", display)
		like := "%" + search + "%"
		args = append(args, like, like)
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM "+table+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		"SELECT code, %s, active FROM %s%s ORDER BY code LIMIT ? OFFSET ?",
		display, table, where,
	)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]CodeSummary, 0, perPage)
	for rows.Next() {
		var s CodeSummary
		var active int
		if err := rows.Scan(&s.Code, &s.Description, &active); err != nil {
			return nil, 0, err
		}
		s.Active = active != 0
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// GetSnomed fetches one SNOMED concept by code
func (db *DB) GetSnomed(code string) (*SnomedCode, error) {
	var c SnomedCode
	var active int
	var fsn, tag, mod, eff sql.NullString
	err := db.QueryRow(`
		SELECT code, description, fully_specified_name, semantic_tag, active, module_id, effective_date
		FROM snomed_codes WHERE code = ?`, code,
	).Scan(&c.Code, &c.Description, &fsn, &tag, &active, &mod, &eff)
	if err != nil {
		return nil, codeLookupErr(err, "SNOMED", code)
	}
	c.FullySpecifiedName, c.SemanticTag = fsn.String, tag.String
	c.ModuleID, c.EffectiveDate = mod.String, eff.String
	c.Active = active != 0
	return &c, nil
}

// GetICD10 fetches one ICD-10 code
func (db *DB) GetICD10(code string) (*ICD10Code, error) {
	var c ICD10Code
	var active, header int
	var short, cat, chap, eff sql.NullString
	err := db.QueryRow(`
		SELECT code, description, short_description, category, chapter, is_header, active, effective_date
		FROM icd10_codes WHERE code = ?`, code,
	).Scan(&c.Code, &c.Description, &short, &cat, &chap, &header, &active, &eff)
	if err != nil {
		return nil, codeLookupErr(err, "ICD-10", code)
	}
	c.ShortDescription, c.Category, c.Chapter, c.EffectiveDate = short.String, cat.String, chap.String, eff.String
	c.IsHeader, c.Active = header != 0, active != 0
	return &c, nil
}

// GetHCC fetches one HCC category
func (db *DB) GetHCC(code string) (*HCCCode, error) {
	var c HCCCode
	var active int
	var cat, model sql.NullString
	var coeff sql.NullFloat64
	var year sql.NullInt64
	err := db.QueryRow(`
		SELECT code, description, category, coefficient, model_version, payment_year, active
		FROM hcc_codes WHERE code = ?`, code,
	).Scan(&c.Code, &c.Description, &cat, &coeff, &model, &year, &active)
	if err != nil {
		return nil, codeLookupErr(err, "HCC", code)
	}
	c.Category, c.ModelVersion = cat.String, model.String
	c.Coefficient, c.PaymentYear = coeff.Float64, int(year.Int64)
	c.Active = active != 0
	return &c, nil
}

// GetCPT fetches one CPT code
func (db *DB) GetCPT(code string) (*CPTCode, error) {
	var c CPTCode
	var active int
	var short, long, cat, dhs, status sql.NullString
	err := db.QueryRow(`
		SELECT code, short_description, long_description, category, dhs_category, status, active
		FROM cpt_codes WHERE code = ?`, code,
	).Scan(&c.Code, &short, &long, &cat, &dhs, &status, &active)
	if err != nil {
		return nil, codeLookupErr(err, "CPT", code)
	}
	c.ShortDescription, c.LongDescription = short.String, long.String
	c.Category, c.DHSCategory, c.Status = cat.String, dhs.String, status.String
	c.Active = active != 0
	return &c, nil
}

// GetHCPCS fetches one HCPCS code
func (db *DB) GetHCPCS(code string) (*HCPCSCode, error) {
	var c HCPCSCode
	var active int
	var short, long, cat, dhs, status sql.NullString
	err := db.QueryRow(`
		SELECT code, short_description, long_description, category, dhs_category, status, active
		FROM hcpcs_codes WHERE code = ?`, code,
	).Scan(&c.Code, &short, &long, &cat, &dhs, &status, &active)
	if err != nil {
		return nil, codeLookupErr(err, "HCPCS", code)
	}
	c.ShortDescription, c.LongDescription = short.String, long.String
	c.Category, c.DHSCategory, c.Status = cat.String, dhs.String, status.String
	c.Active = active != 0
	return &c, nil
}

// GetRxNorm fetches one RxNorm concept
func (db *DB) GetRxNorm(code string) (*RxNormCode, error) {
	var c RxNormCode
	var active, human, vet int
	var tty, sup, form, avail, str, bn, ndcs, qty, qual sql.NullString
	err := db.QueryRow(`
		SELECT code, name, term_type, suppress, active, rx_term_form, available_strength,
		       strength, human_drug, vet_drug, bn_cardinality, ndc_codes, quantity, qualitative_distinction
		FROM rxnorm_codes WHERE code = ?`, code,
	).Scan(&c.Code, &c.Name, &tty, &sup, &active, &form, &avail, &str, &human, &vet, &bn, &ndcs, &qty, &qual)
	if err != nil {
		return nil, codeLookupErr(err, "RxNorm", code)
	}
	c.TermType, c.Suppress, c.RxTermForm = tty.String, sup.String, form.String
	c.AvailableStrength, c.Strength, c.BNCardinality = avail.String, str.String, bn.String
	c.NDCCodes, c.Quantity, c.QualitativeDistinction = ndcs.String, qty.String, qual.String
	c.Active, c.HumanDrug, c.VetDrug = active != 0, human != 0, vet != 0
	return &c, nil
}

// GetNDC fetches one NDC package by its 11-digit code
func (db *DB) GetNDC(code string) (*NDCCode, error) {
	var c NDCCode
	var active int
	var cols [13]sql.NullString
	err := db.QueryRow(`
		SELECT code, display_code, product_ndc, proprietary_name, nonproprietary_name,
		       dosage_form, route, substance_name, strength, product_type,
		       marketing_category, application_number, labeler_name, dea_schedule, active
		FROM ndc_codes WHERE code = ?`, code,
	).Scan(&c.Code, &cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5],
		&cols[6], &cols[7], &cols[8], &cols[9], &cols[10], &cols[11], &cols[12], &active)
	if err != nil {
		return nil, codeLookupErr(err, "NDC", code)
	}
	c.DisplayCode, c.ProductNDC, c.ProprietaryName = cols[0].String, cols[1].String, cols[2].String
	c.NonProprietaryName, c.DosageForm, c.Route = cols[3].String, cols[4].String, cols[5].String
	c.SubstanceName, c.Strength, c.ProductType = cols[6].String, cols[7].String, cols[8].String
	c.MarketingCategory, c.ApplicationNumber = cols[9].String, cols[10].String
	c.LabelerName, c.DEASchedule = cols[11].String, cols[12].String
	c.Active = active != 0
	return &c, nil
}

// SetCPTDHSCategory records the DHS category for an existing CPT code.
// An already-set category is not overwritten.
func (db *DB) SetCPTDHSCategory(code, category string) error {
	_, err := db.Exec(`
		UPDATE cpt_codes SET dhs_category = ?
		WHERE code = ? AND (dhs_category IS NULL OR dhs_category = '')`,
		category, code,
	)
	return err
}

// SetHCPCSDHSCategory records the DHS category for an existing HCPCS code
func (db *DB) SetHCPCSDHSCategory(code, category string) error {
	_, err := db.Exec(`
		UPDATE hcpcs_codes SET dhs_category = ?
		WHERE code = ? AND (dhs_category IS NULL OR dhs_category = '')`,
		category, code,
	)
	return err
}

// rxnormAttrColumns is the allow-list of columns UpdateRxNormAttributes
// may touch. Anything else is rejected.
var rxnormAttrColumns = map[string]bool{
	"rx_term_form":            true,
	"available_strength":      true,
	"strength":                true,
	"human_drug":              true,
	"vet_drug":                true,
	"bn_cardinality":          true,
	"ndc_codes":               true,
	"quantity":                true,
	"qualitative_distinction": true,
}

// UpdateRxNormAttributes applies RXNSAT-derived attribute values to one
// RxNorm concept. Column names outside the allow-list are an error.
func (db *DB) UpdateRxNormAttributes(code string, attrs map[string]interface{}) error {
	if len(attrs) == 0 {
		return nil
	}
	sets := make([]string, 0, len(attrs))
	args := make([]interface{}, 0, len(attrs)+1)
	for col, val := range attrs {
		if !rxnormAttrColumns[col] {
			return fmt.Errorf("rxnorm attribute column not allowed: %s", col)
		}
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	args = append(args, code)
	_, err := db.Exec(
		"UPDATE rxnorm_codes SET "+strings.Join(sets, ", ")+" WHERE code = ?",
		args...,
	)
	return err
}

// InsertICD10Placeholder creates an inactive stub record for an ICD-10
// code referenced by a mapping but absent from the published order file.
func (db *DB) InsertICD10Placeholder(code, description string) error {
	category := ""
	if len(code) >= 3 {
		category = code[:3]
	}
	_, err := db.Exec(`
		INSERT OR IGNORE INTO icd10_codes (code, description, category, is_header, active)
		VALUES (?, ?, ?, 0, 0)`,
		code, description, category,
	)
	return err
}

func codeLookupErr(err error, system, code string) error {
	if err == sql.ErrNoRows {
		return apperrors.Newf(apperrors.CodeNotFound, "%s code %s not found", system, code)
	}
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
