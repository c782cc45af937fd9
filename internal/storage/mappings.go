package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

var (
	snomedICD10Columns = []string{
		"snomed_code", "icd10_code", "map_group", "map_priority", "map_rule",
		"map_advice", "correlation_id", "map_category_id", "active", "effective_date",
	}
	icd10HCCColumns = []string{
		"icd10_code", "hcc_code", "payment_year", "model_version", "active",
	}
	snomedHCCColumns = []string{
		"snomed_code", "hcc_code", "via_icd10_code", "active",
	}
	rxnormSnomedColumns = []string{
		"rxnorm_code", "snomed_code", "match_type", "active",
	}
	ndcRxNormColumns = []string{
		"ndc_code", "rxnorm_code", "match_type", "active",
	}
	rxnormRelColumns = []string{
		"source_code", "target_code", "relationship",
	}
)

// SnomedICD10Writer batches SNOMED to ICD-10 edge inserts
type SnomedICD10Writer struct{ *BatchWriter }

// NewSnomedICD10Writer creates a batch writer for snomed_icd10_mapping
func (db *DB) NewSnomedICD10Writer(size int) *SnomedICD10Writer {
	return &SnomedICD10Writer{NewBatchWriter(db, TableSnomedICD10, snomedICD10Columns, size)}
}

// Add queues one edge
func (w *SnomedICD10Writer) Add(m SnomedICD10Map) error {
	return w.BatchWriter.Add(
		m.SnomedCode, m.ICD10Code, m.MapGroup, m.MapPriority, nullable(m.MapRule),
		nullable(m.MapAdvice), nullable(m.CorrelationID), nullable(m.MapCategoryID),
		boolInt(m.Active), nullable(m.EffectiveDate),
	)
}

// ICD10HCCWriter batches ICD-10 to HCC edge inserts
type ICD10HCCWriter struct{ *BatchWriter }

// NewICD10HCCWriter creates a batch writer for icd10_hcc_mapping
func (db *DB) NewICD10HCCWriter(size int) *ICD10HCCWriter {
	return &ICD10HCCWriter{NewBatchWriter(db, TableICD10HCC, icd10HCCColumns, size)}
}

// Add queues one edge
func (w *ICD10HCCWriter) Add(m ICD10HCCMap) error {
	return w.BatchWriter.Add(
		m.ICD10Code, m.HCCCode, m.PaymentYear, nullable(m.ModelVersion), boolInt(m.Active),
	)
}

// SnomedHCCWriter batches derived SNOMED to HCC edge inserts
type SnomedHCCWriter struct{ *BatchWriter }

// NewSnomedHCCWriter creates a batch writer for snomed_hcc_mapping
func (db *DB) NewSnomedHCCWriter(size int) *SnomedHCCWriter {
	return &SnomedHCCWriter{NewBatchWriter(db, TableSnomedHCC, snomedHCCColumns, size)}
}

// Add queues one edge
func (w *SnomedHCCWriter) Add(m SnomedHCCMap) error {
	return w.BatchWriter.Add(
		m.SnomedCode, m.HCCCode, nullable(m.ViaICD10Code), boolInt(m.Active),
	)
}

// RxNormSnomedWriter batches RxNorm to SNOMED edge inserts
type RxNormSnomedWriter struct{ *BatchWriter }

// NewRxNormSnomedWriter creates a batch writer for rxnorm_snomed_mapping
func (db *DB) NewRxNormSnomedWriter(size int) *RxNormSnomedWriter {
	return &RxNormSnomedWriter{NewBatchWriter(db, TableRxNormSnomed, rxnormSnomedColumns, size)}
}

// Add queues one edge
func (w *RxNormSnomedWriter) Add(m RxNormSnomedMap) error {
	return w.BatchWriter.Add(m.RxNormCode, m.SnomedCode, m.MatchType, boolInt(m.Active))
}

// NDCRxNormWriter batches NDC to RxNorm edge inserts
type NDCRxNormWriter struct{ *BatchWriter }

// NewNDCRxNormWriter creates a batch writer for ndc_rxnorm_mapping
func (db *DB) NewNDCRxNormWriter(size int) *NDCRxNormWriter {
	return &NDCRxNormWriter{NewBatchWriter(db, TableNDCRxNorm, ndcRxNormColumns, size)}
}

// Add queues one edge
func (w *NDCRxNormWriter) Add(m NDCRxNormMap) error {
	return w.BatchWriter.Add(m.NDCCode, m.RxNormCode, m.MatchType, boolInt(m.Active))
}

// RxNormRelWriter batches intra-RxNorm relationship inserts
type RxNormRelWriter struct{ *BatchWriter }

// NewRxNormRelWriter creates a batch writer for rxnorm_relationships
func (db *DB) NewRxNormRelWriter(size int) *RxNormRelWriter {
	return &RxNormRelWriter{NewBatchWriter(db, TableRxNormRel, rxnormRelColumns, size)}
}

// Add queues one relationship
func (w *RxNormRelWriter) Add(r RxNormRelationship) error {
	return w.BatchWriter.Add(r.SourceCode, r.TargetCode, r.Relationship)
}

// InsertSnomedICD10 writes a single edge, used by the conflict resolution
// engine when it repairs a missing mapping.
func (db *DB) InsertSnomedICD10(m SnomedICD10Map) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO snomed_icd10_mapping
			(snomed_code, icd10_code, map_group, map_priority, map_rule, map_advice,
			 correlation_id, map_category_id, active, effective_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SnomedCode, m.ICD10Code, m.MapGroup, m.MapPriority, nullable(m.MapRule),
		nullable(m.MapAdvice), nullable(m.CorrelationID), nullable(m.MapCategoryID),
		boolInt(m.Active), nullable(m.EffectiveDate),
	)
	return err
}

// ICD10ForSnomed returns active ICD-10 edges for a SNOMED code
func (db *DB) ICD10ForSnomed(code string) ([]SnomedICD10Map, error) {
	rows, err := db.Query(`
		SELECT snomed_code, icd10_code, COALESCE(map_group, 0), COALESCE(map_priority, 0),
		       COALESCE(map_rule, ''), COALESCE(map_advice, ''), COALESCE(correlation_id, ''),
		       COALESCE(map_category_id, ''), active, COALESCE(effective_date, '')
		FROM snomed_icd10_mapping
		WHERE snomed_code = ? AND active = 1
		ORDER BY map_group, map_priority`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnomedICD10Map
	for rows.Next() {
		var m SnomedICD10Map
		var active int
		if err := rows.Scan(&m.SnomedCode, &m.ICD10Code, &m.MapGroup, &m.MapPriority,
			&m.MapRule, &m.MapAdvice, &m.CorrelationID, &m.MapCategoryID,
			&active, &m.EffectiveDate); err != nil {
			return nil, err
		}
		m.Active = active != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// SnomedForICD10 returns reverse SNOMED edges for an ICD-10 code, capped
func (db *DB) SnomedForICD10(code string, limit int) ([]SnomedICD10Map, error) {
	rows, err := db.Query(`
		SELECT snomed_code, icd10_code FROM snomed_icd10_mapping
		WHERE icd10_code = ? AND active = 1
		ORDER BY snomed_code LIMIT ?`, code, positiveLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnomedICD10Map
	for rows.Next() {
		m := SnomedICD10Map{Active: true}
		if err := rows.Scan(&m.SnomedCode, &m.ICD10Code); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// HCCForICD10 returns active HCC edges for an ICD-10 code
func (db *DB) HCCForICD10(code string) ([]ICD10HCCMap, error) {
	rows, err := db.Query(`
		SELECT icd10_code, hcc_code, COALESCE(payment_year, 0), COALESCE(model_version, ''), active
		FROM icd10_hcc_mapping
		WHERE icd10_code = ? AND active = 1
		ORDER BY hcc_code`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ICD10HCCMap
	for rows.Next() {
		var m ICD10HCCMap
		var active int
		if err := rows.Scan(&m.ICD10Code, &m.HCCCode, &m.PaymentYear, &m.ModelVersion, &active); err != nil {
			return nil, err
		}
		m.Active = active != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// ICD10ForHCC returns reverse ICD-10 edges for an HCC category, capped
func (db *DB) ICD10ForHCC(code string, limit int) ([]ICD10HCCMap, error) {
	rows, err := db.Query(`
		SELECT icd10_code, hcc_code FROM icd10_hcc_mapping
		WHERE hcc_code = ? AND active = 1
		ORDER BY icd10_code LIMIT ?`, code, positiveLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ICD10HCCMap
	for rows.Next() {
		m := ICD10HCCMap{Active: true}
		if err := rows.Scan(&m.ICD10Code, &m.HCCCode); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// HCCForSnomed returns derived HCC edges for a SNOMED code
func (db *DB) HCCForSnomed(code string) ([]SnomedHCCMap, error) {
	rows, err := db.Query(`
		SELECT snomed_code, hcc_code, COALESCE(via_icd10_code, ''), active
		FROM snomed_hcc_mapping
		WHERE snomed_code = ? AND active = 1
		ORDER BY hcc_code`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnomedHCCMap
	for rows.Next() {
		var m SnomedHCCMap
		var active int
		if err := rows.Scan(&m.SnomedCode, &m.HCCCode, &m.ViaICD10Code, &active); err != nil {
			return nil, err
		}
		m.Active = active != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// SnomedForRxNorm returns SNOMED edges for an RxNorm concept
func (db *DB) SnomedForRxNorm(code string) ([]RxNormSnomedMap, error) {
	rows, err := db.Query(`
		SELECT rxnorm_code, snomed_code, match_type, active
		FROM rxnorm_snomed_mapping
		WHERE rxnorm_code = ? AND active = 1
		ORDER BY snomed_code`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRxNormSnomed(rows)
}

// RxNormForSnomed returns reverse RxNorm edges for a SNOMED code, capped
func (db *DB) RxNormForSnomed(code string, limit int) ([]RxNormSnomedMap, error) {
	rows, err := db.Query(`
		SELECT rxnorm_code, snomed_code, match_type, active
		FROM rxnorm_snomed_mapping
		WHERE snomed_code = ? AND active = 1
		ORDER BY rxnorm_code LIMIT ?`, code, positiveLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRxNormSnomed(rows)
}

func scanRxNormSnomed(rows *sql.Rows) ([]RxNormSnomedMap, error) {
	var out []RxNormSnomedMap
	for rows.Next() {
		var m RxNormSnomedMap
		var active int
		if err := rows.Scan(&m.RxNormCode, &m.SnomedCode, &m.MatchType, &active); err != nil {
			return nil, err
		}
		m.Active = active != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// RxNormForNDC returns RxNorm edges for an NDC package
func (db *DB) RxNormForNDC(code string) ([]NDCRxNormMap, error) {
	rows, err := db.Query(`
		SELECT ndc_code, rxnorm_code, match_type, active
		FROM ndc_rxnorm_mapping
		WHERE ndc_code = ? AND active = 1
		ORDER BY rxnorm_code`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNDCRxNorm(rows)
}

// NDCForRxNorm returns reverse NDC edges for an RxNorm concept, capped
func (db *DB) NDCForRxNorm(code string, limit int) ([]NDCRxNormMap, error) {
	rows, err := db.Query(`
		SELECT ndc_code, rxnorm_code, match_type, active
		FROM ndc_rxnorm_mapping
		WHERE rxnorm_code = ? AND active = 1
		ORDER BY ndc_code LIMIT ?`, code, positiveLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNDCRxNorm(rows)
}

func scanNDCRxNorm(rows *sql.Rows) ([]NDCRxNormMap, error) {
	var out []NDCRxNormMap
	for rows.Next() {
		var m NDCRxNormMap
		var active int
		if err := rows.Scan(&m.NDCCode, &m.RxNormCode, &m.MatchType, &active); err != nil {
			return nil, err
		}
		m.Active = active != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// RelationshipsFrom returns outbound RxNorm relationships for a concept
func (db *DB) RelationshipsFrom(code string) ([]RxNormRelationship, error) {
	return db.queryRelationships(
		"SELECT source_code, target_code, relationship FROM rxnorm_relationships WHERE source_code = ? ORDER BY target_code", code, 0)
}

// RelationshipsTo returns inbound RxNorm relationships, capped
func (db *DB) RelationshipsTo(code string, limit int) ([]RxNormRelationship, error) {
	return db.queryRelationships(
		"SELECT source_code, target_code, relationship FROM rxnorm_relationships WHERE target_code = ? ORDER BY source_code LIMIT ?", code, positiveLimit(limit))
}

func (db *DB) queryRelationships(query, code string, limit int) ([]RxNormRelationship, error) {
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query, code, limit)
	} else {
		rows, err = db.Query(query, code)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RxNormRelationship
	for rows.Next() {
		var r RxNormRelationship
		if err := rows.Scan(&r.SourceCode, &r.TargetCode, &r.Relationship); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ForEachSnomedICD10 streams every active SNOMED to ICD-10 edge. The
// transitive mapping builder joins these against the HCC index without
// materializing the full edge list.
func (db *DB) ForEachSnomedICD10(fn func(snomedCode, icd10Code string) error) error {
	rows, err := db.Query(
		"SELECT snomed_code, icd10_code FROM snomed_icd10_mapping WHERE active = 1")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var snomed, icd10 string
		if err := rows.Scan(&snomed, &icd10); err != nil {
			return err
		}
		if err := fn(snomed, icd10); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ICD10HCCIndex loads the active ICD-10 to HCC edges as an in-memory
// multimap keyed by ICD-10 code.
func (db *DB) ICD10HCCIndex() (map[string][]string, error) {
	rows, err := db.Query(
		"SELECT icd10_code, hcc_code FROM icd10_hcc_mapping WHERE active = 1")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[string][]string)
	for rows.Next() {
		var icd10, hcc string
		if err := rows.Scan(&icd10, &hcc); err != nil {
			return nil, err
		}
		index[icd10] = append(index[icd10], hcc)
	}
	return index, rows.Err()
}

// CodeName pairs a code with a display name, used by the name-match builders
type CodeName struct {
	Code string
	Name string
}

// ActiveRxNormNames returns active RxNorm concepts restricted to the given
// term types.
func (db *DB) ActiveRxNormNames(termTypes []string) ([]CodeName, error) {
	if len(termTypes) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(termTypes))
	args := make([]interface{}, len(termTypes))
	for i, tty := range termTypes {
		placeholders[i] = "?"
		args[i] = tty
	}
	query := fmt.Sprintf(
		"SELECT code, name FROM rxnorm_codes WHERE active = 1 AND term_type IN (%s)",
		strings.Join(placeholders, ","))
	return db.queryCodeNames(query, args...)
}

// ActiveSnomedDrugNames returns active SNOMED concepts whose semantic tag
// is one of the given drug-domain tags.
func (db *DB) ActiveSnomedDrugNames(tags []string) ([]CodeName, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(tags))
	args := make([]interface{}, len(tags))
	for i, tag := range tags {
		placeholders[i] = "?"
		args[i] = tag
	}
	query := fmt.Sprintf(
		"SELECT code, description FROM snomed_codes WHERE active = 1 AND semantic_tag IN (%s)",
		strings.Join(placeholders, ","))
	return db.queryCodeNames(query, args...)
}

// NDCName carries both name fields of an NDC package for name matching
type NDCName struct {
	Code               string
	ProprietaryName    string
	NonProprietaryName string
}

// NDCNames returns all active NDC packages with their name fields
func (db *DB) NDCNames() ([]NDCName, error) {
	rows, err := db.Query(`
		SELECT code, COALESCE(proprietary_name, ''), COALESCE(nonproprietary_name, '')
		FROM ndc_codes WHERE active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NDCName
	for rows.Next() {
		var n NDCName
		if err := rows.Scan(&n.Code, &n.ProprietaryName, &n.NonProprietaryName); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// RxNormNDCLists streams the RXNSAT-derived NDC list of every concept
// that has one.
func (db *DB) RxNormNDCLists(fn func(rxnormCode, ndcList string) error) error {
	rows, err := db.Query(
		"SELECT code, ndc_codes FROM rxnorm_codes WHERE ndc_codes IS NOT NULL AND ndc_codes != ''")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var code, list string
		if err := rows.Scan(&code, &list); err != nil {
			return err
		}
		if err := fn(code, list); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (db *DB) queryCodeNames(query string, args ...interface{}) ([]CodeName, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CodeName
	for rows.Next() {
		var cn CodeName
		if err := rows.Scan(&cn.Code, &cn.Name); err != nil {
			return nil, err
		}
		out = append(out, cn)
	}
	return out, rows.Err()
}

// MappingCounts returns row counts for every mapping table
func (db *DB) MappingCounts() (map[string]int, error) {
	tables := []string{
		TableSnomedICD10, TableICD10HCC, TableSnomedHCC,
		TableRxNormSnomed, TableNDCRxNorm, TableRxNormRel,
	}
	counts := make(map[string]int, len(tables))
	for _, table := range tables {
		n, err := db.CountCodes(table)
		if err != nil {
			return nil, err
		}
		counts[table] = n
	}
	return counts, nil
}

func positiveLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
