package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

const currentSchemaVersion = 2

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		creators := []func(*sql.Tx) error{
			db.createSchemaVersionTable,
			db.createSnomedTable,
			db.createICD10Table,
			db.createHCCTable,
			db.createCPTTable,
			db.createHCPCSTable,
			db.createRxNormTable,
			db.createNDCTable,
			db.createSnomedICD10Table,
			db.createICD10HCCTable,
			db.createSnomedHCCTable,
			db.createRxNormSnomedTable,
			db.createNDCRxNormTable,
			db.createRxNormRelationshipsTable,
			db.createConflictsTable,
			db.createIndexes,
		}
		for _, create := range creators {
			if err := create(tx); err != nil {
				return err
			}
		}
		_, err := tx.Exec(
			"INSERT INTO schema_version (version) VALUES (?)",
			currentSchemaVersion,
		)
		return err
	})
}

func (db *DB) createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

func (db *DB) createSnomedTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS snomed_codes (
			code TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			fully_specified_name TEXT,
			semantic_tag TEXT,
			active INTEGER NOT NULL DEFAULT 1,
			module_id TEXT,
			effective_date TEXT
		)
	`)
	return err
}

func (db *DB) createICD10Table(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS icd10_codes (
			code TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			short_description TEXT,
			category TEXT,
			chapter TEXT,
			is_header INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			effective_date TEXT
		)
	`)
	return err
}

func (db *DB) createHCCTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS hcc_codes (
			code TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			category TEXT,
			coefficient REAL,
			model_version TEXT,
			payment_year INTEGER,
			active INTEGER NOT NULL DEFAULT 1
		)
	`)
	return err
}

func (db *DB) createCPTTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS cpt_codes (
			code TEXT PRIMARY KEY,
			short_description TEXT,
			long_description TEXT,
			category TEXT,
			dhs_category TEXT,
			status TEXT,
			active INTEGER NOT NULL DEFAULT 1
		)
	`)
	return err
}

func (db *DB) createHCPCSTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS hcpcs_codes (
			code TEXT PRIMARY KEY,
			short_description TEXT,
			long_description TEXT,
			category TEXT,
			dhs_category TEXT,
			status TEXT,
			active INTEGER NOT NULL DEFAULT 1
		)
	`)
	return err
}

func (db *DB) createRxNormTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS rxnorm_codes (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			term_type TEXT,
			suppress TEXT,
			active INTEGER NOT NULL DEFAULT 1,
			rx_term_form TEXT,
			available_strength TEXT,
			strength TEXT,
			human_drug INTEGER NOT NULL DEFAULT 0,
			vet_drug INTEGER NOT NULL DEFAULT 0,
			bn_cardinality TEXT,
			ndc_codes TEXT,
			quantity TEXT,
			qualitative_distinction TEXT
		)
	`)
	return err
}

func (db *DB) createNDCTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS ndc_codes (
			code TEXT PRIMARY KEY,
			display_code TEXT,
			product_ndc TEXT,
			proprietary_name TEXT,
			nonproprietary_name TEXT,
			dosage_form TEXT,
			route TEXT,
			substance_name TEXT,
			strength TEXT,
			product_type TEXT,
			marketing_category TEXT,
			application_number TEXT,
			labeler_name TEXT,
			dea_schedule TEXT,
			active INTEGER NOT NULL DEFAULT 1
		)
	`)
	return err
}

func (db *DB) createSnomedICD10Table(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS snomed_icd10_mapping (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snomed_code TEXT NOT NULL,
			icd10_code TEXT NOT NULL,
			map_group INTEGER,
			map_priority INTEGER,
			map_rule TEXT,
			map_advice TEXT,
			correlation_id TEXT,
			map_category_id TEXT,
			active INTEGER NOT NULL DEFAULT 1,
			effective_date TEXT,
			UNIQUE (snomed_code, icd10_code)
		)
	`)
	return err
}

func (db *DB) createICD10HCCTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS icd10_hcc_mapping (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			icd10_code TEXT NOT NULL,
			hcc_code TEXT NOT NULL,
			payment_year INTEGER,
			model_version TEXT,
			active INTEGER NOT NULL DEFAULT 1,
			UNIQUE (icd10_code, hcc_code)
		)
	`)
	return err
}

func (db *DB) createSnomedHCCTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS snomed_hcc_mapping (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snomed_code TEXT NOT NULL,
			hcc_code TEXT NOT NULL,
			via_icd10_code TEXT,
			active INTEGER NOT NULL DEFAULT 1,
			UNIQUE (snomed_code, hcc_code)
		)
	`)
	return err
}

func (db *DB) createRxNormSnomedTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS rxnorm_snomed_mapping (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rxnorm_code TEXT NOT NULL,
			snomed_code TEXT NOT NULL,
			match_type TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			UNIQUE (rxnorm_code, snomed_code)
		)
	`)
	return err
}

func (db *DB) createNDCRxNormTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS ndc_rxnorm_mapping (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ndc_code TEXT NOT NULL,
			rxnorm_code TEXT NOT NULL,
			match_type TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			UNIQUE (ndc_code, rxnorm_code)
		)
	`)
	return err
}

func (db *DB) createRxNormRelationshipsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS rxnorm_relationships (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_code TEXT NOT NULL,
			target_code TEXT NOT NULL,
			relationship TEXT NOT NULL,
			UNIQUE (source_code, target_code, relationship)
		)
	`)
	return err
}

func (db *DB) createConflictsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS mapping_conflicts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_system TEXT NOT NULL,
			target_system TEXT NOT NULL,
			source_code TEXT NOT NULL,
			target_code TEXT,
			source_description TEXT,
			reason TEXT NOT NULL,
			details TEXT,
			status TEXT NOT NULL DEFAULT 'open',
			resolution TEXT,
			resolved_code TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			resolved_at TEXT
		)
	`)
	return err
}

func (db *DB) createIndexes(tx *sql.Tx) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_icd10_category ON icd10_codes (category)",
		"CREATE INDEX IF NOT EXISTS idx_snomed_icd10_icd10 ON snomed_icd10_mapping (icd10_code)",
		"CREATE INDEX IF NOT EXISTS idx_icd10_hcc_hcc ON icd10_hcc_mapping (hcc_code)",
		"CREATE INDEX IF NOT EXISTS idx_snomed_hcc_hcc ON snomed_hcc_mapping (hcc_code)",
		"CREATE INDEX IF NOT EXISTS idx_rxnorm_snomed_snomed ON rxnorm_snomed_mapping (snomed_code)",
		"CREATE INDEX IF NOT EXISTS idx_ndc_rxnorm_rxnorm ON ndc_rxnorm_mapping (rxnorm_code)",
		"CREATE INDEX IF NOT EXISTS idx_rxnorm_rel_source ON rxnorm_relationships (source_code)",
		"CREATE INDEX IF NOT EXISTS idx_rxnorm_rel_target ON rxnorm_relationships (target_code)",
		"CREATE INDEX IF NOT EXISTS idx_conflicts_status ON mapping_conflicts (status)",
		"CREATE INDEX IF NOT EXISTS idx_conflicts_reason ON mapping_conflicts (reason)",
		// Persisted dedup: at most one open conflict per logical gap.
		// target_code may be NULL, hence the ifnull in the key.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conflicts_open_unique
			ON mapping_conflicts (source_system, target_system, source_code, ifnull(target_code, ''), reason)
			WHERE status = 'open'`,
	}
	for _, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// ClearData deletes every vocabulary, mapping, and conflict row while
// keeping the schema. Used by the pipeline's clean phase for full reloads.
func (db *DB) ClearData() error {
	tables := []string{
		TableSnomedICD10, TableICD10HCC, TableSnomedHCC,
		TableRxNormSnomed, TableNDCRxNorm, TableRxNormRel, TableConflicts,
		TableSnomed, TableICD10, TableHCC, TableCPT, TableHCPCS,
		TableRxNorm, TableNDC,
	}
	return db.WithTx(func(tx *sql.Tx) error {
		for _, table := range tables {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// schemaVersion reads the highest applied schema version
func (db *DB) schemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// runMigrations brings an existing database up to the current schema version.
// Migrations are additive only.
func (db *DB) runMigrations() error {
	version, err := db.schemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}
	if version == 0 {
		// Pre-versioning database or empty file opened once before.
		return db.initializeSchema()
	}

	db.logger.Info("Migrating database schema", map[string]interface{}{
		"from": version,
		"to":   currentSchemaVersion,
	})

	if version < 2 {
		if err := db.migrateToV2(); err != nil {
			return fmt.Errorf("migration to v2 failed: %w", err)
		}
	}

	_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion)
	return err
}

// migrateToV2 adds the RxNorm attribute-enrichment columns and the DHS
// category columns introduced after the first release.
func (db *DB) migrateToV2() error {
	alters := []string{
		"ALTER TABLE rxnorm_codes ADD COLUMN rx_term_form TEXT",
		"ALTER TABLE rxnorm_codes ADD COLUMN available_strength TEXT",
		"ALTER TABLE rxnorm_codes ADD COLUMN strength TEXT",
		"ALTER TABLE rxnorm_codes ADD COLUMN human_drug INTEGER NOT NULL DEFAULT 0",
		"ALTER TABLE rxnorm_codes ADD COLUMN vet_drug INTEGER NOT NULL DEFAULT 0",
		"ALTER TABLE rxnorm_codes ADD COLUMN bn_cardinality TEXT",
		"ALTER TABLE rxnorm_codes ADD COLUMN ndc_codes TEXT",
		"ALTER TABLE rxnorm_codes ADD COLUMN quantity TEXT",
		"ALTER TABLE rxnorm_codes ADD COLUMN qualitative_distinction TEXT",
		"ALTER TABLE cpt_codes ADD COLUMN dhs_category TEXT",
		"ALTER TABLE hcpcs_codes ADD COLUMN dhs_category TEXT",
	}
	for _, alter := range alters {
		if _, err := db.Exec(alter); err != nil {
			// Column may already exist on partially migrated databases
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return err
		}
	}
	return nil
}
