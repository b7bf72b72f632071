// Package importer maps loosely-structured budget spreadsheets onto the
// contract tables: headers are resolved once per import, each row is
// normalized into per-(PR number, year) records, and every record is written
// in its own transaction so one bad row never aborts the batch.
package importer

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Importer drives one spreadsheet import.
type Importer struct {
	DB     *gorm.DB
	Logger *zap.Logger
	// Actor is recorded in the audit columns of everything written.
	Actor string
	// StrictRefs turns an unresolved department/account/status into a row
	// error instead of a null foreign key.
	StrictRefs bool
}

// Result is the partial-success summary of one import run.
type Result struct {
	ContractsUpserted int      `json:"contractsUpserted"`
	POsInserted       int      `json:"posInserted"`
	ApprovedTotal     float64  `json:"approvedTotal"`
	Warnings          []string `json:"warnings"`
	Errors            []string `json:"errors"`
}

// Run imports a table of raw cells, first row headers. Per-row and per-record
// failures land in the result; only the inability to read the reference
// tables at all is returned as an error.
func (im *Importer) Run(rows [][]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, errors.New("empty table: no header row")
	}

	mapping := Resolve(rows[0])
	refs, err := LoadReferences(im.DB)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	now := time.Now()

	for i, cells := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header row
		row := BuildRow(mapping, cells)

		records, rowErrs := NormalizeRow(row, mapping, refs, im.StrictRefs)
		for _, msg := range rowErrs {
			warning := fmt.Sprintf("Row %d: %s. Skipped.", rowNum, msg)
			res.Warnings = append(res.Warnings, warning)
			if im.Logger != nil {
				im.Logger.Warn("import row skipped",
					zap.Int("row", rowNum), zap.String("reason", msg))
			}
		}
		if len(rowErrs) > 0 {
			continue
		}

		for _, rec := range records {
			// A failed contract upsert still lets the PO append run: the
			// two writes are independent and the record may already exist
			// from a previous import.
			if err := im.upsertContract(rec, now); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf(
					"PR %s - Year %d: contract upsert failed: %v", rec.PRNumber, rec.Year, err))
			} else {
				res.ContractsUpserted++
				if rec.ApprovedBudget != nil {
					res.ApprovedTotal += *rec.ApprovedBudget
				}
			}

			if rec.PONumber != nil || rec.POAmount != nil {
				if err := im.insertPO(rec, now); err != nil {
					res.Errors = append(res.Errors, fmt.Sprintf(
						"PR %s - Year %d: PO insert failed: %v", rec.PRNumber, rec.Year, err))
					continue
				}
				res.POsInserted++
			}
		}
	}

	if im.Logger != nil {
		im.Logger.Info("import finished",
			zap.Int("contracts", res.ContractsUpserted),
			zap.Int("pos", res.POsInserted),
			zap.Int("warnings", len(res.Warnings)),
			zap.Int("errors", len(res.Errors)))
	}

	return res, nil
}
