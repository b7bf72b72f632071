package importer

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opex/models"
)

// contractUpdateColumns are the columns rewritten when an import hits an
// existing (pr_number, year). The natural key and the creation audit fields
// stay untouched so a re-import only advances modified/modified_by.
var contractUpdateColumns = []string{
	"ref_departments", "ref_account", "ref_status",
	"expense_type", "c_code", "cost_center", "line_budget", "vendor",
	"sub_category", "ifrs_16", "email", "mobile",
	"start_date", "end_date", "type_of_cost", "type_of_amc",
	"remarks", "cvd_status", "risk_comment", "procurement_comment", "other",
	"approval_amount", "approved_budget", "budget_year", "approved",
	"quotation_received", "modified", "modified_by", "version",
}

// upsertContract writes one canonical record in its own transaction:
// insert, or on conflict of the natural key update every non-key column.
func (im *Importer) upsertContract(rec Record, now time.Time) error {
	contract := models.Contract{
		PRNumber:           rec.PRNumber,
		Year:               rec.Year,
		RefDepartment:      rec.RefDepartment,
		RefAccount:         rec.RefAccount,
		RefStatus:          rec.RefStatus,
		ExpenseType:        rec.ExpenseType,
		CCode:              rec.CCode,
		CostCenter:         rec.CostCenter,
		LineBudget:         rec.LineBudget,
		Vendor:             rec.Vendor,
		SubCategory:        rec.SubCategory,
		IFRS16:             rec.IFRS16,
		Email:              rec.Email,
		Mobile:             rec.Mobile,
		StartDate:          rec.StartDate,
		EndDate:            rec.EndDate,
		TypeOfCost:         rec.TypeOfCost,
		TypeOfAMC:          rec.TypeOfAMC,
		Remarks:            rec.Remarks,
		CVDStatus:          rec.CVDStatus,
		RiskComment:        rec.RiskComment,
		ProcurementComment: rec.ProcurementComment,
		Other:              rec.Other,
		ApprovalAmount:     rec.ApprovalAmount,
		ApprovedBudget:     rec.ApprovedBudget,
		BudgetYear:         rec.BudgetYear,
		Approved:           rec.Approved,
		QuotationReceived:  rec.QuotationReceived,
		Audit: models.Audit{
			Created:    now,
			CreatedBy:  im.Actor,
			Modified:   now,
			ModifiedBy: im.Actor,
			Version:    1,
		},
	}

	return im.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pr_number"}, {Name: "year"}},
			DoUpdates: clause.AssignmentColumns(contractUpdateColumns),
		}).Create(&contract).Error
	})
}

// insertPO appends a purchase-order row. PO rows are never upserted on the
// import path; readers take the latest per (pr_number, year) by max id.
func (im *Importer) insertPO(rec Record, now time.Time) error {
	po := models.PurchaseOrder{
		PRNumber: rec.PRNumber,
		Year:     rec.Year,
		PONumber: rec.PONumber,
		POAmount: rec.POAmount,
		Audit: models.Audit{
			Created:    now,
			CreatedBy:  im.Actor,
			Modified:   now,
			ModifiedBy: im.Actor,
			Version:    1,
		},
	}

	return im.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&po).Error
	})
}
