package main

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opex/export"
	"opex/importer"
	"opex/models"
	"opex/notification"
)

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

// actor recorded in audit columns until authentication exists.
const defaultActor = "admin"

type contractForm struct {
	PRNumber           string   `json:"prNumber"`
	Year               int      `json:"year"`
	RefDepartment      *uint    `json:"refDepartment"`
	RefAccount         *uint    `json:"refAccount"`
	RefStatus          *uint    `json:"refStatus"`
	Domain             string   `json:"domain"`
	CCode              string   `json:"cCode"`
	ExpenseType        string   `json:"expenseType"`
	CostCenter         string   `json:"costCenter"`
	ApprovalAmount     *float64 `json:"approvalAmount"`
	ApprovedBudget     *float64 `json:"approvedBudget"`
	BudgetYear         *int     `json:"budgetYear"`
	Approved           int      `json:"approved"`
	ContractReference  string   `json:"contractReference"`
	LineBudget         string   `json:"lineBudget"`
	Vendor             string   `json:"vendor"`
	SubCategory        string   `json:"subCategory"`
	IFRS16             string   `json:"ifrs16"`
	Email              string   `json:"email"`
	Mobile             string   `json:"mobile"`
	StartDate          *string  `json:"startDate"`
	EndDate            *string  `json:"endDate"`
	TypeOfCost         string   `json:"typeOfCost"`
	TypeOfAMC          string   `json:"typeOfAmc"`
	Remarks            string   `json:"remarks"`
	CVDStatus          string   `json:"cvdStatus"`
	RiskComment        string   `json:"riskComment"`
	ProcurementComment string   `json:"procurementComment"`
	Other              string   `json:"other"`
	QuotationReceived  int      `json:"quotationReceived"`
	Units              *float64 `json:"units"`
	UnitCost           *float64 `json:"unitCost"`
	PONumber           *string  `json:"poNumber"`
	POAmount           *float64 `json:"poAmount"`
}

// validateContract collects every problem with the form so the client can
// show them all at once. excludeID skips the record itself on update.
func validateContract(form *contractForm, excludeID uint) []string {
	var errs []string

	if form.PRNumber == "" {
		errs = append(errs, "PR Number is required.")
	} else {
		q := db.Model(&models.Contract{}).Where("pr_number = ?", form.PRNumber)
		if excludeID > 0 {
			// Imports keep one record per (pr_number, year), so on edit
			// only a clash on the same year counts as a duplicate.
			q = q.Where("year = ?", form.Year).Where("id <> ?", excludeID)
		}
		var count int64
		q.Count(&count)
		if count > 0 {
			errs = append(errs, "This PR Number already exists. Please enter a unique PR Number.")
		}
	}

	if form.ApprovalAmount == nil || *form.ApprovalAmount <= 0 {
		errs = append(errs, "Approval Amount must be greater than 0.")
	}
	if form.Vendor == "" {
		errs = append(errs, "Vendor name is required.")
	}
	if form.Email != "" && !emailPattern.MatchString(form.Email) {
		errs = append(errs, "Vendor email format is invalid.")
	}
	if form.Mobile != "" && !digitsPattern.MatchString(form.Mobile) {
		errs = append(errs, "Vendor mobile must contain digits only.")
	}
	if form.StartDate != nil && form.EndDate != nil && *form.EndDate <= *form.StartDate {
		errs = append(errs, "End Date must be later than Start Date.")
	}
	if form.Approved == 1 {
		if form.PONumber == nil || *form.PONumber == "" {
			errs = append(errs, "PO Number is required for an approved record.")
		}
		if form.POAmount == nil || *form.POAmount <= 0 {
			errs = append(errs, "PO Amount must be greater than 0 for an approved record.")
		}
	}

	return errs
}

func (f *contractForm) contract() models.Contract {
	return models.Contract{
		PRNumber:           f.PRNumber,
		Year:               f.Year,
		RefDepartment:      f.RefDepartment,
		RefAccount:         f.RefAccount,
		RefStatus:          f.RefStatus,
		Domain:             f.Domain,
		CCode:              f.CCode,
		ExpenseType:        f.ExpenseType,
		CostCenter:         f.CostCenter,
		ApprovalAmount:     f.ApprovalAmount,
		ApprovedBudget:     f.ApprovedBudget,
		BudgetYear:         f.BudgetYear,
		Approved:           f.Approved,
		ContractReference:  f.ContractReference,
		LineBudget:         f.LineBudget,
		Vendor:             f.Vendor,
		SubCategory:        f.SubCategory,
		IFRS16:             f.IFRS16,
		Email:              f.Email,
		Mobile:             f.Mobile,
		StartDate:          f.StartDate,
		EndDate:            f.EndDate,
		TypeOfCost:         f.TypeOfCost,
		TypeOfAMC:          f.TypeOfAMC,
		Remarks:            f.Remarks,
		CVDStatus:          f.CVDStatus,
		RiskComment:        f.RiskComment,
		ProcurementComment: f.ProcurementComment,
		Other:              f.Other,
		QuotationReceived:  f.QuotationReceived,
	}
}

func createContract(c *gin.Context) {
	var form contractForm
	if err := c.BindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}
	if form.Year == 0 {
		form.Year = time.Now().Year()
	}

	if errs := validateContract(&form, 0); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": errs,
		})
		return
	}

	now := time.Now()
	audit := models.Audit{
		Created: now, CreatedBy: defaultActor,
		Modified: now, ModifiedBy: defaultActor,
		Version: 1,
	}

	contract := form.contract()
	contract.Audit = audit

	tx := db.Begin()
	if err := tx.Create(&contract).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	if form.Units != nil || form.UnitCost != nil {
		budget := models.ContractBudget{
			RefContract: contract.ID,
			Year:        contract.Year,
			Units:       form.Units,
			UnitCost:    form.UnitCost,
			Audit:       audit,
		}
		if err := tx.Create(&budget).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{
				"message": err.Error(),
			})
			return
		}
	}

	if contract.Approved == 1 {
		po := models.PurchaseOrder{
			RefContract: &contract.ID,
			PRNumber:    contract.PRNumber,
			Year:        contract.Year,
			PONumber:    form.PONumber,
			POAmount:    form.POAmount,
			PRAmount:    form.ApprovalAmount,
			Audit:       audit,
		}
		if err := tx.Create(&po).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{
				"message": err.Error(),
			})
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, contract)
}

type contractRow struct {
	ID                 uint     `gorm:"column:id" json:"id"`
	PRNumber           string   `gorm:"column:pr_number" json:"prNumber"`
	Year               int      `gorm:"column:year" json:"year"`
	Department         string   `gorm:"column:department" json:"department"`
	AccountNo          string   `gorm:"column:account_no" json:"accountNo"`
	AccountName        string   `gorm:"column:account_name" json:"accountName"`
	Status             string   `gorm:"column:status" json:"status"`
	Domain             string   `gorm:"column:domain" json:"domain"`
	CCode              string   `gorm:"column:c_code" json:"cCode"`
	ExpenseType        string   `gorm:"column:expense_type" json:"expenseType"`
	CostCenter         string   `gorm:"column:cost_center" json:"costCenter"`
	ApprovalAmount     *float64 `gorm:"column:approval_amount" json:"approvalAmount"`
	ApprovedBudget     *float64 `gorm:"column:approved_budget" json:"approvedBudget"`
	BudgetYear         *int     `gorm:"column:budget_year" json:"budgetYear"`
	Approved           int      `gorm:"column:approved" json:"approved"`
	ContractReference  string   `gorm:"column:contract_reference" json:"contractReference"`
	LineBudget         string   `gorm:"column:line_budget" json:"lineBudget"`
	Vendor             string   `gorm:"column:vendor" json:"vendor"`
	SubCategory        string   `gorm:"column:sub_category" json:"subCategory"`
	IFRS16             string   `gorm:"column:ifrs_16" json:"ifrs16"`
	Email              string   `gorm:"column:email" json:"email"`
	Mobile             string   `gorm:"column:mobile" json:"mobile"`
	StartDate          *string  `gorm:"column:start_date" json:"startDate"`
	EndDate            *string  `gorm:"column:end_date" json:"endDate"`
	TypeOfCost         string   `gorm:"column:type_of_cost" json:"typeOfCost"`
	TypeOfAMC          string   `gorm:"column:type_of_amc" json:"typeOfAmc"`
	Remarks            string   `gorm:"column:remarks" json:"remarks"`
	CVDStatus          string   `gorm:"column:cvd_status" json:"cvdStatus"`
	RiskComment        string   `gorm:"column:risk_comment" json:"riskComment"`
	ProcurementComment string   `gorm:"column:procurement_comment" json:"procurementComment"`
	Other              string   `gorm:"column:other" json:"other"`
	QuotationReceived  int      `gorm:"column:quotation_received" json:"quotationReceived"`
	PONumber           *string  `gorm:"column:po_number" json:"poNumber"`
	POAmount           *float64 `gorm:"column:po_amount" json:"poAmount"`
	AttachmentCount    int      `gorm:"column:attachment_count" json:"attachmentCount"`
}

const contractListSelect = `
	ac.id, ac.pr_number, ac.year,
	d.name_en AS department,
	a.account AS account_no, a.name_en AS account_name,
	s.name_en AS status,
	ac.domain, ac.c_code, ac.expense_type, ac.cost_center,
	ac.approval_amount, ac.approved_budget, ac.budget_year, ac.approved,
	ac.contract_reference, ac.line_budget, ac.vendor, ac.sub_category,
	ac.ifrs_16, ac.email, ac.mobile, ac.start_date, ac.end_date,
	ac.type_of_cost, ac.type_of_amc, ac.remarks, ac.cvd_status,
	ac.risk_comment, ac.procurement_comment, ac.other, ac.quotation_received,
	lp.po_number, lp.po_amount,
	(SELECT COUNT(*) FROM attachment att
	  WHERE att.table_name = 'amc_contracts' AND att.ref_id = ac.id) AS attachment_count`

// contractListQuery builds the joined, filtered list query. The latest PO per
// (pr_number, year) is the row with the highest id.
func contractListQuery(c *gin.Context) *gorm.DB {
	q := db.Table("amc_contracts AS ac").
		Select(contractListSelect).
		Joins("LEFT JOIN departments d ON ac.ref_departments = d.id").
		Joins("LEFT JOIN accounts a ON ac.ref_account = a.id").
		Joins("LEFT JOIN status_master s ON ac.ref_status = s.id").
		Joins(`LEFT JOIN (SELECT pr_number, year, MAX(id) AS max_id
			FROM amc_pos GROUP BY pr_number, year) lm
			ON lm.pr_number = ac.pr_number AND lm.year = ac.year`).
		Joins("LEFT JOIN amc_pos lp ON lp.id = lm.max_id")

	if pr := c.Query("pr"); pr != "" {
		q = q.Where("ac.pr_number LIKE ?", "%"+pr+"%")
	}
	if dept := c.Query("department"); dept != "" {
		q = q.Where("d.name_en = ?", dept)
	}
	if year := c.Query("year"); year != "" {
		q = q.Where("ac.year = ?", year)
	}
	if vendor := c.Query("vendor"); vendor != "" {
		q = q.Where("ac.vendor LIKE ?", "%"+vendor+"%")
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("s.name_en = ?", status)
	}
	if accountNo := c.Query("accountNo"); accountNo != "" {
		q = q.Where("a.account LIKE ?", "%"+accountNo+"%")
	}
	if po := c.Query("po"); po != "" {
		q = q.Where("lp.po_number LIKE ?", "%"+po+"%")
	}

	return q
}

func getContracts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "15"))
	if pageSize < 1 {
		pageSize = 15
	}

	var total int64
	if err := contractListQuery(c).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	var rows []contractRow
	err := contractListQuery(c).
		Order("ac.year DESC, ac.pr_number").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     rows,
		"page":     page,
		"pageSize": pageSize,
		"total":    total,
	})
}

func getContractDetail(c *gin.Context) {
	id := c.Param("id")

	var contract models.Contract
	if err := db.Where("id = ?", id).First(&contract).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Record not found",
		})
		return
	}

	body := struct {
		Contract models.Contract         `json:"contract"`
		Budgets  []models.ContractBudget `json:"budgets"`
		POs      []models.PurchaseOrder  `json:"pos"`
	}{Contract: contract}

	db.Where("ref_amc_contract = ?", contract.ID).Find(&body.Budgets)
	db.Where("ref_amc_contract = ? OR (pr_number = ? AND year = ?)",
		contract.ID, contract.PRNumber, contract.Year).
		Order("id DESC").
		Find(&body.POs)

	c.JSON(http.StatusOK, body)
}

func updateContract(c *gin.Context) {
	id := c.Param("id")

	var contract models.Contract
	if err := db.Where("id = ?", id).First(&contract).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Record not found",
		})
		return
	}

	var form contractForm
	if err := c.BindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}
	if form.Year == 0 {
		form.Year = contract.Year
	}

	if errs := validateContract(&form, contract.ID); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": errs,
		})
		return
	}

	now := time.Now()
	updates := map[string]interface{}{
		"pr_number":           form.PRNumber,
		"year":                form.Year,
		"ref_departments":     form.RefDepartment,
		"ref_account":         form.RefAccount,
		"ref_status":          form.RefStatus,
		"domain":              form.Domain,
		"c_code":              form.CCode,
		"expense_type":        form.ExpenseType,
		"cost_center":         form.CostCenter,
		"approval_amount":     form.ApprovalAmount,
		"approved_budget":     form.ApprovedBudget,
		"budget_year":         form.BudgetYear,
		"approved":            form.Approved,
		"contract_reference":  form.ContractReference,
		"line_budget":         form.LineBudget,
		"vendor":              form.Vendor,
		"sub_category":        form.SubCategory,
		"ifrs_16":             form.IFRS16,
		"email":               form.Email,
		"mobile":              form.Mobile,
		"start_date":          form.StartDate,
		"end_date":            form.EndDate,
		"type_of_cost":        form.TypeOfCost,
		"type_of_amc":         form.TypeOfAMC,
		"remarks":             form.Remarks,
		"cvd_status":          form.CVDStatus,
		"risk_comment":        form.RiskComment,
		"procurement_comment": form.ProcurementComment,
		"other":               form.Other,
		"quotation_received":  form.QuotationReceived,
		"modified":            now,
		"modified_by":         defaultActor,
		"version":             gorm.Expr("COALESCE(version, 0) + 1"),
	}

	tx := db.Begin()
	if err := tx.Model(&contract).Updates(updates).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	if form.PONumber != nil || form.POAmount != nil || form.Approved == 1 {
		var po models.PurchaseOrder
		err := tx.Where("ref_amc_contract = ? AND year = ?", contract.ID, form.Year).
			Order("id DESC").
			First(&po).Error
		switch {
		case err == nil:
			poUpdates := map[string]interface{}{
				"po_number":   form.PONumber,
				"po_amount":   form.POAmount,
				"pr_amount":   form.ApprovalAmount,
				"modified":    now,
				"modified_by": defaultActor,
				"version":     gorm.Expr("COALESCE(version, 0) + 1"),
			}
			if err := tx.Model(&po).Updates(poUpdates).Error; err != nil {
				tx.Rollback()
				c.JSON(http.StatusInternalServerError, gin.H{
					"message": err.Error(),
				})
				return
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			po = models.PurchaseOrder{
				RefContract: &contract.ID,
				PRNumber:    form.PRNumber,
				Year:        form.Year,
				PONumber:    form.PONumber,
				POAmount:    form.POAmount,
				PRAmount:    form.ApprovalAmount,
				Audit: models.Audit{
					Created: now, CreatedBy: defaultActor,
					Modified: now, ModifiedBy: defaultActor,
					Version: 1,
				},
			}
			if err := tx.Create(&po).Error; err != nil {
				tx.Rollback()
				c.JSON(http.StatusInternalServerError, gin.H{
					"message": err.Error(),
				})
				return
			}
		default:
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{
				"message": err.Error(),
			})
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	db.Where("id = ?", contract.ID).First(&contract)
	c.JSON(http.StatusOK, contract)
}

// deleteContract removes only the contract row. PO and budget rows stay as
// history and remain reachable for reporting through pr_number and year.
func deleteContract(c *gin.Context) {
	id := c.Param("id")

	var contract models.Contract
	if err := db.Where("id = ?", id).First(&contract).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Record not found",
		})
		return
	}

	if err := db.Delete(&contract).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Record deleted successfully",
	})
}

func getAttachments(c *gin.Context) {
	id := c.Param("id")

	var attachments []models.Attachment
	err := db.Where("table_name = ? AND ref_id = ?", "amc_contracts", id).
		Find(&attachments).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, attachments)
}

func createAttachment(c *gin.Context) {
	id := c.Param("id")

	var contract models.Contract
	if err := db.Where("id = ?", id).First(&contract).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Record not found",
		})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "file is required",
		})
		return
	}

	dir := filepath.Join(attachmentDir, fmt.Sprintf("amc_%d", contract.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	filename := filepath.Base(file.Filename)
	dst := filepath.Join(dir, filename)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(filename))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	now := time.Now()
	attachment := models.Attachment{
		Table:     "amc_contracts",
		RefID:     contract.ID,
		Filename:  filename,
		Path:      dst,
		MimeType:  mimeType,
		SizeBytes: file.Size,
		Meta:      c.PostForm("meta"),
		Audit: models.Audit{
			Created: now, CreatedBy: defaultActor,
			Modified: now, ModifiedBy: defaultActor,
			Version: 1,
		},
	}
	if err := db.Create(&attachment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, attachment)
}

func downloadAttachment(c *gin.Context) {
	var attachment models.Attachment
	err := db.Where("id = ? AND table_name = ? AND ref_id = ?",
		c.Param("attId"), "amc_contracts", c.Param("id")).
		First(&attachment).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Attachment not found",
		})
		return
	}

	c.FileAttachment(attachment.Path, attachment.Filename)
}

func deleteAttachment(c *gin.Context) {
	var attachment models.Attachment
	err := db.Where("id = ? AND table_name = ? AND ref_id = ?",
		c.Param("attId"), "amc_contracts", c.Param("id")).
		First(&attachment).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Attachment not found",
		})
		return
	}

	if err := db.Delete(&attachment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	if err := os.Remove(attachment.Path); err != nil {
		logger.Warn("attachment file removal failed",
			zap.String("path", attachment.Path), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Attachment deleted successfully",
	})
}

func getDepartments(c *gin.Context) {
	var departments []models.Department
	if err := db.Order("name_en").Find(&departments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, departments)
}

func createDepartment(c *gin.Context) {
	var form struct {
		NameEn      string `json:"nameEn"`
		Category    string `json:"category"`
		Directorate string `json:"directorate"`
	}
	if err := c.BindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}

	if form.NameEn == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Department name cannot be empty.",
		})
		return
	}
	if form.Directorate == "" {
		form.Directorate = "Service Assurance & Optimization"
	}

	var count int64
	db.Model(&models.Department{}).Where("name_en = ?", form.NameEn).Count(&count)
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "This department already exists. Please enter a unique name.",
		})
		return
	}

	now := time.Now()
	department := models.Department{
		NameEn:      form.NameEn,
		Category:    form.Category,
		Directorate: form.Directorate,
		Audit: models.Audit{
			Created: now, CreatedBy: defaultActor,
			Modified: now, ModifiedBy: defaultActor,
			Version: 1,
		},
	}
	if err := db.Create(&department).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, department)
}

func getAccounts(c *gin.Context) {
	var accounts []models.Account
	if err := db.Order("name_en").Find(&accounts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func createAccount(c *gin.Context) {
	var form struct {
		NameEn  string `json:"nameEn"`
		Account string `json:"account"`
	}
	if err := c.BindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}

	if form.NameEn == "" || form.Account == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "All account fields must be filled.",
		})
		return
	}
	if !digitsPattern.MatchString(form.Account) {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Account number must contain digits only.",
		})
		return
	}

	var count int64
	db.Model(&models.Account{}).Where("account = ?", form.Account).Count(&count)
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "This account already exists. Please enter a unique one.",
		})
		return
	}

	now := time.Now()
	account := models.Account{
		NameEn:  form.NameEn,
		Account: form.Account,
		Audit: models.Audit{
			Created: now, CreatedBy: defaultActor,
			Modified: now, ModifiedBy: defaultActor,
			Version: 1,
		},
	}
	if err := db.Create(&account).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, account)
}

func getStatuses(c *gin.Context) {
	category := c.DefaultQuery("category", "case")

	var statuses []models.StatusMaster
	err := db.Where("category = ?", category).Order("name_en").Find(&statuses).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func getYearlyBudgets(c *gin.Context) {
	var budgets []models.YearlyBudget
	if err := db.Order("year DESC").Find(&budgets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, budgets)
}

// createYearlyBudget checks year uniqueness itself; the table carries no
// constraint, the KPI queries take the row with the highest id on ties.
func createYearlyBudget(c *gin.Context) {
	var form struct {
		Year  int     `json:"year"`
		Value float64 `json:"value"`
	}
	if err := c.BindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}

	var errs []string
	var count int64
	db.Model(&models.YearlyBudget{}).Where("year = ?", form.Year).Count(&count)
	if count > 0 {
		errs = append(errs, "This year already exists.")
	}
	if form.Value <= 0 {
		errs = append(errs, "Amount must be greater than 0.")
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": errs,
		})
		return
	}

	now := time.Now()
	budget := models.YearlyBudget{
		Year:  form.Year,
		Value: form.Value,
		Audit: models.Audit{
			Created: now, CreatedBy: defaultActor,
			Modified: now, ModifiedBy: defaultActor,
			Version: 1,
		},
	}
	if err := db.Create(&budget).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, budget)
}

func importContracts(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "file is required",
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}
	defer src.Close()

	workbook, err := excelize.OpenReader(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": fmt.Sprintf("cannot read workbook: %v", err),
		})
		return
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "workbook has no sheets",
		})
		return
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": fmt.Sprintf("cannot read sheet %s: %v", sheets[0], err),
		})
		return
	}

	im := importer.Importer{
		DB:         db,
		Logger:     logger,
		Actor:      defaultActor,
		StrictRefs: strictRefs,
	}
	result, err := im.Run(rows)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}

	go notification.SendImportSummary(logger,
		result.ContractsUpserted, result.POsInserted, result.ApprovedTotal,
		result.Warnings, result.Errors)

	c.JSON(http.StatusOK, result)
}

func exportContracts(c *gin.Context) {
	var rows []contractRow
	err := contractListQuery(c).
		Order("ac.year DESC, ac.pr_number").
		Find(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	contents := [][]string{{
		"PR Number", "Year", "Department", "Account No", "Account", "Status",
		"Domain", "C Code", "Expense Type", "Cost Center",
		"Approval Amount", "Approved Budget", "Approved",
		"Contract Reference", "Line Budget", "Vendor", "Sub Category",
		"IFRS 16", "Email", "Mobile", "Start Date", "End Date",
		"Type of Cost", "Type of AMC", "Remarks", "CVD Status",
		"Risk Comment", "Procurement Comment", "Other", "Quotation Received",
		"PO Number", "PO Amount",
	}}
	for _, row := range rows {
		contents = append(contents, []string{
			row.PRNumber,
			strconv.Itoa(row.Year),
			row.Department,
			row.AccountNo,
			row.AccountName,
			row.Status,
			row.Domain,
			row.CCode,
			row.ExpenseType,
			row.CostCenter,
			fmtAmount(row.ApprovalAmount),
			fmtAmount(row.ApprovedBudget),
			yesNo(row.Approved),
			row.ContractReference,
			row.LineBudget,
			row.Vendor,
			row.SubCategory,
			row.IFRS16,
			row.Email,
			row.Mobile,
			strOrEmpty(row.StartDate),
			strOrEmpty(row.EndDate),
			row.TypeOfCost,
			row.TypeOfAMC,
			row.Remarks,
			row.CVDStatus,
			row.RiskComment,
			row.ProcurementComment,
			row.Other,
			yesNo(row.QuotationReceived),
			strOrEmpty(row.PONumber),
			fmtAmount(row.POAmount),
		})
	}

	filename := fmt.Sprintf("opex_budget_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := export.WriteCSV(c.Writer, contents); err != nil {
		logger.Error("csv export failed", zap.Error(err))
	}
}

func fmtAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func yesNo(v int) string {
	if v == 1 {
		return "Yes"
	}
	return "No"
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
