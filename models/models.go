package models

import "time"

// Audit carries the bookkeeping columns shared by every table.
type Audit struct {
	Created    time.Time `gorm:"column:created" json:"created"`
	CreatedBy  string    `gorm:"column:created_by" json:"createdBy"`
	Modified   time.Time `gorm:"column:modified" json:"modified"`
	ModifiedBy string    `gorm:"column:modified_by" json:"modifiedBy"`
	Version    int       `gorm:"column:version" json:"version"`
}

// Contract is one budget line for a PR number in a fiscal year.
// (pr_number, year) is the natural key; the import path upserts on it.
type Contract struct {
	ID                 uint     `gorm:"primaryKey" json:"id"`
	PRNumber           string   `gorm:"column:pr_number;uniqueIndex:idx_amc_pr_year" json:"prNumber"`
	Year               int      `gorm:"uniqueIndex:idx_amc_pr_year" json:"year"`
	RefDepartment      *uint    `gorm:"column:ref_departments" json:"refDepartment"`
	RefAccount         *uint    `gorm:"column:ref_account" json:"refAccount"`
	RefStatus          *uint    `gorm:"column:ref_status" json:"refStatus"`
	Domain             string   `json:"domain"`
	CCode              string   `gorm:"column:c_code" json:"cCode"`
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
	IFRS16             string   `gorm:"column:ifrs_16" json:"ifrs16"`
	Email              string   `json:"email"`
	Mobile             string   `json:"mobile"`
	StartDate          *string  `gorm:"type:date" json:"startDate"`
	EndDate            *string  `gorm:"type:date" json:"endDate"`
	TypeOfCost         string   `json:"typeOfCost"`
	TypeOfAMC          string   `gorm:"column:type_of_amc" json:"typeOfAmc"`
	Remarks            string   `json:"remarks"`
	CVDStatus          string   `gorm:"column:cvd_status" json:"cvdStatus"`
	RiskComment        string   `json:"riskComment"`
	ProcurementComment string   `json:"procurementComment"`
	Other              string   `json:"other"`
	QuotationReceived  int      `json:"quotationReceived"`
	Audit
}

func (Contract) TableName() string { return "amc_contracts" }

// PurchaseOrder rows are append-only; the latest one per (pr_number, year)
// is the one with the highest id. RefContract is only set on the manual path,
// imports join back through pr_number + year.
type PurchaseOrder struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	RefContract *uint    `gorm:"column:ref_amc_contract" json:"refContract"`
	PRNumber    string   `gorm:"column:pr_number" json:"prNumber"`
	Year        int      `json:"year"`
	PONumber    *string  `gorm:"column:po_number" json:"poNumber"`
	POAmount    *float64 `gorm:"column:po_amount" json:"poAmount"`
	PRAmount    *float64 `gorm:"column:pr_amount" json:"prAmount"`
	Audit
}

func (PurchaseOrder) TableName() string { return "amc_pos" }

// ContractBudget keeps the units/unit-cost breakdown entered on manual create.
type ContractBudget struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	RefContract uint     `gorm:"column:ref_amc_contract" json:"refContract"`
	Year        int      `json:"year"`
	Units       *float64 `json:"units"`
	UnitCost    *float64 `json:"unitCost"`
	Audit
}

func (ContractBudget) TableName() string { return "amc_budgets" }

// YearlyBudget is the approved ceiling for one fiscal year. Uniqueness per
// year is checked by the handler before insert, not by a constraint; ties are
// broken by taking the highest id.
type YearlyBudget struct {
	ID    uint    `gorm:"primaryKey" json:"id"`
	Year  int     `json:"year"`
	Value float64 `gorm:"column:value" json:"value"`
	Audit
}

func (YearlyBudget) TableName() string { return "yearly_budget" }

type Department struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	NameEn      string `gorm:"column:name_en" json:"nameEn"`
	Category    string `json:"category"`
	Directorate string `json:"directorate"`
	Audit
}

func (Department) TableName() string { return "departments" }

type Account struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Account string `gorm:"column:account" json:"account"`
	NameEn  string `gorm:"column:name_en" json:"nameEn"`
	Audit
}

func (Account) TableName() string { return "accounts" }

type StatusMaster struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	NameEn   string `gorm:"column:name_en" json:"nameEn"`
	Category string `json:"category"`
	Audit
}

func (StatusMaster) TableName() string { return "status_master" }

// Attachment binds an uploaded file to a row in another table by
// (table_name, ref_id). Files live on disk; only metadata is stored here.
type Attachment struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Table     string `gorm:"column:table_name" json:"tableName"`
	RefID     uint   `gorm:"column:ref_id" json:"refId"`
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
	Meta      string `json:"meta"`
	Audit
}

func (Attachment) TableName() string { return "attachment" }
