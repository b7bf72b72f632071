package importer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"opex/models"
)

// ErrMissingPRNumber marks a row that carries no business identifier and
// therefore cannot produce any record.
var ErrMissingPRNumber = errors.New("missing PR number")

// Row is one input row keyed by normalized header. Blank cells are absent or
// empty strings; both count as null.
type Row map[string]string

// BuildRow zips a raw cell slice against the resolved headers. Spreadsheet
// readers drop trailing empty cells, so the slice may be shorter.
func BuildRow(m *Mapping, cells []string) Row {
	r := make(Row, len(m.Headers))
	for i, h := range m.Headers {
		if i < len(cells) {
			r[h] = cells[i]
		}
	}
	return r
}

func (r Row) value(col string) (string, bool) {
	if col == "" {
		return "", false
	}
	v := strings.TrimSpace(r[col])
	return v, v != ""
}

// pick resolves a logical field through the mapping and returns its trimmed
// value, or false when the column is absent or blank.
func (r Row) pick(m *Mapping, field string) (string, bool) {
	col, ok := m.Column(field)
	if !ok {
		return "", false
	}
	return r.value(col)
}

func (r Row) pickString(m *Mapping, field string) string {
	v, _ := r.pick(m, field)
	return v
}

// Record is one canonical per-(PR number, year) unit ready for persistence.
type Record struct {
	PRNumber string
	Year     int

	RefDepartment *uint
	RefAccount    *uint
	RefStatus     *uint

	ExpenseType        string
	CCode              string
	CostCenter         string
	LineBudget         string
	Vendor             string
	SubCategory        string
	IFRS16             string
	Email              string
	Mobile             string
	TypeOfCost         string
	TypeOfAMC          string
	Remarks            string
	CVDStatus          string
	RiskComment        string
	ProcurementComment string
	Other              string

	StartDate *string
	EndDate   *string

	ApprovalAmount    *float64
	ApprovedBudget    *float64
	BudgetYear        *int
	Approved          int
	QuotationReceived int

	PONumber *string
	POAmount *float64
}

// ToFloat parses an amount, tolerating thousands separators. Blank or
// unparseable input yields nil.
func ToFloat(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ToBool maps yes/y/true/1 to 1 and no/n/false/0 to 0; numeric 0/1 pass
// through; anything else yields def.
func ToBool(s string, def int) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		return 1
	case "no", "n", "false", "0":
		return 0
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		if f == 0 {
			return 0
		}
		if f == 1 {
			return 1
		}
	}
	return def
}

var dayFirstLayouts = []string{
	"02-01-2006", "02/01/2006", "2-1-2006", "2/1/2006",
	"02-01-2006 15:04:05", "02/01/2006 15:04:05",
}

var fallbackLayouts = []string{
	"2006-01-02", "2006/01/02", "01-02-2006", "01/02/2006",
	"2006-01-02 15:04:05", "2006-01-02T15:04:05",
}

// excelEpoch is the serial-date origin used by spreadsheet software.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ToDate returns an ISO date string (YYYY-MM-DD) or nil. Day-first formats
// take precedence, then month-first/ISO, then spreadsheet serial numbers in
// [1, 80000]. It never fails; anything unparseable is nil.
func ToDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return isoDate(t)
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return isoDate(t)
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n >= 1 && n <= 80000 {
		return isoDate(excelEpoch.AddDate(0, 0, int(n)))
	}
	return nil
}

func isoDate(t time.Time) *string {
	s := t.Format("2006-01-02")
	return &s
}

// References caches the lookup tables for one import run. All name keys are
// folded (trimmed, lowercased) before matching.
type References struct {
	deptByName        map[string]uint
	deptByDirectorate map[string]uint
	accountByNumber   map[string]uint
	accountByName     map[string]uint
	statusByName      map[string]uint
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LoadReferences reads the department, account and status tables once.
// Statuses are restricted to the "case" category, matching what the sheets
// put in their Case column.
func LoadReferences(db *gorm.DB) (*References, error) {
	refs := &References{
		deptByName:        make(map[string]uint),
		deptByDirectorate: make(map[string]uint),
		accountByNumber:   make(map[string]uint),
		accountByName:     make(map[string]uint),
		statusByName:      make(map[string]uint),
	}

	var depts []models.Department
	if err := db.Find(&depts).Error; err != nil {
		return nil, fmt.Errorf("loading departments: %w", err)
	}
	for _, d := range depts {
		if _, ok := refs.deptByName[fold(d.NameEn)]; !ok {
			refs.deptByName[fold(d.NameEn)] = d.ID
		}
		if d.Directorate != "" {
			if _, ok := refs.deptByDirectorate[fold(d.Directorate)]; !ok {
				refs.deptByDirectorate[fold(d.Directorate)] = d.ID
			}
		}
	}

	var accounts []models.Account
	if err := db.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	for _, a := range accounts {
		key := strings.TrimSpace(a.Account)
		if _, ok := refs.accountByNumber[key]; !ok {
			refs.accountByNumber[key] = a.ID
		}
		if _, ok := refs.accountByName[fold(a.NameEn)]; !ok {
			refs.accountByName[fold(a.NameEn)] = a.ID
		}
	}

	var statuses []models.StatusMaster
	if err := db.Where("category = ?", "case").Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("loading statuses: %w", err)
	}
	for _, s := range statuses {
		if _, ok := refs.statusByName[fold(s.NameEn)]; !ok {
			refs.statusByName[fold(s.NameEn)] = s.ID
		}
	}

	return refs, nil
}

// Department resolves by exact case-insensitive name, falling back to the
// directorate column when the name misses.
func (r *References) Department(name, directorate string) *uint {
	if name != "" {
		if id, ok := r.deptByName[fold(name)]; ok {
			return &id
		}
	}
	if directorate != "" {
		if id, ok := r.deptByDirectorate[fold(directorate)]; ok {
			return &id
		}
	}
	return nil
}

// Account resolves by exact account number first, then by folded name.
func (r *References) Account(number, name string) *uint {
	if number != "" {
		if id, ok := r.accountByNumber[strings.TrimSpace(number)]; ok {
			return &id
		}
	}
	if name != "" {
		if id, ok := r.accountByName[fold(name)]; ok {
			return &id
		}
	}
	return nil
}

// Status resolves the free-text case value against the "case" statuses.
func (r *References) Status(name string) *uint {
	if name == "" {
		return nil
	}
	if id, ok := r.statusByName[fold(name)]; ok {
		return &id
	}
	return nil
}

// NormalizeRow turns one input row into zero or more canonical records, one
// per detected year that carries any budget/PO signal. Resolution and parse
// misses produce nulls, never errors; in strict mode an unresolved reference
// becomes a row error instead. A row without a PR number returns
// ErrMissingPRNumber.
func NormalizeRow(row Row, m *Mapping, refs *References, strict bool) ([]Record, []string) {
	prNumber, ok := row.pick(m, "pr_number")
	if !ok {
		return nil, []string{ErrMissingPRNumber.Error()}
	}

	var rowErrs []string

	deptVal := row.pickString(m, "department")
	dirVal := row.pickString(m, "directorate")
	deptID := refs.Department(deptVal, dirVal)
	if strict && deptID == nil && (deptVal != "" || dirVal != "") {
		rowErrs = append(rowErrs, fmt.Sprintf("unknown department %q", deptVal))
	}

	accNo := row.pickString(m, "account_no")
	accName := row.pickString(m, "account_name")
	accountID := refs.Account(accNo, accName)
	if strict && accountID == nil && (accNo != "" || accName != "") {
		rowErrs = append(rowErrs, fmt.Sprintf("unknown account %q", accNo+accName))
	}

	caseVal := row.pickString(m, "status_name")
	statusID := refs.Status(caseVal)
	if strict && statusID == nil && caseVal != "" {
		rowErrs = append(rowErrs, fmt.Sprintf("unknown status %q", caseVal))
	}

	if len(rowErrs) > 0 {
		return nil, rowErrs
	}

	var unitCost *float64
	if v, ok := row.value(m.UnitCost); ok {
		unitCost = ToFloat(v)
	}

	var records []Record
	for _, year := range m.Years {
		yc := m.PerYear[year]

		budgetVal, hasBudget := row.value(yc.Budget)
		unitsVal, hasUnits := row.value(yc.Units)
		poAmtVal, hasPOAmt := row.value(yc.POAmount)
		poNoVal, hasPONo := row.value(yc.PONumber)
		approvedVal, hasApproved := row.value(yc.ApprovedBudget)

		if !hasBudget && !hasUnits && !hasPOAmt && !hasPONo && !hasApproved {
			continue
		}

		amount := ToFloat(budgetVal)
		if amount == nil && hasUnits && unitCost != nil {
			if units := ToFloat(unitsVal); units != nil {
				v := *units * *unitCost
				amount = &v
			}
		}

		var approvedBudget *float64
		var budgetYear *int
		if hasApproved {
			approvedBudget = ToFloat(approvedVal)
			if approvedBudget != nil {
				y := year
				budgetYear = &y
			}
		}
		approved := 0
		if approvedBudget != nil {
			approved = 1
		}

		rec := Record{
			PRNumber:           prNumber,
			Year:               year,
			RefDepartment:      deptID,
			RefAccount:         accountID,
			RefStatus:          statusID,
			ExpenseType:        row.pickString(m, "expense_type"),
			CCode:              row.pickString(m, "c_code"),
			CostCenter:         row.pickString(m, "cost_center"),
			LineBudget:         row.pickString(m, "line_budget"),
			Vendor:             row.pickString(m, "vendor"),
			SubCategory:        row.pickString(m, "sub_category"),
			IFRS16:             row.pickString(m, "ifrs_16"),
			Email:              row.pickString(m, "email"),
			Mobile:             row.pickString(m, "mobile"),
			TypeOfCost:         row.pickString(m, "type_of_cost"),
			TypeOfAMC:          row.pickString(m, "type_of_amc"),
			Remarks:            row.pickString(m, "remarks"),
			CVDStatus:          row.pickString(m, "cvd_status"),
			RiskComment:        row.pickString(m, "risk_comment"),
			ProcurementComment: row.pickString(m, "procurement_comment"),
			Other:              row.pickString(m, "other"),
			StartDate:          ToDate(row.pickString(m, "start_date")),
			EndDate:            ToDate(row.pickString(m, "end_date")),
			ApprovalAmount:     amount,
			ApprovedBudget:     approvedBudget,
			BudgetYear:         budgetYear,
			Approved:           approved,
			QuotationReceived:  ToBool(row.pickString(m, "quotation_received"), 0),
		}

		if hasPONo {
			v := poNoVal
			rec.PONumber = &v
		}
		if hasPOAmt {
			rec.POAmount = ToFloat(poAmtVal)
		}

		records = append(records, rec)
	}

	return records, nil
}
