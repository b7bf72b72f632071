package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type kpiReport struct {
	Year         int      `json:"year"`
	Budget       float64  `json:"budget"`
	Consumed     float64  `json:"consumed"`
	Remaining    float64  `json:"remaining"`
	Utilization  *float64 `json:"utilization"`
	ApprovalRate *float64 `json:"approvalRate"`
	POCoverage   *float64 `json:"poCoverage"`
}

// getKPIReport computes the headline figures for one budget year. Budget and
// consumption run on budget_year, approval and PO coverage on the contract's
// operational year. Each ratio is null when its denominator is zero.
func getKPIReport(c *gin.Context) {
	year := time.Now().Year()
	if y, err := strconv.Atoi(c.Query("year")); err == nil {
		year = y
	}

	report := kpiReport{Year: year}

	var budget sql.NullFloat64
	db.Raw(`SELECT value FROM yearly_budget WHERE year = ? ORDER BY id DESC LIMIT 1`, year).
		Scan(&budget)
	if budget.Valid {
		report.Budget = budget.Float64
	}

	db.Raw(`SELECT COALESCE(SUM(approved_budget), 0) FROM amc_contracts WHERE budget_year = ?`, year).
		Scan(&report.Consumed)
	report.Remaining = report.Budget - report.Consumed

	if report.Budget > 0 {
		utilization := report.Consumed / report.Budget * 100
		report.Utilization = &utilization
	}

	var total, approved int64
	db.Raw(`SELECT COUNT(*) FROM amc_contracts WHERE year = ?`, year).Scan(&total)
	db.Raw(`SELECT COUNT(*) FROM amc_contracts WHERE year = ? AND approved = 1`, year).Scan(&approved)
	if total > 0 {
		rate := float64(approved) / float64(total) * 100
		report.ApprovalRate = &rate
	}

	var withPO int64
	db.Raw(`
		SELECT COUNT(DISTINCT c.id)
		FROM amc_contracts c
		JOIN amc_pos p
		  ON p.pr_number = c.pr_number AND p.year = c.year
		WHERE c.year = ? AND c.approved = 1`, year).
		Scan(&withPO)
	if approved > 0 {
		coverage := float64(withPO) / float64(approved) * 100
		report.POCoverage = &coverage
	}

	c.JSON(http.StatusOK, report)
}

type expiringContract struct {
	PRNumber   string `gorm:"column:pr_number" json:"prNumber"`
	Department string `gorm:"column:department" json:"department"`
	Vendor     string `gorm:"column:vendor" json:"vendor"`
	EndDate    string `gorm:"column:end_date" json:"endDate"`
	DaysLeft   int    `gorm:"-" json:"daysLeft"`
}

// getExpiringContracts lists distinct PR numbers whose earliest end date
// falls inside the window, one row per PR.
func getExpiringContracts(c *gin.Context) {
	days := 90
	if d, err := strconv.Atoi(c.Query("days")); err == nil && d > 0 {
		days = d
	}

	today := time.Now()
	horizon := today.AddDate(0, 0, days)

	var rows []expiringContract
	err := db.Raw(`
		WITH per_pr AS (
			SELECT pr_number, MIN(date(end_date)) AS min_end_date
			FROM amc_contracts
			WHERE end_date IS NOT NULL
			  AND date(end_date) >= date(?)
			  AND date(end_date) <= date(?)
			GROUP BY pr_number
		)
		SELECT DISTINCT
			ac.pr_number,
			d.name_en AS department,
			ac.vendor,
			ac.end_date
		FROM per_pr pp
		JOIN amc_contracts ac
		  ON ac.pr_number = pp.pr_number AND date(ac.end_date) = pp.min_end_date
		LEFT JOIN departments d
		  ON d.id = ac.ref_departments
		ORDER BY date(ac.end_date) ASC`,
		today.Format("2006-01-02"), horizon.Format("2006-01-02")).
		Scan(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	loc := today.Location()
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	for i, row := range rows {
		if end, err := time.ParseInLocation("2006-01-02", row.EndDate, loc); err == nil {
			rows[i].DaysLeft = int(end.Sub(midnight).Hours() / 24)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"days": days,
		"data": rows,
	})
}

const spendingJoins = `
	FROM amc_contracts ac
	LEFT JOIN departments d ON d.id = ac.ref_departments
	LEFT JOIN accounts a ON a.id = ac.ref_account
	LEFT JOIN status_master s ON s.id = ac.ref_status`

// spendingFilter turns the query string into a WHERE clause shared by all
// spending aggregations. Absent parameters place no restriction.
func spendingFilter(c *gin.Context) (string, []interface{}) {
	conds := []string{"1 = 1"}
	var args []interface{}

	if years := splitParam(c.Query("years")); len(years) > 0 {
		conds = append(conds, "ac.year IN (?)")
		args = append(args, years)
	}
	switch strings.ToLower(c.Query("approved")) {
	case "yes", "1", "true":
		conds = append(conds, "ac.approved = 1")
	case "no", "0", "false":
		conds = append(conds, "ac.approved = 0")
	}
	if depts := splitParam(c.Query("departments")); len(depts) > 0 {
		conds = append(conds, "d.name_en IN (?)")
		args = append(args, depts)
	}
	if vendors := splitParam(c.Query("vendors")); len(vendors) > 0 {
		conds = append(conds, "ac.vendor IN (?)")
		args = append(args, vendors)
	}
	if accounts := splitParam(c.Query("accounts")); len(accounts) > 0 {
		conds = append(conds, "a.name_en IN (?)")
		args = append(args, accounts)
	}
	if statuses := splitParam(c.Query("statuses")); len(statuses) > 0 {
		conds = append(conds, "s.name_en IN (?)")
		args = append(args, statuses)
	}

	return strings.Join(conds, " AND "), args
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type spendingRow struct {
	Department string  `gorm:"column:department" json:"department"`
	Year       int     `gorm:"column:year" json:"year"`
	Spending   float64 `gorm:"column:spending" json:"spending"`
}

type statusCount struct {
	Status string `gorm:"column:status" json:"status"`
	Count  int64  `gorm:"column:count" json:"count"`
}

type coverageRow struct {
	Department string  `gorm:"column:department" json:"department"`
	Coverage   float64 `gorm:"column:coverage" json:"coverage"`
}

type approvedVsPORow struct {
	Department string  `json:"department"`
	Approved   float64 `json:"approved"`
	PO         float64 `json:"po"`
}

// getSpendingReport aggregates approval amounts per department and year under
// a shared filter, alongside status counts, PO coverage ratios and the
// approved-versus-latest-PO comparison.
func getSpendingReport(c *gin.Context) {
	where, args := spendingFilter(c)

	var spending []spendingRow
	err := db.Raw(fmt.Sprintf(`
		SELECT d.name_en AS department, ac.year AS year,
		       SUM(ac.approval_amount) AS spending
		%s
		WHERE %s
		GROUP BY d.name_en, ac.year
		ORDER BY spending DESC, ac.year`, spendingJoins, where), args...).
		Scan(&spending).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	var statuses []statusCount
	err = db.Raw(fmt.Sprintf(`
		SELECT COALESCE(s.name_en, 'Unknown') AS status, COUNT(*) AS count
		%s
		WHERE %s
		GROUP BY COALESCE(s.name_en, 'Unknown')
		ORDER BY count DESC`, spendingJoins, where), args...).
		Scan(&statuses).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	// Coverage joins POs by pr_number + year: imported POs never carry
	// ref_amc_contract.
	var coverage []coverageRow
	err = db.Raw(fmt.Sprintf(`
		SELECT d.name_en AS department,
		       SUM(CASE WHEN po.pr_number IS NOT NULL THEN 1 ELSE 0 END) * 1.0 / COUNT(*) AS coverage
		%s
		LEFT JOIN (SELECT DISTINCT pr_number, year FROM amc_pos) po
		  ON po.pr_number = ac.pr_number AND po.year = ac.year
		WHERE %s
		GROUP BY d.name_en
		ORDER BY coverage DESC`, spendingJoins, where), args...).
		Scan(&coverage).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	type amountRow struct {
		Department string  `gorm:"column:department"`
		Amount     float64 `gorm:"column:amount"`
	}

	var approvedAmounts []amountRow
	err = db.Raw(fmt.Sprintf(`
		SELECT d.name_en AS department, SUM(ac.approval_amount) AS amount
		%s
		WHERE %s
		GROUP BY d.name_en`, spendingJoins, where), args...).
		Scan(&approvedAmounts).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	var poAmounts []amountRow
	err = db.Raw(fmt.Sprintf(`
		SELECT d.name_en AS department, SUM(lp.po_amount) AS amount
		%s
		JOIN (SELECT ap.* FROM amc_pos ap
		      JOIN (SELECT pr_number, year, MAX(id) AS max_id
		            FROM amc_pos GROUP BY pr_number, year) t
		        ON ap.id = t.max_id) lp
		  ON lp.pr_number = ac.pr_number AND lp.year = ac.year
		WHERE %s
		GROUP BY d.name_en`, spendingJoins, where), args...).
		Scan(&poAmounts).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	merged := map[string]*approvedVsPORow{}
	order := []string{}
	for _, row := range approvedAmounts {
		merged[row.Department] = &approvedVsPORow{Department: row.Department, Approved: row.Amount}
		order = append(order, row.Department)
	}
	for _, row := range poAmounts {
		if m, ok := merged[row.Department]; ok {
			m.PO = row.Amount
		} else {
			merged[row.Department] = &approvedVsPORow{Department: row.Department, PO: row.Amount}
			order = append(order, row.Department)
		}
	}
	approvedVsPO := make([]approvedVsPORow, 0, len(order))
	for _, dept := range order {
		approvedVsPO = append(approvedVsPO, *merged[dept])
	}

	c.JSON(http.StatusOK, gin.H{
		"spendingByDepartment": spending,
		"contractsByStatus":    statuses,
		"poCoverage":           coverage,
		"approvedVsPO":         approvedVsPO,
	})
}

// getConsumptionReport returns the cumulative consumed curve against the
// linear burn of the yearly budget, month by month. A past year covers all
// twelve months, the current year runs up to the current month.
func getConsumptionReport(c *gin.Context) {
	now := time.Now()
	year := now.Year()
	if y, err := strconv.Atoi(c.Query("year")); err == nil {
		year = y
	}

	lastMonth := 12
	if year == now.Year() {
		lastMonth = int(now.Month())
	}

	var rows []struct {
		ApprovedBudget float64   `gorm:"column:approved_budget"`
		Created        time.Time `gorm:"column:created"`
	}
	err := db.Raw(`
		SELECT approved_budget, created
		FROM amc_contracts
		WHERE budget_year = ? AND approved_budget IS NOT NULL`, year).
		Scan(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": err.Error(),
		})
		return
	}

	monthly := make([]float64, lastMonth)
	for _, row := range rows {
		if row.Created.Year() != year {
			continue
		}
		m := int(row.Created.Month())
		if m >= 1 && m <= lastMonth {
			monthly[m-1] += row.ApprovedBudget
		}
	}

	months := make([]int, lastMonth)
	cumulative := make([]float64, lastMonth)
	running := 0.0
	for i := 0; i < lastMonth; i++ {
		months[i] = i + 1
		running += monthly[i]
		cumulative[i] = running
	}

	var budget sql.NullFloat64
	db.Raw(`SELECT value FROM yearly_budget WHERE year = ? ORDER BY id DESC LIMIT 1`, year).
		Scan(&budget)

	burn := make([]float64, lastMonth)
	if budget.Valid && budget.Float64 > 0 {
		perMonth := budget.Float64 / 12.0
		for i := 0; i < lastMonth; i++ {
			burn[i] = perMonth * float64(i+1)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"year":               year,
		"months":             months,
		"cumulativeConsumed": cumulative,
		"budgetBurn":         burn,
	})
}
