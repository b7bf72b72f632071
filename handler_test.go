package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"opex/models"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger = zap.NewNop()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	tdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, tdb.AutoMigrate(
		&models.Contract{},
		&models.PurchaseOrder{},
		&models.ContractBudget{},
		&models.YearlyBudget{},
		&models.Department{},
		&models.Account{},
		&models.StatusMaster{},
		&models.Attachment{},
	))
	db = tdb
}

func testRouter() *gin.Engine {
	r := gin.New()
	r.GET("/contracts", getContracts)
	r.POST("/contracts", createContract)
	r.GET("/contracts/:id", getContractDetail)
	r.PUT("/contracts/:id", updateContract)
	r.DELETE("/contracts/:id", deleteContract)
	r.GET("/export/contracts", exportContracts)
	r.POST("/departments", createDepartment)
	r.POST("/accounts", createAccount)
	r.POST("/yearlyBudget", createYearlyBudget)
	r.GET("/report/kpi", getKPIReport)
	r.GET("/report/expiring", getExpiringContracts)
	r.GET("/report/spending", getSpendingReport)
	r.GET("/report/consumption", getConsumptionReport)
	return r
}

func perform(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorList(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	var body struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Errors
}

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

func validContractBody() map[string]interface{} {
	return map[string]interface{}{
		"prNumber":       "PR-100",
		"year":           2024,
		"approvalAmount": 5000.0,
		"vendor":         "Acme Telecom",
		"lineBudget":     "LB-1",
		"approved":       1,
		"poNumber":       "PO-1",
		"poAmount":       5000.0,
		"units":          2.0,
		"unitCost":       2500.0,
	}
}

func TestCreateContractValidation(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	w := perform(r, http.MethodPost, "/contracts", map[string]interface{}{
		"prNumber":       "",
		"approvalAmount": 0,
		"vendor":         "",
		"lineBudget":     "",
		"email":          "not-an-email",
		"mobile":         "12a45",
		"startDate":      "2024-05-01",
		"endDate":        "2024-01-01",
		"approved":       1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	errs := errorList(t, w)
	assert.Contains(t, errs, "PR Number is required.")
	assert.Contains(t, errs, "Approval Amount must be greater than 0.")
	assert.Contains(t, errs, "Vendor name is required.")
	assert.NotContains(t, errs, "Line Budget is required.")
	assert.Contains(t, errs, "Vendor email format is invalid.")
	assert.Contains(t, errs, "Vendor mobile must contain digits only.")
	assert.Contains(t, errs, "End Date must be later than Start Date.")
	assert.Contains(t, errs, "PO Number is required for an approved record.")
	assert.Contains(t, errs, "PO Amount must be greater than 0 for an approved record.")
}

func TestCreateContractAndDuplicatePR(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	w := perform(r, http.MethodPost, "/contracts", validContractBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var contract models.Contract
	require.NoError(t, db.Where("pr_number = ?", "PR-100").First(&contract).Error)
	assert.Equal(t, 1, contract.Approved)
	assert.Equal(t, "admin", contract.CreatedBy)
	assert.Equal(t, 1, contract.Version)

	var budgets []models.ContractBudget
	require.NoError(t, db.Where("ref_amc_contract = ?", contract.ID).Find(&budgets).Error)
	require.Len(t, budgets, 1)
	require.NotNil(t, budgets[0].Units)
	assert.Equal(t, 2.0, *budgets[0].Units)

	var pos []models.PurchaseOrder
	require.NoError(t, db.Where("ref_amc_contract = ?", contract.ID).Find(&pos).Error)
	require.Len(t, pos, 1)
	require.NotNil(t, pos[0].PRAmount)
	assert.Equal(t, 5000.0, *pos[0].PRAmount)

	w = perform(r, http.MethodPost, "/contracts", validContractBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorList(t, w),
		"This PR Number already exists. Please enter a unique PR Number.")
}

func TestGetContractsLatestPOAndAttachmentCount(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	w := perform(r, http.MethodPost, "/contracts", validContractBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var contract models.Contract
	require.NoError(t, db.Where("pr_number = ?", "PR-100").First(&contract).Error)

	// a later PO supersedes the one written on create
	require.NoError(t, db.Create(&models.PurchaseOrder{
		PRNumber: contract.PRNumber,
		Year:     contract.Year,
		PONumber: str("PO-2"),
		POAmount: f64(7000),
	}).Error)

	require.NoError(t, db.Create(&models.Attachment{
		Table:    "amc_contracts",
		RefID:    contract.ID,
		Filename: "contract.pdf",
		Path:     "attachments/amc_1/contract.pdf",
	}).Error)

	w = perform(r, http.MethodGet, "/contracts?pr=PR-100", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data  []contractRow `json:"data"`
		Total int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, int64(1), body.Total)

	row := body.Data[0]
	require.NotNil(t, row.PONumber)
	assert.Equal(t, "PO-2", *row.PONumber)
	require.NotNil(t, row.POAmount)
	assert.Equal(t, 7000.0, *row.POAmount)
	assert.Equal(t, 1, row.AttachmentCount)
}

func TestGetContractsFilters(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	body := validContractBody()
	w := perform(r, http.MethodPost, "/contracts", body)
	require.Equal(t, http.StatusCreated, w.Code)

	body["prNumber"] = "PR-200"
	body["vendor"] = "Other Vendor"
	w = perform(r, http.MethodPost, "/contracts", body)
	require.Equal(t, http.StatusCreated, w.Code)

	// sqlite LIKE is case insensitive for ASCII, so this matches "Acme Telecom"
	w = perform(r, http.MethodGet, "/contracts?vendor=acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []contractRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "PR-100", resp.Data[0].PRNumber)

	w = perform(r, http.MethodGet, "/contracts?year=2024", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestUpdateContractPOUpsertAndVersion(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	w := perform(r, http.MethodPost, "/contracts", validContractBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var contract models.Contract
	require.NoError(t, db.Where("pr_number = ?", "PR-100").First(&contract).Error)

	update := validContractBody()
	update["vendor"] = "Acme Rebranded"
	update["poAmount"] = 6000.0
	w = perform(r, http.MethodPut, fmt.Sprintf("/contracts/%d", contract.ID), update)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, db.Where("id = ?", contract.ID).First(&contract).Error)
	assert.Equal(t, "Acme Rebranded", contract.Vendor)
	assert.Equal(t, 2, contract.Version)

	// the manual path updates the existing PO instead of appending
	var pos []models.PurchaseOrder
	require.NoError(t, db.Where("ref_amc_contract = ?", contract.ID).Find(&pos).Error)
	require.Len(t, pos, 1)
	require.NotNil(t, pos[0].POAmount)
	assert.Equal(t, 6000.0, *pos[0].POAmount)
	assert.Equal(t, 2, pos[0].Version)
}

func TestUpdateContractWithMultiYearPR(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	// one record per year for the same PR, the shape imports produce
	first := seedContract(t, models.Contract{
		PRNumber: "PR-300", Year: 2024,
		ApprovalAmount: f64(5000), Vendor: "Acme Telecom", Approved: 0,
	})
	seedContract(t, models.Contract{
		PRNumber: "PR-300", Year: 2025,
		ApprovalAmount: f64(6000), Vendor: "Acme Telecom", Approved: 0,
	})

	update := map[string]interface{}{
		"prNumber":       "PR-300",
		"year":           2024,
		"approvalAmount": 5500.0,
		"vendor":         "Acme Telecom",
	}
	w := perform(r, http.MethodPut, fmt.Sprintf("/contracts/%d", first.ID), update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, db.Where("id = ?", first.ID).First(&first).Error)
	require.NotNil(t, first.ApprovalAmount)
	assert.Equal(t, 5500.0, *first.ApprovalAmount)

	// moving the record onto the sibling year is still a duplicate
	update["year"] = 2025
	w = perform(r, http.MethodPut, fmt.Sprintf("/contracts/%d", first.ID), update)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorList(t, w),
		"This PR Number already exists. Please enter a unique PR Number.")
}

func TestContractListAndExportCarryOther(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	body := validContractBody()
	body["other"] = "side letter pending"
	w := perform(r, http.MethodPost, "/contracts", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = perform(r, http.MethodGet, "/contracts?pr=PR-100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []contractRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "side letter pending", resp.Data[0].Other)

	w = perform(r, http.MethodGet, "/export/contracts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Other")
	assert.Contains(t, lines[1], "side letter pending")
}

func TestDeleteContractKeepsPOs(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	w := perform(r, http.MethodPost, "/contracts", validContractBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var contract models.Contract
	require.NoError(t, db.Where("pr_number = ?", "PR-100").First(&contract).Error)

	w = perform(r, http.MethodDelete, fmt.Sprintf("/contracts/%d", contract.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.Contract{}).Count(&count)
	assert.Equal(t, int64(0), count)

	db.Model(&models.PurchaseOrder{}).Count(&count)
	assert.Equal(t, int64(1), count)

	w = perform(r, http.MethodDelete, fmt.Sprintf("/contracts/%d", contract.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateDepartmentUnique(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	w := perform(r, http.MethodPost, "/departments", map[string]string{
		"nameEn": "Core Network", "category": "NW",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var dept models.Department
	require.NoError(t, db.Where("name_en = ?", "Core Network").First(&dept).Error)
	assert.Equal(t, "Service Assurance & Optimization", dept.Directorate)

	w = perform(r, http.MethodPost, "/departments", map[string]string{
		"nameEn": "Core Network", "category": "IT",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/departments", map[string]string{"nameEn": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAccountValidation(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	w := perform(r, http.MethodPost, "/accounts", map[string]string{
		"nameEn": "Maintenance", "account": "64a010",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/accounts", map[string]string{
		"nameEn": "Maintenance", "account": "640010",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = perform(r, http.MethodPost, "/accounts", map[string]string{
		"nameEn": "Maintenance Copy", "account": "640010",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateYearlyBudgetValidation(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	w := perform(r, http.MethodPost, "/yearlyBudget", map[string]interface{}{
		"year": 2024, "value": 50000.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = perform(r, http.MethodPost, "/yearlyBudget", map[string]interface{}{
		"year": 2024, "value": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errs := errorList(t, w)
	assert.Contains(t, errs, "This year already exists.")
	assert.Contains(t, errs, "Amount must be greater than 0.")
}

func TestGetContractDetail(t *testing.T) {
	setupTestDB(t)
	r := testRouter()

	w := perform(r, http.MethodPost, "/contracts", validContractBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var contract models.Contract
	require.NoError(t, db.Where("pr_number = ?", "PR-100").First(&contract).Error)

	w = perform(r, http.MethodGet, fmt.Sprintf("/contracts/%d", contract.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Contract models.Contract         `json:"contract"`
		Budgets  []models.ContractBudget `json:"budgets"`
		POs      []models.PurchaseOrder  `json:"pos"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "PR-100", body.Contract.PRNumber)
	assert.Len(t, body.Budgets, 1)
	assert.Len(t, body.POs, 1)

	w = perform(r, http.MethodGet, "/contracts/99999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func seedContract(t *testing.T, c models.Contract) models.Contract {
	t.Helper()
	now := time.Now()
	if c.Created.IsZero() {
		c.Audit = models.Audit{
			Created: now, CreatedBy: "admin",
			Modified: now, ModifiedBy: "admin",
			Version: 1,
		}
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}
