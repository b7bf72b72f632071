package importer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Logical fields and their accepted header spellings, first match wins.
// Spellings are matched after header normalization (trimmed, lowercased,
// whitespace collapsed). "procueremnt comment" is how the source sheets
// actually spell it.
var aliases = map[string][]string{
	"pr_number":   {"pr number", "pr_number", "pr no", "pr"},
	"directorate": {"directorate", "dir", "directorate name"},
	"department":  {"department", "dept", "domain"},

	"account_no":   {"account no", "account number", "gl code", "gl#", "acc no", "acc#", "gl"},
	"account_name": {"account", "account name", "gl name", "name_en", "account description"},

	"expense_type": {"expense type", "expense", "type of expense"},
	"c_code":       {"c code", "c_code", "c-code", "ccode"},
	"cost_center":  {"cost center", "cost_center", "costcentre"},
	"sub_category": {"sub-category", "sub category", "subcategory", "sub_category"},

	"risk_comment":        {"risk", "risk comment", "risk_comment"},
	"procurement_comment": {"procueremnt comment", "procurement comment", "procurement_comment"},
	"other":               {"other"},

	"line_budget": {"line budget", "line_budget"},
	"vendor":      {"vendor", "vendor name"},
	"ifrs_16":     {"ifrs 16", "ifrs_16"},
	"email":       {"email", "contact email"},
	"mobile":      {"mobile", "phone", "contact mobile"},

	"start_date": {"start", "start date", "start_date", "contract start date", "contract start", "valid from", "from date", "from"},
	"end_date":   {"end", "end date", "end_date", "contract end date", "contract end", "expiry date", "expiration date", "valid to", "to date", "to"},

	"type_of_cost":       {"type of cost", "type_of_cost"},
	"type_of_amc":        {"type of amc", "type_of_amc"},
	"remarks":            {"remarks", "notes", "comment"},
	"cvd_status":         {"cvd status", "cvd_status"},
	"quotation_received": {"quotation received", "quotation_received", "quote received"},

	"unit_cost": {"unit cost", "unit price"},

	// "Case" on the sheet maps to status_master.name_en with category "case".
	"status_name": {"case", "status", "case status"},
}

var (
	yearToken = regexp.MustCompile(`\b(20[0-9]{2})\b`)
	spaceRun  = regexp.MustCompile(`\s+`)
)

// NormalizeHeader trims, lowercases and collapses internal whitespace.
func NormalizeHeader(h string) string {
	return spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), " ")
}

// YearColumns holds the resolved input columns for one detected fiscal year.
// An empty string means the column is absent from the sheet.
type YearColumns struct {
	Budget         string
	Units          string
	POAmount       string
	PONumber       string
	ApprovedBudget string
}

// Mapping is the result of resolving one header row. It is computed once per
// import and read-only afterwards.
type Mapping struct {
	Headers []string
	Years   []int
	PerYear map[int]YearColumns
	// UnitCost is the global unit-cost column, shared across years.
	UnitCost string

	static map[string]string
}

// Column returns the input column resolved for a logical field, or false when
// no header matched any of its aliases.
func (m *Mapping) Column(field string) (string, bool) {
	col, ok := m.static[field]
	return col, ok
}

// Resolve maps a raw header row onto the logical fields. Headers that match
// nothing are ignored; fields with no matching header resolve to absent.
func Resolve(rawHeaders []string) *Mapping {
	headers := make([]string, 0, len(rawHeaders))
	present := make(map[string]bool, len(rawHeaders))
	for _, h := range rawHeaders {
		n := NormalizeHeader(h)
		headers = append(headers, n)
		present[n] = true
	}

	m := &Mapping{
		Headers: headers,
		PerYear: make(map[int]YearColumns),
		static:  make(map[string]string),
	}

	for field, names := range aliases {
		for _, name := range names {
			if present[name] {
				m.static[field] = name
				break
			}
		}
	}

	seen := make(map[int]bool)
	for _, h := range headers {
		for _, tok := range yearToken.FindAllString(h, -1) {
			y, err := strconv.Atoi(tok)
			if err != nil || seen[y] {
				continue
			}
			seen[y] = true
			m.Years = append(m.Years, y)
		}
	}
	sort.Ints(m.Years)

	m.UnitCost = findColumn(headers, []string{`^unit cost$`, `^unit price$`})

	for _, y := range m.Years {
		m.PerYear[y] = YearColumns{
			Budget: findColumn(headers, []string{
				fmt.Sprintf(`^%d\s*budget(\s*\(.*\))?$`, y),
				fmt.Sprintf(`^budget\s*approval\s*%d(\s*\(.*\))?$`, y),
				fmt.Sprintf(`^%d.*budget(\s*\(.*\))?$`, y),
			}),
			Units: findColumn(headers, []string{
				fmt.Sprintf(`^%d\s*units$`, y),
			}),
			POAmount: findColumn(headers, []string{
				fmt.Sprintf(`^%d\s*po.*\(omr\)`, y),
				fmt.Sprintf(`^%d\s*po\s*/\s*pr\(omr\)`, y),
				fmt.Sprintf(`^%d.*po.*\(omr\)`, y),
			}),
			PONumber: findColumn(headers, []string{
				fmt.Sprintf(`^%d\s*po#?$`, y),
				fmt.Sprintf(`^%d\s*po number$`, y),
				fmt.Sprintf(`^%d.*po#`, y),
			}),
			ApprovedBudget: findColumn(headers, []string{
				fmt.Sprintf(`^approved\s*budget\s*%d(\s*\(.*\))?$`, y),
				fmt.Sprintf(`^%d\s*approved\s*budget(\s*\(.*\))?$`, y),
				fmt.Sprintf(`^approval\s*budget\s*%d(\s*\(.*\))?$`, y),
				fmt.Sprintf(`^%d\s*approval\s*budget(\s*\(.*\))?$`, y),
			}),
		}
	}

	return m
}

// findColumn returns the first header matching any of the patterns, trying
// patterns in order so more specific spellings win.
func findColumn(headers []string, patterns []string) string {
	for _, p := range patterns {
		re := regexp.MustCompile(p)
		for _, h := range headers {
			if re.MatchString(h) {
				return h
			}
		}
	}
	return ""
}
