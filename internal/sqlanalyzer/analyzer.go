// Package sqlanalyzer implements the regex-based SQL pattern extractor
// (spec.md §4.J): a deliberate, specified design choice over a real SQL
// parser, since the goal is pattern telemetry on hand-written BI queries.
// The only departure from a flat regex is the balanced-paren scanner used
// for CTE bodies and CASE/subquery spans, which a single regular
// expression cannot express.
package sqlanalyzer

import (
	"regexp"
	"strings"
)

// TableRef is one referenced table with its alias and clause role.
type TableRef struct {
	Name  string `yaml:"name" json:"name"`
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`
	Role  string `yaml:"role" json:"role"` // "from" or "join"
}

// JoinClause is one JOIN with its ON predicate split into conjuncts.
type JoinClause struct {
	Type  string   `yaml:"type" json:"type"`
	Table string   `yaml:"table" json:"table"`
	Alias string   `yaml:"alias,omitempty" json:"alias,omitempty"`
	On    []string `yaml:"on" json:"on"`
}

// CTE is one WITH-clause common table expression.
type CTE struct {
	Name string     `yaml:"name" json:"name"`
	Body string      `yaml:"-" json:"-"`
	Tables []TableRef `yaml:"tables" json:"tables"`
}

// Aggregation is one aggregate function call.
type Aggregation struct {
	Function string `yaml:"function" json:"function"`
	Distinct bool   `yaml:"distinct" json:"distinct"`
	Argument string `yaml:"argument" json:"argument"`
}

// DateFilterMatch is one recognized date-filter pattern occurrence.
type DateFilterMatch struct {
	Column     string `yaml:"column" json:"column"`
	Pattern    string `yaml:"pattern" json:"pattern"`
	Source     string `yaml:"source" json:"source"`
	HasTZ      bool   `yaml:"has_timezone" json:"has_timezone"`
}

// TimezoneConversion is one `column + interval` timezone-shift expression.
type TimezoneConversion struct {
	Column   string `yaml:"column" json:"column"`
	Interval string `yaml:"interval" json:"interval"`
	Bucket   string `yaml:"bucket" json:"bucket"`
}

// ExclusionFilter is one NOT IN / != / NOT LIKE exclusion.
type ExclusionFilter struct {
	Kind   string   `yaml:"kind" json:"kind"`
	Column string   `yaml:"column" json:"column"`
	Values []string `yaml:"values" json:"values"`
}

// CaseBlock is one CASE ... END expression.
type CaseBlock struct {
	Whens []string `yaml:"whens" json:"whens"`
	Else  string   `yaml:"else,omitempty" json:"else,omitempty"`
}

// WindowFunction is one OVER(...) window function call.
type WindowFunction struct {
	Function  string `yaml:"function" json:"function"`
	Partition string `yaml:"partition,omitempty" json:"partition,omitempty"`
	Order     string `yaml:"order,omitempty" json:"order,omitempty"`
}

// Analysis is the full structured output of AnalyzeQuery.
type Analysis struct {
	Tables               []TableRef            `yaml:"tables" json:"tables"`
	Joins                []JoinClause           `yaml:"joins" json:"joins"`
	CTEs                 []CTE                  `yaml:"ctes" json:"ctes"`
	Aggregations         []Aggregation          `yaml:"aggregations" json:"aggregations"`
	DateFilters          []DateFilterMatch      `yaml:"date_filters" json:"date_filters"`
	TimezoneConversions  []TimezoneConversion   `yaml:"timezone_conversions" json:"timezone_conversions"`
	DayPartFilters       []string               `yaml:"day_part_filters" json:"day_part_filters"`
	Exclusions           []ExclusionFilter      `yaml:"exclusions" json:"exclusions"`
	CaseBlocks           []CaseBlock            `yaml:"case_blocks" json:"case_blocks"`
	StatusConditions     []string               `yaml:"status_conditions" json:"status_conditions"`
	HasUnion             bool                   `yaml:"has_union" json:"has_union"`
	WindowFunctions      []WindowFunction       `yaml:"window_functions" json:"window_functions"`
	JSONBOps             []string               `yaml:"jsonb_ops" json:"jsonb_ops"`
	DistinctCounts       int                    `yaml:"distinct_counts" json:"distinct_counts"`
	PositionalParams     int                    `yaml:"positional_params" json:"positional_params"`
	Structure            string                `yaml:"structure" json:"structure"`
}

var sqlKeywords = map[string]bool{
	"where": true, "group": true, "order": true, "by": true, "limit": true,
	"having": true, "select": true, "as": true, "on": true, "and": true,
	"or": true, "union": true, "all": true, "set": true, "values": true,
}

var (
	fromRe  = regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][\w.]*)\s*(?:AS\s+)?([a-zA-Z_]\w*)?`)
	joinRe  = regexp.MustCompile(`(?i)\b(LEFT|RIGHT|INNER|CROSS|FULL)?\s*JOIN\s+([a-zA-Z_][\w.]*)\s*(?:AS\s+)?([a-zA-Z_]\w*)?\s+ON\s+(.*?)(?:\bLEFT\b|\bRIGHT\b|\bINNER\b|\bCROSS\b|\bFULL\b|\bJOIN\b|\bWHERE\b|\bGROUP\b|\bORDER\b|\bLIMIT\b|\bUNION\b|\bHAVING\b|\)|$)`)
	withRe  = regexp.MustCompile(`(?i)\bWITH\b`)
	cteHeadRe = regexp.MustCompile(`(?i)([a-zA-Z_]\w*)\s+AS\s*\(`)
	aggRe   = regexp.MustCompile(`(?i)\b(COUNT|SUM|AVG|MIN|MAX)\s*\(\s*(DISTINCT\s+)?([^)]*)\)`)
	mtdRe   = regexp.MustCompile(`(?i)([a-zA-Z_][\w.]*)\s*(?:>=|>)\s*date_trunc\(\s*'month'\s*,\s*CURRENT_DATE\s*\)`)
	trailingRe = regexp.MustCompile(`(?i)date_trunc\(\s*'month'\s*,\s*CURRENT_DATE\s*\)\s*-\s*interval\s*'(\d+)\s*months?'`)
	fixedStartRe = regexp.MustCompile(`(?i)([a-zA-Z_][\w.]*)\s*(?:>=|>)\s*'(\d{4}-\d{2}-\d{2})'`)
	priorYearRe = regexp.MustCompile(`(?i)CURRENT_DATE\s*-\s*interval\s*'1\s*year'`)
	tzRe    = regexp.MustCompile(`(?i)([a-zA-Z_][\w.]*)\s*\+\s*interval\s*'([^']*)'`)
	notInRe = regexp.MustCompile(`(?i)([a-zA-Z_][\w.]*)\s+NOT\s+IN\s*\(([^)]*)\)`)
	neRe    = regexp.MustCompile(`(?i)([a-zA-Z_][\w.]*)\s*!=\s*'([^']*)'`)
	notLikeRe = regexp.MustCompile(`(?i)([a-zA-Z_][\w.]*)\s+NOT\s+LIKE\s*'([^']*)'`)
	statusRe = regexp.MustCompile(`(?i)\bstatus\s*(?:=|IN|NOT\s+IN)\s*[^\s)]+`)
	windowRe = regexp.MustCompile(`(?i)([a-zA-Z_]\w*)\s*\([^)]*\)\s*OVER\s*\(\s*(?:PARTITION\s+BY\s+([^)]*?))?\s*(?:ORDER\s+BY\s+([^)]*?))?\s*\)`)
	jsonbRe = regexp.MustCompile(`(?i)\S+\s*(->>?|#>>?|@>|\?)\s*\S+`)
	distinctCountRe = regexp.MustCompile(`(?i)\bCOUNT\s*\(\s*DISTINCT\b`)
	positionalRe = regexp.MustCompile(`\$\d+`)
	unionRe = regexp.MustCompile(`(?i)\bUNION\b`)
)

// AnalyzeQuery scans sql and produces its structural analysis.
func AnalyzeQuery(sql string) *Analysis {
	a := &Analysis{}

	a.Tables = extractTables(sql)
	a.Joins = extractJoins(sql)
	a.CTEs = extractCTEs(sql)
	a.Aggregations = extractAggregations(sql)
	a.DateFilters = extractDateFilters(sql)
	a.TimezoneConversions = extractTimezoneConversions(sql)
	a.DayPartFilters = extractDayPartFilters(sql)
	a.Exclusions = extractExclusions(sql)
	a.CaseBlocks = extractCaseBlocks(sql)
	a.StatusConditions = statusRe.FindAllString(sql, -1)
	a.HasUnion = unionRe.MatchString(sql)
	a.WindowFunctions = extractWindowFunctions(sql)
	a.JSONBOps = jsonbRe.FindAllString(sql, -1)
	a.DistinctCounts = len(distinctCountRe.FindAllString(sql, -1))
	a.PositionalParams = len(positionalRe.FindAllString(sql, -1))
	a.Structure = classifyStructure(a)

	return a
}

func isKeyword(word string) bool {
	return sqlKeywords[strings.ToLower(word)]
}

func extractTables(sql string) []TableRef {
	var tables []TableRef
	for _, m := range fromRe.FindAllStringSubmatch(sql, -1) {
		name := m[1]
		alias := m[2]
		if isKeyword(name) {
			continue
		}
		if isKeyword(alias) {
			alias = ""
		}
		tables = append(tables, TableRef{Name: name, Alias: alias, Role: "from"})
	}
	for _, m := range joinRe.FindAllStringSubmatch(sql, -1) {
		name := m[2]
		alias := m[3]
		if isKeyword(name) {
			continue
		}
		if isKeyword(alias) {
			alias = ""
		}
		tables = append(tables, TableRef{Name: name, Alias: alias, Role: "join"})
	}
	return tables
}

func extractJoins(sql string) []JoinClause {
	var joins []JoinClause
	for _, m := range joinRe.FindAllStringSubmatch(sql, -1) {
		joinType := strings.ToUpper(strings.TrimSpace(m[1]))
		if joinType == "" {
			joinType = "INNER"
		}
		on := splitOnAnd(m[4])
		joins = append(joins, JoinClause{Type: joinType, Table: m[2], Alias: m[3], On: on})
	}
	return joins
}

func splitOnAnd(clause string) []string {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return nil
	}
	parts := regexp.MustCompile(`(?i)\s+AND\s+`).Split(clause, -1)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// extractCTEs finds WITH once, then iterates "name AS (" occurrences,
// reading each body via a balanced-paren scan. This is the one place a
// flat regex cannot do the job: nested parens inside a CTE body would
// terminate a naive `\((.*?)\)` match too early.
func extractCTEs(sql string) []CTE {
	loc := withRe.FindStringIndex(sql)
	if loc == nil {
		return nil
	}
	rest := sql[loc[1]:]

	var ctes []CTE
	for _, m := range cteHeadRe.FindAllStringSubmatchIndex(rest, -1) {
		name := rest[m[2]:m[3]]
		openParen := m[1] - 1
		body, ok := balancedParenBody(rest, openParen)
		if !ok {
			continue
		}
		ctes = append(ctes, CTE{Name: name, Body: body, Tables: extractTables(body)})
	}
	return ctes
}

// balancedParenBody returns the contents between the '(' at openIdx and its
// matching ')', scanning for balance so nested parens don't truncate the
// body early.
func balancedParenBody(s string, openIdx int) (string, bool) {
	if openIdx < 0 || openIdx >= len(s) || s[openIdx] != '(' {
		return "", false
	}
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[openIdx+1 : i], true
			}
		}
	}
	return "", false
}

func extractAggregations(sql string) []Aggregation {
	var aggs []Aggregation
	for _, m := range aggRe.FindAllStringSubmatch(sql, -1) {
		aggs = append(aggs, Aggregation{
			Function: strings.ToUpper(m[1]),
			Distinct: strings.TrimSpace(m[2]) != "",
			Argument: strings.TrimSpace(m[3]),
		})
	}
	return aggs
}

func extractDateFilters(sql string) []DateFilterMatch {
	var filters []DateFilterMatch
	hasTZ := strings.Contains(strings.ToUpper(sql), "AT TIME ZONE")

	for _, m := range mtdRe.FindAllStringSubmatch(sql, -1) {
		filters = append(filters, DateFilterMatch{Column: m[1], Pattern: "mtd_current", Source: m[0], HasTZ: hasTZ})
	}
	for _, m := range trailingRe.FindAllStringSubmatch(sql, -1) {
		filters = append(filters, DateFilterMatch{Column: "", Pattern: "trailing_" + m[1] + "_months", Source: m[0], HasTZ: hasTZ})
	}
	for _, m := range fixedStartRe.FindAllStringSubmatch(sql, -1) {
		filters = append(filters, DateFilterMatch{Column: m[1], Pattern: "fixed_start", Source: m[0], HasTZ: hasTZ})
	}
	if m := priorYearRe.FindString(sql); m != "" {
		filters = append(filters, DateFilterMatch{Column: "", Pattern: "prior_year_mtd", Source: m, HasTZ: hasTZ})
	}
	return filters
}

func extractTimezoneConversions(sql string) []TimezoneConversion {
	var conversions []TimezoneConversion
	for _, m := range tzRe.FindAllStringSubmatch(sql, -1) {
		conversions = append(conversions, TimezoneConversion{
			Column:   m[1],
			Interval: m[2],
			Bucket:   classifyIntervalBucket(m[2]),
		})
	}
	return conversions
}

func classifyIntervalBucket(interval string) string {
	lower := strings.ToLower(interval)
	switch {
	case strings.Contains(lower, "330"):
		return "330_minutes"
	case strings.Contains(lower, "5") && strings.Contains(lower, "30"):
		return "5h30m"
	default:
		return "other"
	}
}

var dayPartRe = regexp.MustCompile(`(?i)EXTRACT\s*\(\s*HOUR\s+FROM\s+[a-zA-Z_][\w.]*\s*\)\s*(?:>=|<=|<|>|=)\s*\d+`)

func extractDayPartFilters(sql string) []string {
	return dayPartRe.FindAllString(sql, -1)
}

func extractExclusions(sql string) []ExclusionFilter {
	var exclusions []ExclusionFilter
	for _, m := range notInRe.FindAllStringSubmatch(sql, -1) {
		exclusions = append(exclusions, ExclusionFilter{Kind: "not_in", Column: m[1], Values: splitQuotedList(m[2])})
	}
	for _, m := range neRe.FindAllStringSubmatch(sql, -1) {
		exclusions = append(exclusions, ExclusionFilter{Kind: "not_equal", Column: m[1], Values: []string{m[2]}})
	}
	for _, m := range notLikeRe.FindAllStringSubmatch(sql, -1) {
		exclusions = append(exclusions, ExclusionFilter{Kind: "not_like", Column: m[1], Values: []string{m[2]}})
	}
	return exclusions
}

var quotedValueRe = regexp.MustCompile(`'([^']*)'`)

func splitQuotedList(list string) []string {
	var values []string
	for _, m := range quotedValueRe.FindAllStringSubmatch(list, -1) {
		values = append(values, m[1])
	}
	return values
}

var (
	caseRe = regexp.MustCompile(`(?i)CASE\b`)
	whenRe = regexp.MustCompile(`(?i)WHEN\s+(.*?)\s+THEN\s+(.*?)(?:\bWHEN\b|\bELSE\b|\bEND\b)`)
	elseRe = regexp.MustCompile(`(?i)ELSE\s+(.*?)\s+END`)
)

func extractCaseBlocks(sql string) []CaseBlock {
	var blocks []CaseBlock
	for _, loc := range caseRe.FindAllStringIndex(sql, -1) {
		endLoc := strings.Index(strings.ToUpper(sql[loc[1]:]), "END")
		if endLoc < 0 {
			continue
		}
		block := sql[loc[1] : loc[1]+endLoc]

		var whens []string
		for _, wm := range whenRe.FindAllStringSubmatch(block+" END", -1) {
			whens = append(whens, strings.TrimSpace(wm[1])+" => "+strings.TrimSpace(wm[2]))
		}
		elseValue := ""
		if em := elseRe.FindStringSubmatch(block + " END"); em != nil {
			elseValue = strings.TrimSpace(em[1])
		}
		if len(whens) > 0 {
			blocks = append(blocks, CaseBlock{Whens: whens, Else: elseValue})
		}
	}
	return blocks
}

func extractWindowFunctions(sql string) []WindowFunction {
	var windows []WindowFunction
	for _, m := range windowRe.FindAllStringSubmatch(sql, -1) {
		windows = append(windows, WindowFunction{
			Function:  strings.ToUpper(m[1]),
			Partition: strings.TrimSpace(m[2]),
			Order:     strings.TrimSpace(m[3]),
		})
	}
	return windows
}

// classifyStructure assigns the final structural tag by priority:
// cte_union > cte > union > multi_join > single_table.
func classifyStructure(a *Analysis) string {
	switch {
	case len(a.CTEs) > 0 && a.HasUnion:
		return "cte_union"
	case len(a.CTEs) > 0:
		return "cte"
	case a.HasUnion:
		return "union"
	case len(a.Joins) > 0:
		return "multi_join"
	default:
		return "single_table"
	}
}
