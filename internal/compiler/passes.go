package compiler

import (
	"invoice_router/internal/domain"
	"math"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

const (
	weightExplicit   = 0.95
	weightAction     = 0.95
	weightVocabulary = 0.90
	weightAmount     = 0.90
	weightVendor     = 0.80
)

const notificationMessage = "Approval required for invoice"

// pass is one extractor. Passes run in list order over the same text and
// each claims the words it consumed; a pass never reads a claimed range.
type pass struct {
	Name        string
	Description string
	Weight      float64
	Extract     func(d *draft, weight float64)
}

var passes = []pass{
	{
		Name:        "explicit_field",
		Description: "Explicit comparisons such as amount > 5000 or vendor contains 'Acme'",
		Weight:      weightExplicit,
		Extract:     extractExplicitFields,
	},
	{
		Name:        "routing",
		Description: "Route, send or forward ... to <target>, with an optional department qualifier",
		Weight:      weightAction,
		Extract:     extractRouting,
	},
	{
		Name:        "notify",
		Description: "Notify <target>",
		Weight:      weightAction,
		Extract:     extractNotify,
	},
	{
		Name:        "require_approval",
		Description: "Require <approver> approval",
		Weight:      weightAction,
		Extract:     extractRequiredApproval,
	},
	{
		Name:        "auto_approve",
		Description: "Auto-approve or automatically approve",
		Weight:      weightAction,
		Extract:     extractAutoApprove,
	},
	{
		Name:        "strategy",
		Description: "Assignment strategy keywords: round robin, load balance, approval limit",
		Weight:      weightAction,
		Extract:     extractStrategies,
	},
	{
		Name:        "amount",
		Description: "Amount comparisons: over, under, between, at least, at most",
		Weight:      weightAmount,
		Extract:     extractAmounts,
	},
	{
		Name:        "category",
		Description: "Invoice category vocabulary",
		Weight:      weightVocabulary,
		Extract:     extractCategories,
	},
	{
		Name:        "department",
		Description: "Department vocabulary",
		Weight:      weightVocabulary,
		Extract:     extractDepartments,
	},
	{
		Name:        "vendor",
		Description: "Vendor named after from/vendor/supplier",
		Weight:      weightVendor,
		Extract:     extractVendors,
	},
}

var (
	explicitFieldPattern = regexp.MustCompile(
		`\b(amount|department|vendor|category|project)\s*(>=|<=|!=|==|=|>|<|\bequals\b|\bcontains\b)\s*(?:'([^']*)'|"([^"]*)"|([^\s,;]+))`)

	routingPattern   = regexp.MustCompile(`\b(route|send|forward|assign)\b([^.;]*?)\bto\s+`)
	qualifierPattern = regexp.MustCompile(`(?:all\s+)?((?:[a-z]+\s+)?[a-z]+)\s+invoices\b`)
	notifyPattern    = regexp.MustCompile(`\bnotify\s+`)

	requirePattern     = regexp.MustCompile(`\brequires?\s+(?:an?\s+|the\s+)?([a-z][a-z' -]*?)\s+approval\b`)
	requireFromPattern = regexp.MustCompile(`\brequires?\s+approval\s+(?:from|by)\s+`)
	autoApprovePattern = regexp.MustCompile(`\b(?:auto-?approve[ds]?|automatically\s+approve[ds]?)\b`)

	roundRobinPattern   = regexp.MustCompile(`\bround[- ]robin\b(?:\s+(?:within|across|in|among|over|for)\s+(?:the\s+)?([a-z]+)(?:\s+team)?)?`)
	loadBalancePattern  = regexp.MustCompile(`\bload[- ]balanc(?:e|ed|ing)\b(?:\s+(?:within|across|in|among|over|for)\s+(?:the\s+)?([a-z]+)(?:\s+team)?)?`)
	hierarchicalPattern = regexp.MustCompile(`\b(?:hierarchical(?:ly)?|by approval limit|approval limits?)\b`)

	vendorPattern = regexp.MustCompile(`\b(?i:from|vendor|supplier)\s+(?:'([^']+)'|"([^"]+)"|([A-Z][\w&.-]*(?:\s+[A-Z][\w&.-]*)*))`)

	categoryPattern   = vocabularyPattern(categories)
	departmentPattern = vocabularyPattern(departmentSpellings())
)

const amountNumber = `\$?\s?(\d[\d,]*(?:\.\d+)?)\s*(k|thousand)?\b`

var (
	betweenPattern = regexp.MustCompile(`\bbetween\s+` + amountNumber + `\s*and\s+` + amountNumber)

	// Longer phrases come first so "no more than" is not read as "more than".
	amountComparisons = []struct {
		pattern  *regexp.Regexp
		operator domain.Operator
	}{
		{regexp.MustCompile(`\b(?:at most|up to|no more than|not more than)\s+` + amountNumber), domain.OpLessEqual},
		{regexp.MustCompile(`\b(?:at least|no less than|not less than)\s+` + amountNumber), domain.OpGreaterEqual},
		{regexp.MustCompile(`\b(?:over|above|greater than|more than|exceeding|exceeds|in excess of)\s+` + amountNumber), domain.OpGreater},
		{regexp.MustCompile(`\b(?:under|below|less than)\s+` + amountNumber), domain.OpLess},
	}
)

var targetTerminators = []string{
	" for ", " approval", " if ", " when ", " unless ", " with ", " by ", " using ", " once ",
	",", ".", ";", "!", "?", "\n",
}

var actionVerbs = []string{
	"notify", "route", "send", "forward", "assign", "require", "requires",
	"auto-approve", "auto", "automatically", "approve", "then",
}

var approvalStopwords = map[string]bool{
	"no": true, "additional": true, "extra": true, "further": true, "final": true,
	"manual": true, "explicit": true, "human": true, "prior": true,
}

func vocabularyPattern(words []string) *regexp.Regexp {
	sorted := slices.Clone(words)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, w := range sorted {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}

func departmentSpellings() []string {
	spellings := make([]string, 0, len(departmentAliases))
	for k := range departmentAliases {
		spellings = append(spellings, k)
	}
	sort.Strings(spellings)
	return spellings
}

// departmentFromText resolves a department as written, insisting on
// capitals for acronyms.
func departmentFromText(written string) (string, bool) {
	written = strings.TrimSpace(written)
	lower := strings.ToLower(written)
	if acronyms[lower] && written != strings.ToUpper(written) {
		return "", false
	}
	return canonicalDepartment(lower)
}

func extractExplicitFields(d *draft, weight float64) {
	for _, m := range explicitFieldPattern.FindAllStringSubmatchIndex(d.lower, -1) {
		field := d.lower[m[2]:m[3]]
		operator := explicitOperator(d.lower[m[4]:m[5]])

		vs, ve := m[10], m[11]
		switch {
		case m[6] >= 0:
			vs, ve = m[6], m[7]
		case m[8] >= 0:
			vs, ve = m[8], m[9]
		}
		raw := strings.TrimRight(d.text[vs:ve], ".)")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		value := raw
		numeric := operator != domain.OpEqual && operator != domain.OpNotEqual && operator != domain.OpContains
		if field == domain.FieldAmount {
			if operator == domain.OpContains {
				continue
			}
			normalized, ok := normalizeAmount(raw)
			if !ok {
				continue
			}
			value = normalized
		} else {
			if numeric {
				continue
			}
			if field == domain.FieldDepartment {
				if name, ok := canonicalDepartment(raw); ok {
					value = name
				}
			}
		}

		d.condition(domain.Condition{Field: field, Operator: operator, Value: value})
		d.entity(domain.EntityField, d.text[m[0]:m[1]], weight, m[0], m[1])
		d.claim(m[0], m[1])
	}
}

func explicitOperator(op string) domain.Operator {
	switch op {
	case "==", "equals":
		return domain.OpEqual
	default:
		return domain.Operator(op)
	}
}

func extractRouting(d *draft, weight float64) {
	for _, m := range routingPattern.FindAllStringSubmatchIndex(d.lower, -1) {
		if d.isClaimed(m[0], m[1]) {
			continue
		}
		qualifier := d.lower[m[4]:m[5]]
		notification := strings.Contains(qualifier, "notification")

		targets := d.targets(m[1])
		if len(targets) == 0 {
			continue
		}
		if !notification {
			d.departmentQualifier(m[4], m[5])
		}

		value := "route"
		if notification {
			value = "notify"
		}
		d.entity(domain.EntityAction, value, weight, m[0], m[1])

		for _, t := range targets {
			if notification {
				d.action(domain.Action{Kind: domain.ActionSendNotification, Target: t.value, Message: notificationMessage})
			} else {
				d.action(actionForTarget(t.value))
			}
			d.claim(t.start, t.end)
		}
		// Only the verb and "to" are consumed: amounts, categories and
		// vendors in the qualifier belong to the later passes.
		d.claim(m[2], m[3])
		toStart := m[0] + strings.LastIndex(d.lower[m[0]:m[1]], "to")
		d.claim(toStart, m[1])
	}
}

// departmentQualifier reads "<Department> invoices" between a routing verb
// and its target, as in "Route Legal invoices to ...".
func (d *draft) departmentQualifier(start, end int) {
	sm := qualifierPattern.FindStringSubmatchIndex(d.lower[start:end])
	if sm == nil {
		return
	}
	gs, ge := start+sm[2], start+sm[3]
	name, ok := departmentFromText(d.text[gs:ge])
	if !ok {
		if i := strings.LastIndexAny(d.text[gs:ge], " \t"); i >= 0 {
			gs += i + 1
			name, ok = departmentFromText(d.text[gs:ge])
		}
	}
	if !ok || d.isClaimed(gs, ge) {
		return
	}

	d.condition(domain.Condition{Field: domain.FieldDepartment, Operator: domain.OpEqual, Value: name})
	d.entity(domain.EntityDepartment, name, weightVocabulary, gs, ge)
	d.claim(gs, ge)
}

func extractNotify(d *draft, weight float64) {
	for _, m := range notifyPattern.FindAllStringIndex(d.lower, -1) {
		if d.isClaimed(m[0], m[1]) {
			continue
		}
		targets := d.targets(m[1])
		if len(targets) == 0 {
			continue
		}
		d.entity(domain.EntityAction, "notify", weight, m[0], m[1])
		for _, t := range targets {
			d.action(domain.Action{Kind: domain.ActionSendNotification, Target: t.value, Message: notificationMessage})
			d.claim(t.start, t.end)
		}
		d.claim(m[0], m[1])
	}
}

func extractRequiredApproval(d *draft, weight float64) {
	for _, m := range requireFromPattern.FindAllStringIndex(d.lower, -1) {
		if d.isClaimed(m[0], m[1]) {
			continue
		}
		targets := d.targets(m[1])
		if len(targets) == 0 {
			continue
		}
		d.entity(domain.EntityAction, "require_approval", weight, m[0], m[1])
		for _, t := range targets {
			d.action(actionForTarget(t.value))
			d.claim(t.start, t.end)
		}
		d.claim(m[0], m[1])
	}

	for _, m := range requirePattern.FindAllStringSubmatchIndex(d.lower, -1) {
		if d.isClaimed(m[0], m[1]) {
			continue
		}
		who := strings.TrimSpace(d.text[m[2]:m[3]])
		if who == "" || approvalStopwords[strings.ToLower(who)] {
			continue
		}
		d.action(actionForTarget(who))
		d.entity(domain.EntityAction, "require_approval", weight, m[0], m[1])
		d.claim(m[0], m[1])
	}
}

func extractAutoApprove(d *draft, weight float64) {
	for _, m := range autoApprovePattern.FindAllStringIndex(d.lower, -1) {
		d.action(domain.Action{Kind: domain.ActionApprove})
		d.entity(domain.EntityAction, "approve", weight, m[0], m[1])
		d.claim(m[0], m[1])
	}
}

func extractStrategies(d *draft, weight float64) {
	teamStrategies := []struct {
		pattern  *regexp.Regexp
		strategy domain.Strategy
	}{
		{roundRobinPattern, domain.StrategyRoundRobin},
		{loadBalancePattern, domain.StrategyLoadBalance},
	}

	for _, ts := range teamStrategies {
		for _, m := range ts.pattern.FindAllStringSubmatchIndex(d.lower, -1) {
			if m[2] >= 0 {
				a := domain.Action{Kind: domain.ActionDynamicAssignment, Strategy: ts.strategy}
				a.SetParam(domain.ParamTeam, teamID(d.lower[m[2]:m[3]]))
				d.action(a)
			} else if !d.restrategize(ts.strategy) {
				continue
			}
			d.entity(domain.EntityAction, string(ts.strategy), weight, m[0], m[1])
			d.claim(m[0], m[1])
		}
	}

	for _, m := range hierarchicalPattern.FindAllStringIndex(d.lower, -1) {
		if d.isClaimed(m[0], m[1]) {
			continue
		}
		d.action(domain.Action{Kind: domain.ActionDynamicAssignment, Strategy: domain.StrategyHierarchical})
		d.entity(domain.EntityAction, string(domain.StrategyHierarchical), weight, m[0], m[1])
		d.claim(m[0], m[1])
	}
}

// restrategize applies a team strategy keyword that names no team to the
// last team-scoped assignment already extracted, as in "route to the
// Finance team using load balancing".
func (d *draft) restrategize(strategy domain.Strategy) bool {
	for i := len(d.rule.Actions) - 1; i >= 0; i-- {
		a := &d.rule.Actions[i]
		if a.Kind == domain.ActionDynamicAssignment && a.Param(domain.ParamTeam) != "" {
			a.Strategy = strategy
			return true
		}
	}
	return false
}

func extractAmounts(d *draft, weight float64) {
	for _, m := range betweenPattern.FindAllStringSubmatchIndex(d.lower, -1) {
		if d.isClaimed(m[0], m[1]) {
			continue
		}
		low, okLow := amountGroup(d.lower, m, 1)
		high, okHigh := amountGroup(d.lower, m, 3)
		if !okLow || !okHigh {
			continue
		}
		d.condition(domain.Condition{Field: domain.FieldAmount, Operator: domain.OpBetween, Value: low, ValueMax: high})
		d.entity(domain.EntityAmount, low+"-"+high, weight, m[0], m[1])
		d.claim(m[0], m[1])
	}

	for _, cmp := range amountComparisons {
		for _, m := range cmp.pattern.FindAllStringSubmatchIndex(d.lower, -1) {
			if d.isClaimed(m[0], m[1]) {
				continue
			}
			amount, ok := amountGroup(d.lower, m, 1)
			if !ok {
				continue
			}
			d.condition(domain.Condition{Field: domain.FieldAmount, Operator: cmp.operator, Value: amount})
			d.entity(domain.EntityAmount, amount, weight, m[0], m[1])
			d.claim(m[0], m[1])
		}
	}
}

// amountGroup normalises the number in submatch group g and its optional
// multiplier suffix in group g+1.
func amountGroup(s string, m []int, g int) (string, bool) {
	raw := s[m[2*g]:m[2*g+1]]
	if m[2*g+2] >= 0 {
		raw += s[m[2*g+2]:m[2*g+3]]
	}
	return normalizeAmount(raw)
}

// normalizeAmount strips currency signs and thousands separators and
// expands a k or thousand suffix.
func normalizeAmount(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "thousand"):
		s, multiplier = strings.TrimSuffix(s, "thousand"), 1000
	case strings.HasSuffix(s, "k"):
		s, multiplier = strings.TrimSuffix(s, "k"), 1000
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return strconv.FormatFloat(f*multiplier, 'f', -1, 64), true
}

func extractCategories(d *draft, weight float64) {
	for _, m := range categoryPattern.FindAllStringSubmatchIndex(d.lower, -1) {
		if d.isClaimed(m[0], m[1]) {
			continue
		}
		name := titleCase(d.lower[m[2]:m[3]])
		d.condition(domain.Condition{Field: domain.FieldCategory, Operator: domain.OpEqual, Value: name})
		d.entity(domain.EntityCategory, name, weight, m[0], m[1])
		d.claim(m[0], m[1])
	}
}

func extractDepartments(d *draft, weight float64) {
	for _, m := range departmentPattern.FindAllStringSubmatchIndex(d.lower, -1) {
		if d.isClaimed(m[0], m[1]) {
			continue
		}
		name, ok := departmentFromText(d.text[m[2]:m[3]])
		if !ok {
			continue
		}
		d.condition(domain.Condition{Field: domain.FieldDepartment, Operator: domain.OpEqual, Value: name})
		d.entity(domain.EntityDepartment, name, weight, m[0], m[1])
		d.claim(m[0], m[1])
	}
}

func extractVendors(d *draft, weight float64) {
	for _, m := range vendorPattern.FindAllStringSubmatchIndex(d.text, -1) {
		vs, ve := m[6], m[7]
		switch {
		case m[2] >= 0:
			vs, ve = m[2], m[3]
		case m[4] >= 0:
			vs, ve = m[4], m[5]
		}
		value := strings.TrimRight(strings.TrimSpace(d.text[vs:ve]), ".")
		if value == "" || d.isClaimed(vs, ve) {
			continue
		}
		if _, isDepartment := canonicalDepartment(value); isDepartment {
			continue
		}

		d.condition(domain.Condition{Field: domain.FieldVendor, Operator: domain.OpEqual, Value: value})
		d.entity(domain.EntityVendor, value, weight, vs, vs+len(value))
		d.claim(m[0], m[1])
	}
}

type target struct {
	value      string
	start, end int
}

// targets reads the approvers named at pos: everything up to the first
// terminator, split on "and", stopping at a part that starts a new action.
func (d *draft) targets(pos int) []target {
	end := len(d.lower)
	for _, term := range targetTerminators {
		if i := strings.Index(d.lower[pos:], term); i >= 0 && pos+i < end {
			end = pos + i
		}
	}

	var out []target
	for start := pos; start < end; {
		partEnd := end
		if i := strings.Index(d.lower[start:end], " and "); i >= 0 {
			partEnd = start + i
		}

		s, e := trimSpan(d.text, start, partEnd)
		if strings.HasPrefix(d.lower[s:e], "the ") {
			s, e = trimSpan(d.text, s+len("the "), e)
		}
		if s >= e {
			break
		}
		fields := strings.Fields(d.lower[s:e])
		if len(fields) == 0 || slices.Contains(actionVerbs, fields[0]) {
			break
		}
		out = append(out, target{value: d.text[s:e], start: s, end: e})

		if partEnd == end {
			break
		}
		start = partEnd + len(" and ")
	}
	return out
}

func trimSpan(s string, start, end int) (int, int) {
	for start < end && strings.ContainsRune(" \t\n'\"", rune(s[start])) {
		start++
	}
	for end > start && strings.ContainsRune(" \t\n'\"", rune(s[end-1])) {
		end--
	}
	return start, end
}

// actionForTarget maps an approver phrase onto an action. Role phrases
// become dynamic assignments; anything else routes to a named user.
func actionForTarget(value string) domain.Action {
	lower := strings.ToLower(strings.TrimSpace(value))

	switch lower {
	case "manager", "direct manager", "their manager", "my manager", "requester's manager", "requester manager":
		return domain.Action{Kind: domain.ActionDynamicAssignment, Strategy: domain.StrategyManagerLookup}
	}

	if dept, ok := departmentHeadPhrase(lower); ok {
		a := domain.Action{Kind: domain.ActionDynamicAssignment, Strategy: domain.StrategyDepartmentHead}
		if name, known := canonicalDepartment(dept); known {
			a.SetParam(domain.ParamTargetDepartment, name)
		}
		return a
	}

	if strings.HasSuffix(lower, " team") {
		a := domain.Action{Kind: domain.ActionDynamicAssignment, Strategy: domain.StrategyRoundRobin}
		a.SetParam(domain.ParamTeam, teamID(lower))
		return a
	}

	if name, ok := departmentFromText(value); ok {
		a := domain.Action{Kind: domain.ActionDynamicAssignment, Strategy: domain.StrategyDepartmentHead}
		a.SetParam(domain.ParamTargetDepartment, name)
		return a
	}

	return domain.Action{Kind: domain.ActionRouteToUser, Target: strings.TrimSpace(value)}
}

// departmentHeadPhrase recognises "department head", "<dept> department
// head" and "head of <dept>", returning the department words if any.
func departmentHeadPhrase(lower string) (string, bool) {
	switch {
	case lower == "dept head":
		return "", true
	case strings.HasSuffix(lower, "department head"):
		return strings.TrimSpace(strings.TrimSuffix(lower, "department head")), true
	case strings.HasPrefix(lower, "head of "):
		return strings.TrimSpace(strings.TrimPrefix(lower, "head of ")), true
	}
	return "", false
}
