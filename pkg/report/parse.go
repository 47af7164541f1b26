package report

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/entrhq/qarunner/pkg/types"
)

var (
	errNotJSON   = errors.New("reply is not valid JSON")
	errNotObject = errors.New("reply is not a JSON object")
)

// stripFences removes a surrounding Markdown code fence, which models
// commonly add around JSON replies.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func parseObject(reply string) (gjson.Result, error) {
	text := stripFences(reply)
	if !gjson.Valid(text) {
		return gjson.Result{}, errNotJSON
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return gjson.Result{}, errNotObject
	}
	return doc, nil
}

func parseReport(reply string) (types.Report, error) {
	doc, err := parseObject(reply)
	if err != nil {
		return types.Report{}, err
	}

	summary := map[string]string{}
	doc.Get("report_summary").ForEach(func(key, value gjson.Result) bool {
		summary[key.String()] = textOf(value)
		return true
	})

	return types.Report{
		Summary:         summary,
		Recommendations: stringList(doc.Get("recommendations")),
		CriticalIssues:  stringList(doc.Get("critical_issues")),
	}, nil
}

func parseBugAnalysis(reply string) (types.BugAnalysis, error) {
	doc, err := parseObject(reply)
	if err != nil {
		return types.BugAnalysis{}, err
	}

	return types.BugAnalysis{
		Bugs:                stringList(doc.Get("bugs")),
		PerformanceIssues:   stringList(doc.Get("performance_issues")),
		AccessibilityIssues: stringList(doc.Get("accessibility_issues")),
		UXIssues:            stringList(doc.Get("ux_issues")),
	}, nil
}

// stringList flattens a JSON array into strings. Non-string items keep
// their raw JSON; a single scalar becomes a one-item list.
func stringList(v gjson.Result) []string {
	out := []string{}
	if !v.Exists() || v.Type == gjson.Null {
		return out
	}
	if !v.IsArray() {
		if s := textOf(v); s != "" {
			out = append(out, s)
		}
		return out
	}
	for _, item := range v.Array() {
		if s := textOf(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func textOf(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	return strings.TrimSpace(v.Raw)
}
