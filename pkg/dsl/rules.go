package dsl

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/mitchellh/mapstructure"
)

const (
	quoted  = `"(?:[^"\\]|\\.)*"`
	key     = `(?:[\w.\-]+|` + quoted + `)`
	inputs  = `(?:` + key + `=` + quoted + `(?:\s*,\s*` + key + `=` + quoted + `)*)`
	numbers = `\d+(?:\s*,\s*\d+)*`
	strs    = quoted + `(?:\s*,\s*` + quoted + `)*`
)

var (
	quotedRe  = regexp.MustCompile(quoted)
	inputRe   = regexp.MustCompile(`(` + key + `)=(` + quoted + `)`)
	numberRe  = regexp.MustCompile(`\d+`)
	bareKeyRe = regexp.MustCompile(`^[\w.\-]+$`)
)

type captures map[string]string

// rule binds one variant to its line template, its pattern and its adapter.
type rule struct {
	tag     string
	pattern *regexp.Regexp
	fields  func(c captures) (map[string]any, error)
	build   func(fields map[string]any) (workflow.Entry, error)
	format  func(e workflow.Entry) string
	check   func(e workflow.Entry) error // rejects values format cannot express
}

func line(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + expr + `$`)
}

// rules are tried in order; more specific directives come first.
var rules = []rule{
	{
		tag:     workflow.TagCommandID,
		pattern: line(`select menu with id (?P<value>` + quoted + `)`),
		fields:  single("value"),
		build:   decodeAs[workflow.CommandIDStep],
		format: func(e workflow.Entry) string {
			return "Select menu with id " + strconv.Quote(e.(workflow.CommandIDStep).Value)
		},
	},
	{
		tag:     workflow.TagCommand,
		pattern: line(`select menu (?P<value>` + quoted + `)`),
		fields:  single("value"),
		build:   decodeAs[workflow.CommandStep],
		format: func(e workflow.Entry) string {
			return "Select menu " + strconv.Quote(e.(workflow.CommandStep).Value)
		},
	},
	{
		tag:     workflow.TagMultipleEntitySelectByIndex,
		pattern: line(`select entities at indexes (?P<values>` + numbers + `)`),
		fields: func(c captures) (map[string]any, error) {
			return map[string]any{"values": numberRe.FindAllString(c["values"], -1)}, nil
		},
		build: decodeAs[workflow.MultipleEntitySelectByIndexStep],
		format: func(e workflow.Entry) string {
			return "Select entities at indexes " + joinInts(e.(workflow.MultipleEntitySelectByIndexStep).Values)
		},
		check: func(e workflow.Entry) error {
			return nonEmpty(len(e.(workflow.MultipleEntitySelectByIndexStep).Values))
		},
	},
	{
		tag:     workflow.TagEntitySelectIndex,
		pattern: line(`select entity at index (?P<value>\d+)`),
		fields: func(c captures) (map[string]any, error) {
			return map[string]any{"value": c["value"]}, nil
		},
		build: decodeAs[workflow.EntitySelectIndexStep],
		format: func(e workflow.Entry) string {
			return fmt.Sprintf("Select entity at index %d", e.(workflow.EntitySelectIndexStep).Value)
		},
	},
	{
		tag:     workflow.TagMultipleEntitySelect,
		pattern: line(`select entities (?P<values>` + strs + `)`),
		fields: func(c captures) (map[string]any, error) {
			values, err := unquoteAll(quotedRe.FindAllString(c["values"], -1))
			return map[string]any{"values": values}, err
		},
		build: decodeAs[workflow.MultipleEntitySelectStep],
		format: func(e workflow.Entry) string {
			return "Select entities " + joinQuoted(e.(workflow.MultipleEntitySelectStep).Values)
		},
		check: func(e workflow.Entry) error {
			return nonEmpty(len(e.(workflow.MultipleEntitySelectStep).Values))
		},
	},
	{
		tag:     workflow.TagEntitySelect,
		pattern: line(`select entity (?P<value>` + quoted + `)`),
		fields:  single("value"),
		build:   decodeAs[workflow.EntitySelectStep],
		format: func(e workflow.Entry) string {
			return "Select entity " + strconv.Quote(e.(workflow.EntitySelectStep).Value)
		},
	},
	{
		tag:     workflow.TagQueryInputValidation,
		pattern: line(`validate search inputs(?:\s+(?P<inputs>` + inputs + `))?`),
		fields:  queryFields,
		build:   decodeAs[workflow.QueryInputValidationStep],
		format: func(e workflow.Entry) string {
			return joinWords("Validate search inputs", formatInputs(e.(workflow.QueryInputValidationStep).Inputs))
		},
	},
	{
		tag:     workflow.TagQuery,
		pattern: line(`search(?:\s+(?P<inputs>` + inputs + `))?(?P<validate>\s+with validation)?`),
		fields:  queryFields,
		build:   decodeAs[workflow.QueryStep],
		format: func(e workflow.Entry) string {
			q := e.(workflow.QueryStep)
			out := joinWords("Search", formatInputs(q.Inputs))
			if q.ValidateInputs {
				out += " with validation"
			}
			return out
		},
	},
	{
		tag:     workflow.TagClearQuery,
		pattern: line(`clear search`),
		build:   decodeAs[workflow.ClearQueryStep],
		format:  func(workflow.Entry) string { return "Clear search" },
	},
	{
		tag:     workflow.TagAnswerQuestionID,
		pattern: line(`answer question with id (?P<question_id>` + quoted + `) with (?P<value>` + quoted + `)`),
		fields:  single("question_id", "value"),
		build:   decodeAs[workflow.AnswerQuestionIDStep],
		format: func(e workflow.Entry) string {
			a := e.(workflow.AnswerQuestionIDStep)
			return fmt.Sprintf("Answer question with id %s with %s", strconv.Quote(a.QuestionID), strconv.Quote(a.Value))
		},
	},
	{
		tag:     workflow.TagAnswerQuestion,
		pattern: line(`answer question (?P<question_text>` + quoted + `) with (?P<value>` + quoted + `)`),
		fields:  single("question_text", "value"),
		build:   decodeAs[workflow.AnswerQuestionStep],
		format: func(e workflow.Entry) string {
			a := e.(workflow.AnswerQuestionStep)
			return fmt.Sprintf("Answer question %s with %s", strconv.Quote(a.QuestionText), strconv.Quote(a.Value))
		},
	},
	{
		tag:     workflow.TagSubmitForm,
		pattern: line(`submit form`),
		build:   decodeAs[workflow.SubmitFormStep],
		format:  func(workflow.Entry) string { return "Submit form" },
	},
	{
		tag:     workflow.TagRawNavigation,
		pattern: line(`raw navigation (?P<request_data>\{.*\})`),
		fields: func(c captures) (map[string]any, error) {
			var data map[string]any
			if err := json.Unmarshal([]byte(c["request_data"]), &data); err != nil {
				return nil, fmt.Errorf("invalid request data: %w", err)
			}
			return map[string]any{"request_data": data}, nil
		},
		build: decodeAs[workflow.RawNavigationStep],
		format: func(e workflow.Entry) string {
			b, _ := json.Marshal(e.(workflow.RawNavigationStep).RequestData)
			return "Raw navigation " + string(b)
		},
		check: func(e workflow.Entry) error {
			data := e.(workflow.RawNavigationStep).RequestData
			if data == nil {
				return errors.New("request data is required")
			}
			_, err := json.Marshal(data)
			return err
		},
	},
	{
		tag:     workflow.TagExpectXpath,
		pattern: line(`expect xpath (?P<xpath>` + quoted + `)`),
		fields:  single("xpath"),
		build:   decodeAs[workflow.XpathExpectation],
		format: func(e workflow.Entry) string {
			return "Expect xpath " + strconv.Quote(e.(workflow.XpathExpectation).Xpath)
		},
	},
	{
		tag:     workflow.TagExpectCasePresent,
		pattern: line(`expect case present (?P<xpath_filter>` + quoted + `)`),
		fields:  single("xpath_filter"),
		build:   decodeAs[workflow.CasePresent],
		format: func(e workflow.Entry) string {
			return "Expect case present " + strconv.Quote(e.(workflow.CasePresent).XpathFilter)
		},
	},
	{
		tag:     workflow.TagExpectCaseAbsent,
		pattern: line(`expect case absent (?P<xpath_filter>` + quoted + `)`),
		fields:  single("xpath_filter"),
		build:   decodeAs[workflow.CaseAbsent],
		format: func(e workflow.Entry) string {
			return "Expect case absent " + strconv.Quote(e.(workflow.CaseAbsent).XpathFilter)
		},
	},
	{
		tag:     workflow.TagExpectQuestionValue,
		pattern: line(`expect question (?P<question_path>` + quoted + `) to be (?P<value>` + quoted + `)`),
		fields:  single("question_path", "value"),
		build:   decodeAs[workflow.QuestionValue],
		format: func(e workflow.Entry) string {
			q := e.(workflow.QuestionValue)
			return fmt.Sprintf("Expect question %s to be %s", strconv.Quote(q.QuestionPath), strconv.Quote(q.Value))
		},
	},
}

var rulesByTag = func() map[string]*rule {
	out := make(map[string]*rule, len(rules))
	for i := range rules {
		r := &rules[i]
		if _, dup := out[r.tag]; dup {
			panic("dsl: duplicate rule for " + r.tag)
		}
		out[r.tag] = r
	}
	return out
}()

func (r *rule) match(text string) (captures, bool) {
	m := r.pattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	c := captures{}
	for i, name := range r.pattern.SubexpNames() {
		if name != "" {
			c[name] = m[i]
		}
	}
	return c, true
}

func (r *rule) parse(c captures) (workflow.Entry, error) {
	var fields map[string]any
	if r.fields != nil {
		var err error
		if fields, err = r.fields(c); err != nil {
			return nil, err
		}
	}
	return r.build(fields)
}

// decodeAs converts adapter output into the variant using the variant's JSON
// field names. Weak typing turns captured digits into integers.
func decodeAs[T workflow.Entry](fields map[string]any) (workflow.Entry, error) {
	var v T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &v,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(fields); err != nil {
		return nil, err
	}
	return v, nil
}

func nonEmpty(n int) error {
	if n == 0 {
		return errors.New("at least one value is required")
	}
	return nil
}

func single(names ...string) func(captures) (map[string]any, error) {
	return func(c captures) (map[string]any, error) {
		out := make(map[string]any, len(names))
		for _, name := range names {
			v, err := strconv.Unquote(c[name])
			if err != nil {
				return nil, fmt.Errorf("invalid string %s: %w", c[name], err)
			}
			out[name] = v
		}
		return out, nil
	}
}

func queryFields(c captures) (map[string]any, error) {
	var in workflow.QueryInputs
	for _, m := range inputRe.FindAllStringSubmatch(c["inputs"], -1) {
		k := m[1]
		if strings.HasPrefix(k, `"`) {
			var err error
			if k, err = strconv.Unquote(k); err != nil {
				return nil, err
			}
		}
		v, err := strconv.Unquote(m[2])
		if err != nil {
			return nil, err
		}
		in = append(in, workflow.QueryInput{Key: k, Value: v})
	}
	fields := map[string]any{}
	if len(in) > 0 {
		fields["inputs"] = in
	}
	if strings.TrimSpace(c["validate"]) != "" {
		fields["validate_inputs"] = true
	}
	return fields, nil
}

func formatInputs(in workflow.QueryInputs) string {
	parts := make([]string, 0, len(in))
	for _, i := range in {
		k := i.Key
		if !bareKeyRe.MatchString(k) {
			k = strconv.Quote(k)
		}
		parts = append(parts, k+"="+strconv.Quote(i.Value))
	}
	return strings.Join(parts, ", ")
}

func unquoteAll(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, s := range in {
		v, err := strconv.Unquote(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func joinQuoted(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Quote(v))
	}
	return strings.Join(parts, ", ")
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ", ")
}

func joinWords(head, tail string) string {
	if tail == "" {
		return head
	}
	return head + " " + tail
}
