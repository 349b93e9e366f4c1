package mockapp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

const casedbInstance = "instance('casedb')"

func element(name string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
}

func textElement(name, value string) *xmlquery.Node {
	n := element(name)
	if value != "" {
		xmlquery.AddChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: value})
	}
	return n
}

// casedb renders every case as <case case_id case_type status> with one child
// element per property. Caller holds a.mu.
func (a *App) casedb() *xmlquery.Node {
	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	db := element("casedb")
	xmlquery.AddChild(doc, db)

	names := make([]string, 0, len(a.cases))
	for name := range a.cases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, c := range a.cases[name] {
			el := element("case")
			xmlquery.AddAttr(el, "case_id", c.ID)
			xmlquery.AddAttr(el, "case_type", orDefault(c.Properties["case_type"], name))
			xmlquery.AddAttr(el, "status", orDefault(c.Properties["status"], "open"))

			keys := make([]string, 0, len(c.Properties))
			for k := range c.Properties {
				if k != "case_type" && k != "status" {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			for _, k := range keys {
				xmlquery.AddChild(el, textElement(k, c.Properties[k]))
			}
			xmlquery.AddChild(db, el)
		}
	}
	return doc
}

// evaluate runs an xpath expression against the case database. References to
// instance('casedb') resolve to the document root.
func (a *App) evaluate(payload map[string]any) (map[string]any, error) {
	expr := strings.TrimSpace(fmt.Sprint(payload["xpath"]))
	compiled, err := xpath.Compile(strings.ReplaceAll(expr, casedbInstance, ""))
	if err != nil {
		return failure("unsupported xpath %q: %v", expr, err), nil
	}
	out := compiled.Evaluate(xmlquery.CreateXPathNavigator(a.casedb()))
	if iter, ok := out.(*xpath.NodeIterator); ok {
		out = ""
		if iter.MoveNext() {
			out = iter.Current().Value()
		}
	}
	return map[string]any{"status": "accepted", "output": fmt.Sprintf("<result>%v</result>", out)}, nil
}

// instanceXML renders the form instance with one element per question.
func instanceXML(fs *formSession) string {
	data := element("data")
	for i, q := range fs.form.Questions {
		var v string
		if answer, ok := fs.answers[strconv.Itoa(i)]; ok && answer != nil {
			v = fmt.Sprint(answer)
		}
		xmlquery.AddChild(data, textElement(q.ID, v))
	}
	return data.OutputXML(true)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
