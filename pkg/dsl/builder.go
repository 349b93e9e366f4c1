package dsl

import "github.com/aretw0/apptrail/pkg/workflow"

// Builder constructs workflows in Go with the same vocabulary as the text form.
type Builder struct {
	entries []workflow.Entry
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{}
}

// Input is a shorthand for one search field.
func Input(key, value string) workflow.QueryInput {
	return workflow.QueryInput{Key: key, Value: value}
}

func (b *Builder) add(e workflow.Entry) *Builder {
	b.entries = append(b.entries, e)
	return b
}

// Menu selects a menu command by display text.
func (b *Builder) Menu(text string) *Builder { return b.add(workflow.CommandStep{Value: text}) }

// MenuID selects a menu command by selection id.
func (b *Builder) MenuID(id string) *Builder { return b.add(workflow.CommandIDStep{Value: id}) }

// Entity selects a case by id.
func (b *Builder) Entity(id string) *Builder { return b.add(workflow.EntitySelectStep{Value: id}) }

// Entities selects several cases by id.
func (b *Builder) Entities(ids ...string) *Builder {
	return b.add(workflow.MultipleEntitySelectStep{Values: ids})
}

// EntityAt selects the case at index i.
func (b *Builder) EntityAt(i int) *Builder { return b.add(workflow.EntitySelectIndexStep{Value: i}) }

// EntitiesAt selects the cases at the given indexes.
func (b *Builder) EntitiesAt(indexes ...int) *Builder {
	return b.add(workflow.MultipleEntitySelectByIndexStep{Values: indexes})
}

// ValidateSearch submits search inputs without running the search.
func (b *Builder) ValidateSearch(in ...workflow.QueryInput) *Builder {
	return b.add(workflow.QueryInputValidationStep{Inputs: in})
}

// Search runs a search.
func (b *Builder) Search(in ...workflow.QueryInput) *Builder {
	return b.add(workflow.QueryStep{Inputs: in})
}

// SearchWithValidation validates every input before running the search.
func (b *Builder) SearchWithValidation(in ...workflow.QueryInput) *Builder {
	return b.add(workflow.QueryStep{Inputs: in, ValidateInputs: true})
}

// ClearSearch resets the search inputs.
func (b *Builder) ClearSearch() *Builder { return b.add(workflow.ClearQueryStep{}) }

// Form groups the entries added by fn into a form block.
func (b *Builder) Form(fn func(f *FormBuilder)) *Builder {
	inner := &FormBuilder{}
	fn(inner)
	return b.add(workflow.FormStep{Entries: inner.entries})
}

// Raw sends a literal navigation body.
func (b *Builder) Raw(data map[string]any) *Builder {
	return b.add(workflow.RawNavigationStep{RequestData: data})
}

// ExpectXpath asserts that the expression evaluates to true.
func (b *Builder) ExpectXpath(xpath string) *Builder {
	return b.add(workflow.XpathExpectation{Xpath: xpath})
}

// ExpectCasePresent asserts that a matching case exists.
func (b *Builder) ExpectCasePresent(filter string) *Builder {
	return b.add(workflow.CasePresent{XpathFilter: filter})
}

// ExpectCaseAbsent asserts that no matching case exists.
func (b *Builder) ExpectCaseAbsent(filter string) *Builder {
	return b.add(workflow.CaseAbsent{XpathFilter: filter})
}

// ExpectQuestion asserts the answer of the question bound to path.
func (b *Builder) ExpectQuestion(path, value string) *Builder {
	return b.add(workflow.QuestionValue{QuestionPath: path, Value: value})
}

// Build returns the workflow built so far.
func (b *Builder) Build() workflow.Workflow {
	return workflow.Workflow{Steps: append([]workflow.Entry(nil), b.entries...)}
}

// FormBuilder adds the entries allowed inside a form block: answers,
// submission and expectations.
type FormBuilder struct {
	entries []workflow.Entry
}

func (f *FormBuilder) add(e workflow.Entry) *FormBuilder {
	f.entries = append(f.entries, e)
	return f
}

// Answer answers a question by caption.
func (f *FormBuilder) Answer(caption, value string) *FormBuilder {
	return f.add(workflow.AnswerQuestionStep{QuestionText: caption, Value: value})
}

// AnswerID answers a question by question id.
func (f *FormBuilder) AnswerID(id, value string) *FormBuilder {
	return f.add(workflow.AnswerQuestionIDStep{QuestionID: id, Value: value})
}

// Submit submits the form.
func (f *FormBuilder) Submit() *FormBuilder { return f.add(workflow.SubmitFormStep{}) }

func (f *FormBuilder) ExpectXpath(xpath string) *FormBuilder {
	return f.add(workflow.XpathExpectation{Xpath: xpath})
}

func (f *FormBuilder) ExpectCasePresent(filter string) *FormBuilder {
	return f.add(workflow.CasePresent{XpathFilter: filter})
}

func (f *FormBuilder) ExpectCaseAbsent(filter string) *FormBuilder {
	return f.add(workflow.CaseAbsent{XpathFilter: filter})
}

func (f *FormBuilder) ExpectQuestion(path, value string) *FormBuilder {
	return f.add(workflow.QuestionValue{QuestionPath: path, Value: value})
}
