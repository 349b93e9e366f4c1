/*
Package dsl reads and writes workflows as plain text, and builds them in Go.

Each line holds one directive. Blank lines and lines starting with '#' are
ignored, indentation is cosmetic, and a "Start form" / "End form" pair groups
the answers of one form:

	# register a patient and check the case exists
	Select menu "Patients"
	Select menu "Register Patient"
	Start form
	  Answer question "Name" with "bob"
	  Answer question with id "dob" with "2020-01-01"
	  Submit form
	End form
	Expect case present "@case_type='patient' and name='bob'"

Parse(Format(w)) yields w for every workflow. The same workflow built in Go:

	wf := dsl.New().
		Menu("Patients").
		Menu("Register Patient").
		Form(func(f *dsl.FormBuilder) {
			f.Answer("Name", "bob").AnswerID("dob", "2020-01-01").Submit()
		}).
		ExpectCasePresent("@case_type='patient' and name='bob'").
		Build()
*/
package dsl
