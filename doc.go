/*
Package apptrail drives scripted user journeys through a remote form-based
application and checks that they still work.

A journey is a workflow: an ordered list of steps (select a menu, pick a
case, search, answer and submit forms) and expectations (a case exists, an
XPath holds). Workflows are written in a line-oriented text form, stored as
tagged JSON, discovered automatically by walking the application menus, or
reconstructed from recorded HTTP traffic.

# Concept

The library keeps a session per simulated user. Each step turns the current
screen into one request, the response becomes the next screen, and the
session log records "<step> -> <screen kind>". Runs for the same user are
serialized with a distributed lock because the remote side keeps a single
restore state per user.

# Usage

	ch := http.NewChannel("https://example.org/a/demo/formplayer",
		http.WithAuth(http.BearerToken{Token: os.Getenv("APPTRAIL_TOKEN")}))

	client := apptrail.New(ch,
		apptrail.WithSessionConfig(session.Config{Domain: "demo", AppID: "abc", Username: "nurse@demo"}),
		apptrail.WithFormPolicy(runner.FormsNoSubmit),
	)

	sess, err := client.RunText(ctx, `
	Select menu "Patients"
	Select entity at index 0
	`)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(strings.Join(sess.Log(), "\n"))

The apptrail command wraps the same operations: run, discover, reconstruct,
fmt, workflows, mock and mcp.
*/
package apptrail
