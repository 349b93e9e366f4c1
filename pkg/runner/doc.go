/*
Package runner executes workflows against a live session.

A run locks the simulated user, acquires the channel, optionally syncs data,
opens the application and then executes every entry in order. Leaf steps send
one request each and replace the session screen; containers run their
children; expectations are evaluated and abort the run when they do not hold.
Every step is appended to the session log as "<directive> -> <screen kind>".

# Usage

	r := runner.New(
		runner.WithLogger(logger),
		runner.WithFormPolicy(runner.FormsNoSubmit),
		runner.WithHooks(observability.NewMetrics(prometheus.DefaultRegisterer).Hooks()),
	)

	sess := session.New(channel, session.Config{Domain: "demo", AppID: "abc", Username: "web@demo"})
	if err := r.Run(ctx, sess, wf); err != nil {
		log.Fatal(err)
	}
*/
package runner
