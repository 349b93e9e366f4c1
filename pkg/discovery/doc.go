/*
Package discovery enumerates the workflows an application offers.

Starting from the root menu, the Engine asks every active exploration for
its branches (the steps that can be taken from its current screen), takes
the first branch itself and forks a deep copy of the session for every
other branch. An exploration completes when its screen offers no branch,
and the steps it took become one workflow.

Rounds advance every active exploration by one step. Explorations of a
round may run in parallel (WithParallelism); results are always collected
in exploration order, so the output does not depend on scheduling.
*/
package discovery
