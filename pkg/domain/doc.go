/*
Package domain contains the error kinds and observability events shared by every
apptrail component.

It is kept free of I/O and of the step model so that adapters, the runner and the
CLI can depend on it without import cycles.

# Error Kinds

  - StepResolutionError: a step's target (command, entity, question) is not on screen.
  - ProtocolError / UnrecognizedScreenError: the response shape cannot be interpreted.
  - ExpectationError: an assertion failed or could not be evaluated.
  - RemoteExecutionError: the remote service reported a failure.
  - ParseError: a DSL line could not be parsed.
  - ReconstructionError: a traffic capture is inconsistent.
*/
package domain
