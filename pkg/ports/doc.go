/*
Package ports defines the driven ports (interfaces) of apptrail.

These interfaces decouple the runner, discovery and CLI from the concrete remote
transport, workflow persistence and distributed coordination.

# Key Interfaces

  - Channel: Sends one request to the remote application and returns its response.
  - Opener: Optional lifecycle of channels that hold a resource during a run.
  - WorkflowStore: Persists named workflows (memory, file, redis, sqlite).
  - DistributedLocker: Serializes runs that act as the same remote user.
*/
package ports
