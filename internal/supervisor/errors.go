package supervisor

import "errors"

// ErrSpawn wraps a child process's failure to start (§7 SpawnError). It is
// never returned to a caller: a spawn failure is a steady-state condition
// reported to the console and folded into a failed terminal status so the
// runtime keeps running (§7 propagation policy).
var ErrSpawn = errors.New("child failed to start")
