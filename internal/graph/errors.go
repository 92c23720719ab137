package graph

import "errors"

// Sentinel errors for the validations performed by Build and Filter, in the
// order §4.1 specifies them: unknown dependency, self-dependency, cycle,
// then (at filter time) an unknown requested task.
var (
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrSelfDependency    = errors.New("task cannot depend on itself")
	ErrCycle             = errors.New("cycle detected")
	ErrUnknownTask       = errors.New("unknown task")
)
