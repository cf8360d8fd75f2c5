package repository

import "errors"

// ErrNotFound is returned when the requested entity does not exist or is
// not visible to the caller.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a create collides with the per-project
// name uniqueness constraint.
var ErrDuplicate = errors.New("already exists")

// Compile-time interface checks for both backends.
var (
	_ WorkloadRepository = (*MemoryWorkloadRepository)(nil)
	_ WorkloadRepository = (*PersistentWorkloadRepository)(nil)
	_ TriggerRepository  = (*MemoryTriggerRepository)(nil)
	_ TriggerRepository  = (*PersistentTriggerRepository)(nil)
	_ WorkflowRepository = (*MemoryWorkflowRepository)(nil)
	_ WorkflowRepository = (*PersistentWorkflowRepository)(nil)
)
