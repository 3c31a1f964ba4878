// Package propagate keeps the Action → ActionPlan → LinePlan hierarchy
// consistent. Whenever a leaf action changes, the orchestrator re-reads
// the current children, recomputes the aggregate status with fixed
// precedence, persists it only when it changed, and cascades one level
// up.
//
// There is no locking between concurrent cascades: every run derives
// the aggregate fresh from persisted children, so a stale write is
// corrected by the next triggering event.
//
// Repository read errors degrade to an empty child set by default
// ("fail open"): the cascade proceeds and may compute a temporarily
// wrong aggregate that self-heals on the next event. WithFailClosed
// makes reads abort the cascade loudly instead.
package propagate
