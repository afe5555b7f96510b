// Package marker implements the Marker Reconciliation Engine.
//
// After every store change the Engine diffs the entity map against the set of
// visual objects it has rendered. It creates markers for new entities, moves and
// restyles existing ones, and removes those whose entity is gone. Exactly one
// popup, bound to the selected entity, is visible at a time. The map itself is
// reached only through the Surface interface.
package marker
