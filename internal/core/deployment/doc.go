// Package deployment provides pure functions for contract deployment planning.
//
// This package contains the functional core of a deployment run: the fixed
// plan of contracts to create, the rules that keep that plan ordered, and the
// naming of the manifest a run produces. All functions are pure (no I/O, no
// side effects).
//
// # Functions
//
//   - Plan: Declare the ordered contract steps (DefaultPlan)
//   - Validation: Reject plans whose references do not point backwards (ValidatePlan)
//   - Arguments: Turn step references into constructor arguments (ResolveArgs)
//   - Naming: Locate the manifest for a network (ManifestName, ManifestPath)
//
// # Usage
//
// The imperative shell (internal/shell/deploy) walks the validated plan,
// resolving each step's arguments from the deployments confirmed so far.
//
//	plan := deployment.DefaultPlan()
//	if err := deployment.ValidatePlan(plan); err != nil {
//	    return err
//	}
//	args, err := deployment.ResolveArgs(plan[1], confirmed)
package deployment
