package deployment

import (
	"fmt"

	"github.com/artpar/safebite-deploy/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

// =============================================================================
// Contract Names
// =============================================================================

const (
	// AccessRoles is the access-control contract. It has no dependencies.
	AccessRoles = "SafeBiteAccessRoles"

	// SupplyChain is the supply-chain contract. Its constructor takes the
	// AccessRoles address.
	SupplyChain = "SafeBiteSupplyChain"
)

// =============================================================================
// Plan Types
// =============================================================================

// Arg is a single constructor argument of a step. It is either a literal
// value or a reference to the address produced by an earlier step.
type Arg struct {
	Ref   string
	Value any
}

// AddressOf references the deployed address of an earlier step.
func AddressOf(step string) Arg {
	return Arg{Ref: step}
}

// Literal passes a fixed value to the constructor.
func Literal(v any) Arg {
	return Arg{Value: v}
}

// IsRef reports whether the argument references another step.
func (a Arg) IsRef() bool {
	return a.Ref != ""
}

// Step is one contract creation in a plan.
type Step struct {
	// Name is the key the deployed address is recorded under in the manifest.
	Name string

	// Artifact identifies the compiled contract. Defaults to Name.
	Artifact string

	// Args are the constructor arguments in ABI order.
	Args []Arg
}

// ArtifactName returns the compiled-contract identifier for the step.
func (s Step) ArtifactName() string {
	if s.Artifact != "" {
		return s.Artifact
	}
	return s.Name
}

// Plan is an ordered list of steps. A step may only reference steps that
// appear before it.
type Plan []Step

// DefaultPlan returns the SafeBite plan: access roles first, then the supply
// chain wired to the access roles address.
func DefaultPlan() Plan {
	return Plan{
		{Name: AccessRoles},
		{Name: SupplyChain, Args: []Arg{AddressOf(AccessRoles)}},
	}
}

// =============================================================================
// Plan Validation
// =============================================================================

// ValidatePlan checks that the plan can be executed strictly in order:
// names are non-empty and unique, and every reference names an earlier step.
func ValidatePlan(plan Plan) error {
	if len(plan) == 0 {
		return fmt.Errorf("%w: plan has no steps", domain.ErrInvalidPlan)
	}

	seen := make(map[string]bool, len(plan))
	for i, step := range plan {
		if step.Name == "" {
			return fmt.Errorf("%w: step %d has no name", domain.ErrInvalidPlan, i)
		}
		if seen[step.Name] {
			return fmt.Errorf("%w: duplicate step %s", domain.ErrInvalidPlan, step.Name)
		}
		for _, arg := range step.Args {
			if arg.IsRef() && !seen[arg.Ref] {
				return fmt.Errorf("%w: step %s references %s before it is deployed", domain.ErrInvalidPlan, step.Name, arg.Ref)
			}
		}
		seen[step.Name] = true
	}
	return nil
}

// =============================================================================
// Argument Resolution
// =============================================================================

// ResolveArgs builds the constructor arguments of a step. References resolve
// to the common.Address of the matching confirmed deployment.
func ResolveArgs(step Step, deployed []domain.ContractDeployment) ([]any, error) {
	args := make([]any, 0, len(step.Args))
	for _, arg := range step.Args {
		if !arg.IsRef() {
			args = append(args, arg.Value)
			continue
		}
		addr, ok := findAddress(deployed, arg.Ref)
		if !ok {
			return nil, fmt.Errorf("%w: %s requires %s which has not been deployed", domain.ErrInvalidPlan, step.Name, arg.Ref)
		}
		args = append(args, addr)
	}
	return args, nil
}

func findAddress(deployed []domain.ContractDeployment, name string) (common.Address, bool) {
	for _, d := range deployed {
		if d.Name == name {
			return common.HexToAddress(d.Address), true
		}
	}
	return common.Address{}, false
}
