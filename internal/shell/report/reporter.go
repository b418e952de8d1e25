// Package report renders human-readable progress and summaries of
// deployment runs.
package report

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/artpar/safebite-deploy/internal/core/domain"
	"github.com/artpar/safebite-deploy/internal/shell/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/params"
)

// =============================================================================
// Styles
// =============================================================================

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	addressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const ruleWidth = 60

// =============================================================================
// Reporter
// =============================================================================

// Reporter prints deployment progress to a writer. Write errors are
// ignored: reporting never affects the outcome of a run.
type Reporter struct {
	out io.Writer
}

// New creates a reporter writing to out.
func New(out io.Writer) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{out: out}
}

func (r *Reporter) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Reporter) rule() {
	r.printf("%s\n", ruleStyle.Render(strings.Repeat("=", ruleWidth)))
}

// Started announces a run against a network.
func (r *Reporter) Started(network string) {
	r.printf("%s\n\n", titleStyle.Render(fmt.Sprintf("Deploying SafeBite contracts to %s...", network)))
}

// Identity prints the deploying account and its balance.
func (r *Reporter) Identity(id domain.DeployerIdentity) {
	r.printf("%s %s\n", labelStyle.Render("Deploying contracts with account:"), addressStyle.Render(id.Address.Hex()))
	r.printf("%s %s ETH\n\n", labelStyle.Render("Account balance:"), FormatEther(id.Balance))
}

// Deploying announces step index (1-based) of total.
func (r *Reporter) Deploying(index, total int, name string) {
	r.printf("[%d/%d] Deploying %s...\n", index, total, name)
}

// Deployed prints a confirmed deployment.
func (r *Reporter) Deployed(d domain.ContractDeployment) {
	r.printf("      %s %s deployed to: %s\n", okStyle.Render("✓"), d.Name, addressStyle.Render(d.Address))
	if d.TxHash != "" {
		r.printf("      %s %s\n", labelStyle.Render("tx:"), d.TxHash)
	}
}

// Summary prints the final manifest and where it was saved.
func (r *Reporter) Summary(m *domain.DeploymentManifest, path string) {
	r.printf("\n")
	r.rule()
	r.printf("%s\n", titleStyle.Render("Deployment Summary"))
	r.rule()
	r.printf("%s %s\n", labelStyle.Render("Network: "), m.Network)
	r.printf("%s %d\n", labelStyle.Render("Chain ID:"), m.ChainID)
	r.printf("%s %s\n", labelStyle.Render("Deployer:"), m.Deployer)
	r.printf("\nContract Addresses:\n")
	r.contracts(m)
	r.printf("\n%s %s\n", labelStyle.Render("Deployment info saved to:"), path)
	r.printf("\n%s\n", okStyle.Render("Deployment completed successfully!"))
	r.printf("\nNext steps:\n")
	r.printf("   - Use these addresses in your backend .env file\n")
	r.printf("   - Connect your frontend to these contracts\n")
}

// Failed prints a run failure. When deployments were confirmed but the
// manifest could not be saved, their addresses are printed again so they
// are not lost.
func (r *Reporter) Failed(err error, deployed []domain.ContractDeployment) {
	r.printf("\n%s\n", errorStyle.Render("Deployment failed:"))
	r.printf("  %v\n", err)

	if len(deployed) == 0 {
		return
	}
	if errors.Is(err, domain.ErrIO) {
		r.printf("\n%s\n", warnStyle.Render("Contracts were deployed but the manifest was NOT saved. Record these addresses:"))
	} else {
		r.printf("\n%s\n", warnStyle.Render("Contracts confirmed before the failure:"))
	}
	for _, d := range deployed {
		r.printf("  %-22s %s\n", d.Name+":", addressStyle.Render(d.Address))
	}
}

// Manifest prints a stored manifest.
func (r *Reporter) Manifest(m *domain.DeploymentManifest, path string) {
	r.printf("%s %s\n", labelStyle.Render("Manifest:"), path)
	r.printf("%s %s (chain %d)\n", labelStyle.Render("Network: "), m.Network, m.ChainID)
	r.printf("%s %s\n", labelStyle.Render("Deployer:"), m.Deployer)
	r.printf("%s %s\n", labelStyle.Render("Deployed:"), m.DeployedAt.Format("2006-01-02 15:04:05 MST"))
	r.contracts(m)
}

// NoManifest tells the operator nothing has been deployed yet.
func (r *Reporter) NoManifest(path string) {
	r.printf("%s %s\n", warnStyle.Render("No deployment recorded yet at"), path)
}

// History prints recorded runs, newest first.
func (r *Reporter) History(network string, runs []store.Run) {
	if len(runs) == 0 {
		r.printf("%s %s\n", warnStyle.Render("No deployment history for"), network)
		return
	}
	r.printf("%s\n", titleStyle.Render(fmt.Sprintf("Deployment history for %s (%d runs)", network, len(runs))))
	for _, run := range runs {
		r.rule()
		r.printf("%s %s\n", labelStyle.Render("Run:     "), run.ID)
		r.printf("%s %s\n", labelStyle.Render("Deployed:"), run.Manifest.DeployedAt.Format("2006-01-02 15:04:05 MST"))
		r.printf("%s %s\n", labelStyle.Render("Deployer:"), run.Manifest.Deployer)
		r.contracts(run.Manifest)
	}
}

func (r *Reporter) contracts(m *domain.DeploymentManifest) {
	for _, name := range m.ContractNames() {
		r.printf("  %-22s %s\n", name+":", addressStyle.Render(m.Contracts[name]))
	}
}

// =============================================================================
// Formatting
// =============================================================================

// FormatEther renders a wei amount in ether with up to 6 decimals.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, new(big.Float).SetInt(big.NewInt(params.Ether)))
	s := f.Text('f', 6)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
