package deploy

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/artpar/safebite-deploy/internal/core/domain"
	"github.com/artpar/safebite-deploy/internal/shell/store"
	"github.com/ethereum/go-ethereum/common"
)

var (
	signer      = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	addrAccess  = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	addrSupply  = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	errRejected = fmt.Errorf("%w: execution reverted", domain.ErrTransaction)
)

// eventLog records the order in which collaborators were called.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// deployCall is one DeployContract invocation seen by the fake provider.
type deployCall struct {
	Artifact string
	Args     []any
}

// fakeProvider returns fixed addresses per artifact and can fail on the
// n-th deployment.
type fakeProvider struct {
	log         *eventLog
	chainID     int64
	snapshotErr error
	addresses   map[string]common.Address
	failOn      int // 1-based deployment call to fail, 0 = never
	failErr     error
	calls       []deployCall
}

func newFakeProvider(log *eventLog) *fakeProvider {
	return &fakeProvider{
		log:     log,
		chainID: 1337,
		addresses: map[string]common.Address{
			"SafeBiteAccessRoles": addrAccess,
			"SafeBiteSupplyChain": addrSupply,
		},
	}
}

func (p *fakeProvider) Snapshot(ctx context.Context) (domain.NetworkSnapshot, error) {
	p.log.add("snapshot")
	if p.snapshotErr != nil {
		return domain.NetworkSnapshot{}, p.snapshotErr
	}
	return domain.NetworkSnapshot{
		ChainID:  p.chainID,
		Deployer: domain.DeployerIdentity{Address: signer, Balance: big.NewInt(0)},
	}, nil
}

func (p *fakeProvider) DeployContract(ctx context.Context, artifact string, args ...any) (domain.Receipt, error) {
	p.calls = append(p.calls, deployCall{Artifact: artifact, Args: args})
	if p.failOn == len(p.calls) {
		p.log.add("deploy-failed %s", artifact)
		return domain.Receipt{}, p.failErr
	}
	p.log.add("confirmed %s", artifact)
	return domain.Receipt{
		Address: p.addresses[artifact],
		TxHash:  common.BigToHash(big.NewInt(int64(len(p.calls)))),
	}, nil
}

// recordingWriter wraps a writer and logs when it is called.
type recordingWriter struct {
	log  *eventLog
	next ManifestWriter
	err  error
}

func (w *recordingWriter) Write(m *domain.DeploymentManifest, path string) error {
	w.log.add("write %s", path)
	if w.err != nil {
		return w.err
	}
	if w.next != nil {
		return w.next.Write(m, path)
	}
	return nil
}

// fakeHistory keeps recorded runs in memory.
type fakeHistory struct {
	runs []*store.Run
	err  error
}

func (h *fakeHistory) RecordRun(ctx context.Context, run *store.Run) error {
	if h.err != nil {
		return h.err
	}
	h.runs = append(h.runs, run)
	return nil
}

// fakeReporter records reporter callbacks.
type fakeReporter struct {
	log      *eventLog
	failed   error
	deployed []domain.ContractDeployment
}

func (r *fakeReporter) Started(network string) { r.log.add("report-started %s", network) }
func (r *fakeReporter) Identity(id domain.DeployerIdentity) { r.log.add("report-identity") }
func (r *fakeReporter) Deploying(index, total int, name string) { r.log.add("report-deploying %d/%d %s", index, total, name) }
func (r *fakeReporter) Deployed(d domain.ContractDeployment) { r.log.add("report-deployed %s", d.Name) }
func (r *fakeReporter) Summary(m *domain.DeploymentManifest, path string) {
	r.log.add("report-summary")
}
func (r *fakeReporter) Failed(err error, deployed []domain.ContractDeployment) {
	r.log.add("report-failed")
	r.failed = err
	r.deployed = deployed
}
