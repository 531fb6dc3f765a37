package checkpoint

import (
	"context"
	"errors"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/mock"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

var _ ChainClient = (*chainClientMock)(nil)

type chainClientMock struct {
	mock.Mock
}

func (c *chainClientMock) ChainHead(ctx context.Context) (*types.TipSet, error) {
	args := c.Called(ctx)

	return args.Get(0).(*types.TipSet), args.Error(1) //nolint:forcetypeassert
}

func (c *chainClientMock) TipSetAtHeight(
	ctx context.Context, height types.Epoch, head *types.TipSet) (*types.TipSet, error) {
	args := c.Called(ctx, height, head)

	return args.Get(0).(*types.TipSet), args.Error(1) //nolint:forcetypeassert
}

func (c *chainClientMock) GatewayState(ctx context.Context, tipset *types.TipSet) (*types.GatewayState, error) {
	args := c.Called(ctx, tipset)

	return args.Get(0).(*types.GatewayState), args.Error(1) //nolint:forcetypeassert
}

func (c *chainClientMock) SubnetActorState(
	ctx context.Context, subnet types.SubnetID, tipset *types.TipSet) (*types.SubnetActorState, error) {
	args := c.Called(ctx, subnet, tipset)

	return args.Get(0).(*types.SubnetActorState), args.Error(1) //nolint:forcetypeassert
}

func (c *chainClientMock) CheckpointTemplate(ctx context.Context, epoch types.Epoch) (*types.BottomUpCheckpoint, error) {
	args := c.Called(ctx, epoch)

	return args.Get(0).(*types.BottomUpCheckpoint), args.Error(1) //nolint:forcetypeassert
}

func (c *chainClientMock) PrevCheckpointForChild(ctx context.Context, child types.SubnetID) (cid.Cid, error) {
	args := c.Called(ctx, child)

	return args.Get(0).(cid.Cid), args.Error(1) //nolint:forcetypeassert
}

func (c *chainClientMock) TopDownMsgs(
	ctx context.Context, child types.SubnetID, tipset *types.TipSet, nonce uint64) ([]types.CrossMsg, error) {
	args := c.Called(ctx, child, tipset, nonce)

	return args.Get(0).([]types.CrossMsg), args.Error(1) //nolint:forcetypeassert
}

func (c *chainClientMock) HasVotedBottomUp(
	ctx context.Context, child types.SubnetID, epoch types.Epoch, validator types.Address) (bool, error) {
	args := c.Called(ctx, child, epoch, validator)

	return args.Bool(0), args.Error(1)
}

func (c *chainClientMock) HasVotedTopDown(ctx context.Context, epoch types.Epoch, validator types.Address) (bool, error) {
	args := c.Called(ctx, epoch, validator)

	return args.Bool(0), args.Error(1)
}

func (c *chainClientMock) SubmitMessage(ctx context.Context, msg *types.Message) (types.SubmissionRef, error) {
	args := c.Called(ctx, msg)

	return args.Get(0).(types.SubmissionRef), args.Error(1) //nolint:forcetypeassert
}

func (c *chainClientMock) WaitForCommitment(ctx context.Context, ref types.SubmissionRef) (*types.Receipt, error) {
	args := c.Called(ctx, ref)

	return args.Get(0).(*types.Receipt), args.Error(1) //nolint:forcetypeassert
}

func (c *chainClientMock) Close() error {
	args := c.Called()

	return args.Error(0)
}

var (
	rootID  = types.NewRootID(31415926)
	childID = types.SubnetID{Root: 31415926, Route: []types.Address{"t01002"}}

	validatorA = types.Address("t01001")
	validatorB = types.Address("t01003")
	validatorC = types.Address("t01004")

	errChainDown = errors.New("chain down")
)

// testCid returns the dag-cbor cid of data
func testCid(data string) cid.Cid {
	c, err := cid.V1Builder{Codec: cid.DagCBOR, MhType: mh.BLAKE2B_MIN + 31}.Sum([]byte(data))
	if err != nil {
		panic(err)
	}

	return c
}

// newTestPair returns a pair where the parent and child both hold the given local accounts
func newTestPair(accounts ...types.Address) types.SubnetPair {
	return types.SubnetPair{
		Parent: &types.Subnet{
			Name:        "root",
			ID:          rootID,
			NetworkType: types.FVM,
			GatewayAddr: "t064",
			Accounts:    accounts,
		},
		Child: &types.Subnet{
			Name:        "child",
			ID:          childID,
			NetworkType: types.FVM,
			GatewayAddr: "t064",
			Accounts:    accounts,
		},
	}
}

type submission struct {
	Epoch     types.Epoch
	Validator types.Address
}

var _ CheckpointManager = (*fakeManager)(nil)

// fakeManager simulates the checkpoint state of a subnet pair. With execute set,
// a submission immediately executes the checkpoint of its epoch.
type fakeManager struct {
	lock sync.Mutex

	pair       types.SubnetPair
	direction  types.Direction
	period     types.Epoch
	validators []types.Address
	last       types.Epoch
	current    types.Epoch
	ready      bool
	execute    bool
	voted      map[types.Epoch]map[types.Address]bool

	queryErr  error
	submitErr error
	// onSubmit runs inside SubmitCheckpoint before the submission is accepted
	onSubmit func(ctx context.Context)

	submissions []submission
	closed      bool
}

func newFakeManager(pair types.SubnetPair, period, last, current types.Epoch, validators ...types.Address) *fakeManager {
	return &fakeManager{
		pair:       pair,
		direction:  types.BottomUp,
		period:     period,
		validators: validators,
		last:       last,
		current:    current,
		ready:      true,
		voted:      make(map[types.Epoch]map[types.Address]bool),
	}
}

func (f *fakeManager) String() string { return "fake " + f.pair.String() }

func (f *fakeManager) Direction() types.Direction { return f.direction }

func (f *fakeManager) Parent() *types.Subnet { return f.pair.Parent }

func (f *fakeManager) Child() *types.Subnet { return f.pair.Child }

func (f *fakeManager) Target() *types.Subnet { return f.pair.Parent }

func (f *fakeManager) CheckpointPeriod() types.Epoch { return f.period }

func (f *fakeManager) Validators(context.Context) ([]types.Address, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.validators, f.queryErr
}

func (f *fakeManager) LastExecutedEpoch(context.Context) (types.Epoch, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.last, f.queryErr
}

func (f *fakeManager) CurrentEpoch(context.Context) (types.Epoch, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.current, f.queryErr
}

func (f *fakeManager) PresubmissionCheck(context.Context) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.ready, f.queryErr
}

func (f *fakeManager) ShouldSubmitInEpoch(_ context.Context, validator types.Address, epoch types.Epoch) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.queryErr != nil {
		return false, f.queryErr
	}

	return !f.voted[epoch][validator], nil
}

func (f *fakeManager) SubmitCheckpoint(
	ctx context.Context, epoch types.Epoch, validator types.Address) (*types.Receipt, error) {
	if f.onSubmit != nil {
		f.onSubmit(ctx)
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	if f.submitErr != nil {
		return nil, f.submitErr
	}

	if f.voted[epoch] == nil {
		f.voted[epoch] = make(map[types.Address]bool)
	}

	f.voted[epoch][validator] = true
	f.submissions = append(f.submissions, submission{Epoch: epoch, Validator: validator})

	if f.execute && epoch > f.last {
		f.last = epoch
	}

	return &types.Receipt{Ref: "bafy", Height: f.current}, nil
}

func (f *fakeManager) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.closed = true

	return nil
}

func (f *fakeManager) setLast(last types.Epoch) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.last = last
}

func (f *fakeManager) getSubmissions() []submission {
	f.lock.Lock()
	defer f.lock.Unlock()

	return append([]submission(nil), f.submissions...)
}

func (f *fakeManager) isClosed() bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.closed
}

type recorderMock struct {
	lock    sync.Mutex
	records []*types.SubmissionRecord
}

func (r *recorderMock) Record(record *types.SubmissionRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.records = append(r.records, record)

	return nil
}

func (r *recorderMock) all() []*types.SubmissionRecord {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]*types.SubmissionRecord(nil), r.records...)
}

func staticFactory(m CheckpointManager) ManagerFactory {
	return func(context.Context) (CheckpointManager, error) {
		return m, nil
	}
}

func newTestRunner(m *fakeManager, cfg RunnerConfig) *Runner {
	return NewRunner(m.pair, m.direction, staticFactory(m), cfg, hclog.NewNullLogger())
}
