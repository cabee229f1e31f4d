package invoke

import (
	"sync"
	"time"
)

// fakeOperation is a minimal Operation used across the package's tests. A
// test installs onDispatch to simulate whatever the remote/local side would
// have done once the fake executor or fake OperationService "runs" it.
type fakeOperation struct {
	mu sync.Mutex

	callID         uint64
	callerAddress  string
	callerUUID     string
	partitionID    int32
	replicaIndex   int32
	serviceName    string
	callTimeout    time.Duration
	invocationTime time.Time
	isJoin         bool

	handler func(any)

	// onDispatch, if set, is invoked by fakeOperationExecutor.RunOnCallingThreadIfPossible
	// and by fakeOperationService.Send to simulate the remote side replying.
	onDispatch func(op *fakeOperation)
}

func newFakeOperation(serviceName string, partitionID, replicaIndex int32) *fakeOperation {
	return &fakeOperation{
		serviceName:    serviceName,
		partitionID:    partitionID,
		replicaIndex:   replicaIndex,
		invocationTime: time.Unix(0, 0),
	}
}

func (o *fakeOperation) CallID() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.callID
}

func (o *fakeOperation) SetCallID(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callID = id
}

func (o *fakeOperation) CallerAddress() string { return o.callerAddress }
func (o *fakeOperation) CallerUUID() string    { return o.callerUUID }

func (o *fakeOperation) SetCaller(address, uuid string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callerAddress = address
	o.callerUUID = uuid
}

func (o *fakeOperation) PartitionID() int32  { return o.partitionID }
func (o *fakeOperation) ReplicaIndex() int32 { return o.replicaIndex }
func (o *fakeOperation) ServiceName() string { return o.serviceName }

func (o *fakeOperation) CallTimeout() time.Duration { return o.callTimeout }
func (o *fakeOperation) SetCallTimeout(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callTimeout = d
}

func (o *fakeOperation) InvocationTime() time.Time { return o.invocationTime }

func (o *fakeOperation) SetResponseHandler(h func(response any)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handler = h
}

func (o *fakeOperation) respond(v any) {
	o.mu.Lock()
	h := o.handler
	o.mu.Unlock()
	if h != nil {
		h(v)
	}
}

func (o *fakeOperation) IsJoinOperation() bool { return o.isJoin }

// fakeWaitOperation adds the WaitSupport capability to fakeOperation.
type fakeWaitOperation struct {
	*fakeOperation
	waitTimeout time.Duration
}

func (o *fakeWaitOperation) WaitTimeout() time.Duration { return o.waitTimeout }
func (o *fakeWaitOperation) SetWaitTimeout(d time.Duration) {
	o.waitTimeout = d
}

// fakePartition implements Partition with a static replica table.
type fakePartition struct {
	replicas map[int32]string
}

func (p *fakePartition) ReplicaAddress(replicaIndex int32) string { return p.replicas[replicaIndex] }

// fakePartitionService implements PartitionService.
type fakePartitionService struct {
	mu         sync.Mutex
	partitions map[int32]*fakePartition
}

func newFakePartitionService() *fakePartitionService {
	return &fakePartitionService{partitions: map[int32]*fakePartition{}}
}

func (s *fakePartitionService) set(partitionID int32, replicaIndex int32, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[partitionID]
	if !ok {
		p = &fakePartition{replicas: map[int32]string{}}
		s.partitions[partitionID] = p
	}
	p.replicas[replicaIndex] = address
}

func (s *fakePartitionService) Partition(partitionID int32) Partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[partitionID]
	if !ok {
		return nil
	}
	return p
}

// fakeClusterService implements ClusterService with a mutable clock and
// member table, so tests can simulate a target dying mid-invocation.
type fakeClusterService struct {
	mu      sync.Mutex
	members map[string]*Member
	now     time.Time
}

func newFakeClusterService(now time.Time) *fakeClusterService {
	return &fakeClusterService{members: map[string]*Member{}, now: now}
}

func (c *fakeClusterService) addMember(address, uuid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[address] = &Member{Address: address, UUID: uuid}
}

func (c *fakeClusterService) removeMember(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.members, address)
}

func (c *fakeClusterService) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClusterService) Member(address string) *Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members[address]
}

func (c *fakeClusterService) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// fakeOperationExecutor runs every operation inline, synchronously, and
// always permits invocation from the calling goroutine — the simplest
// collaborator a test needs.
type fakeOperationExecutor struct {
	allowed bool
}

func newFakeOperationExecutor() *fakeOperationExecutor {
	return &fakeOperationExecutor{allowed: true}
}

func (e *fakeOperationExecutor) IsInvocationAllowedFromCurrentThread(Operation, bool) bool {
	return e.allowed
}

func (e *fakeOperationExecutor) RunOnCallingThreadIfPossible(op Operation) {
	fo, ok := op.(*fakeOperation)
	if wo, isWait := op.(*fakeWaitOperation); isWait {
		fo, ok = wo.fakeOperation, true
	}
	if ok && fo.onDispatch != nil {
		fo.onDispatch(fo)
	}
}

// fakeOperationService implements OperationService. sendResult/sendErr
// control the outcome of Send for remote-target scenarios.
type fakeOperationService struct {
	registry  *InvocationRegistry
	executor  *fakeOperationExecutor
	defaultMS int64

	mu        sync.Mutex
	sendOK    bool
	sendErr   error
	onSend    func(op Operation, address string)
}

func newFakeOperationService() *fakeOperationService {
	return &fakeOperationService{
		registry:  NewInvocationRegistry(),
		executor:  newFakeOperationExecutor(),
		defaultMS: 5000,
		sendOK:    true,
	}
}

func (s *fakeOperationService) Send(op Operation, address string) (bool, error) {
	s.mu.Lock()
	cb := s.onSend
	s.mu.Unlock()
	if cb != nil {
		// run before reading the outcome, so a callback can flip
		// sendOK/sendErr mid-call to simulate a transport that recovers
		// partway through the attempt it is currently handling.
		cb(op, address)
	}
	s.mu.Lock()
	ok, err := s.sendOK, s.sendErr
	s.mu.Unlock()
	return ok, err
}

func (s *fakeOperationService) DefaultCallTimeoutMillis() int64 { return s.defaultMS }
func (s *fakeOperationService) OperationExecutor() OperationExecutor { return s.executor }
func (s *fakeOperationService) InvocationRegistry() *InvocationRegistry { return s.registry }

// recordedSchedule captures one ExecutionService.Schedule call, for
// asserting which pool an executorAdapter chose (§4.7, §8 Property 5).
type recordedSchedule struct {
	poolName string
	delay    time.Duration
}

// fakeExecutionService runs scheduled work inline, synchronously, so
// tests can assert on the recorded pool/delay without a goroutine race.
type fakeExecutionService struct {
	mu        sync.Mutex
	schedules []recordedSchedule
}

func newFakeExecutionService() *fakeExecutionService {
	return &fakeExecutionService{}
}

func (e *fakeExecutionService) Schedule(poolName string, task func(), delay time.Duration) {
	e.mu.Lock()
	e.schedules = append(e.schedules, recordedSchedule{poolName: poolName, delay: delay})
	e.mu.Unlock()
	task()
}

func (e *fakeExecutionService) calls() []recordedSchedule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]recordedSchedule(nil), e.schedules...)
}

// fakeNodeEngine implements NodeEngine.
type fakeNodeEngine struct {
	thisAddress  string
	active       bool
	cluster      *fakeClusterService
	partitions   *fakePartitionService
	localUUID    string
}

func newFakeNodeEngine(thisAddress string, cluster *fakeClusterService, partitions *fakePartitionService) *fakeNodeEngine {
	return &fakeNodeEngine{
		thisAddress: thisAddress,
		active:      true,
		cluster:     cluster,
		partitions:  partitions,
		localUUID:   "this-node-uuid",
	}
}

func (n *fakeNodeEngine) ThisAddress() string                 { return n.thisAddress }
func (n *fakeNodeEngine) IsActive() bool                      { return n.active }
func (n *fakeNodeEngine) ClusterService() ClusterService       { return n.cluster }
func (n *fakeNodeEngine) PartitionService() PartitionService   { return n.partitions }
func (n *fakeNodeEngine) LocalMemberUUID() string              { return n.localUUID }

// testFixture bundles the collaborators most invocation tests need.
type testFixture struct {
	cluster    *fakeClusterService
	partitions *fakePartitionService
	node       *fakeNodeEngine
	opService  *fakeOperationService
	services   Services
}

func newTestFixture() *testFixture {
	cluster := newFakeClusterService(time.Unix(1000, 0))
	partitions := newFakePartitionService()
	node := newFakeNodeEngine("local:5701", cluster, partitions)
	opService := newFakeOperationService()
	return &testFixture{
		cluster:    cluster,
		partitions: partitions,
		node:       node,
		opService:  opService,
		services: Services{
			NodeEngine:       node,
			OperationService: opService,
			Logger:           NewNoopLogger(),
		},
	}
}
