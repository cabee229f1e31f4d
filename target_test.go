package invoke

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarget_PartitionedAndTargeted(t *testing.T) {
	pt := Partitioned(3, 1)
	assert.True(t, pt.IsPartitioned())
	assert.Equal(t, int32(3), pt.PartitionID())
	assert.Equal(t, int32(1), pt.ReplicaIndex())

	tt := Targeted("peer:5701")
	assert.False(t, tt.IsPartitioned())
	assert.Equal(t, "peer:5701", tt.Address())
}

func TestResolveTarget_PartitionHappyPath(t *testing.T) {
	cluster := newFakeClusterService(time.Unix(0, 0))
	partitions := newFakePartitionService()
	partitions.set(3, 0, "peer:5701")
	cluster.addMember("peer:5701", "peer-uuid")
	node := newFakeNodeEngine("local:5701", cluster, partitions)

	addr, member, err := resolveTarget(node, Partitioned(3, 0), 3, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "peer:5701", addr)
	assert.Equal(t, "peer-uuid", member.UUID)
}

func TestResolveTarget_MismatchedPartitionIsIllegalState(t *testing.T) {
	f := newTestFixture()
	_, _, err := resolveTarget(f.node, Partitioned(3, 0), 4, 0, false)
	var illegal *IllegalStateError
	assert.ErrorAs(t, err, &illegal)
}

func TestResolveTarget_MismatchedReplicaIsIllegalState(t *testing.T) {
	f := newTestFixture()
	_, _, err := resolveTarget(f.node, Partitioned(3, 0), 3, 1, false)
	var illegal *IllegalStateError
	assert.ErrorAs(t, err, &illegal)
}

func TestResolveTarget_UnknownPartitionIsWrongTarget(t *testing.T) {
	f := newTestFixture()
	_, _, err := resolveTarget(f.node, Partitioned(7, 0), 7, 0, false)
	var wrong *WrongTargetError
	require.ErrorAs(t, err, &wrong)
}

func TestResolveTarget_InactiveEngineIsEngineNotActive(t *testing.T) {
	f := newTestFixture()
	f.node.active = false
	_, _, err := resolveTarget(f.node, Partitioned(7, 0), 7, 0, false)
	var notActive *EngineNotActiveError
	assert.ErrorAs(t, err, &notActive)
}

func TestResolveTarget_NonMemberTargetIsTargetNotMember(t *testing.T) {
	f := newTestFixture()
	f.partitions.set(1, 0, "ghost:5701")
	_, _, err := resolveTarget(f.node, Partitioned(1, 0), 1, 0, false)
	var notMember *TargetNotMemberError
	require.ErrorAs(t, err, &notMember)
}

func TestResolveTarget_JoinOperationSkipsMembershipCheck(t *testing.T) {
	f := newTestFixture()
	f.partitions.set(1, 0, "ghost:5701")
	addr, member, err := resolveTarget(f.node, Partitioned(1, 0), 1, 0, true)
	require.NoError(t, err)
	assert.Equal(t, "ghost:5701", addr)
	assert.Nil(t, member)
}

func TestResolveTarget_ExplicitTargetAddress(t *testing.T) {
	f := newTestFixture()
	f.cluster.addMember("peer:5701", "peer-uuid")
	addr, member, err := resolveTarget(f.node, Targeted("peer:5701"), 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "peer:5701", addr)
	assert.Equal(t, "peer-uuid", member.UUID)
}
