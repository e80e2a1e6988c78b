package interest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/cellsync/internal/core/components"
	"github.com/zeusync/cellsync/internal/core/ecs"
	"github.com/zeusync/cellsync/internal/core/models"
	"github.com/zeusync/cellsync/internal/core/observability/log"
	"github.com/zeusync/cellsync/internal/core/protocol"
)

type sent struct {
	conn models.ConnectionID
	msg  protocol.Message
}

type recorder struct {
	out []sent
	err error
}

func (r *recorder) Send(conn models.ConnectionID, msg protocol.Message) error {
	if r.err != nil {
		return r.err
	}
	r.out = append(r.out, sent{conn: conn, msg: msg})
	return nil
}

func (r *recorder) spawned() []models.EntityID {
	var ids []models.EntityID
	for _, s := range r.out {
		if spawn, ok := s.msg.(*protocol.SpawnCharacter); ok {
			ids = append(ids, spawn.State.ServerID)
		}
	}
	return ids
}

// stateSerializer avoids the character package so failures can be injected.
type stateSerializer struct {
	fail models.EntityID
}

func (s stateSerializer) Serialize(r *ecs.Registry, e models.EntityID) (protocol.CharacterState, error) {
	if e == s.fail {
		return protocol.CharacterState{}, errors.New("boom")
	}
	return protocol.CharacterState{ServerID: e}, nil
}

type fixture struct {
	reg    *ecs.Registry
	stores components.Stores
	rec    *recorder
	proto  *Protocol
	logs   *observer.ObservedLogs
}

func newFixture(t *testing.T, serializer CharacterSerializer) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	reg := ecs.NewRegistry()
	rec := &recorder{}
	if serializer == nil {
		serializer = stateSerializer{}
	}
	return &fixture{
		reg:    reg,
		stores: components.Bind(reg),
		rec:    rec,
		proto:  NewProtocol(reg, serializer, rec, log.NewWithCore(core)),
		logs:   logs,
	}
}

func (f *fixture) character(owner models.EntityID, cell components.CellID) models.EntityID {
	e := f.reg.CreateEntity()
	f.stores.Characters.Set(e, components.Character{Name: "npc"})
	f.stores.Owners.Set(e, components.Owner{Owner: owner})
	f.stores.Cells.Set(e, cell)
	return e
}

func TestSyncSpawnsForeignCharactersInNeighborhood(t *testing.T) {
	f := newFixture(t, nil)
	const me, other models.EntityID = 100, 200

	inRange := f.character(other, components.Exterior(7, 1, models.GridCoords{}))
	serverOwned := f.character(models.NilEntity, components.Exterior(8, 1, models.GridCoords{}))
	f.character(me, components.Exterior(7, 1, models.GridCoords{}))
	f.character(other, components.Exterior(42, 1, models.GridCoords{}))

	// Character without an owner is not part of the protocol.
	orphan := f.reg.CreateEntity()
	f.stores.Characters.Set(orphan, components.Character{})
	f.stores.Cells.Set(orphan, components.Exterior(7, 1, models.GridCoords{}))

	n := f.proto.Sync(me, 0x1, Neighborhood([]models.CellID{6, 7, 8}))
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []models.EntityID{inRange, serverOwned}, f.rec.spawned())
	for _, s := range f.rec.out {
		assert.Equal(t, models.ConnectionID(0x1), s.conn)
	}
}

func TestSyncInteriorIsExactMatch(t *testing.T) {
	f := newFixture(t, nil)
	const me models.EntityID = 100

	inside := f.character(models.NilEntity, components.Interior(5))
	f.character(models.NilEntity, components.Interior(4))
	f.character(models.NilEntity, components.Interior(6))

	n := f.proto.Sync(me, 0x2, Single(5))
	assert.Equal(t, 1, n)
	assert.Equal(t, []models.EntityID{inside}, f.rec.spawned())
}

func TestSyncEmptySetSendsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.character(models.NilEntity, components.Interior(5))
	assert.Zero(t, f.proto.Sync(1, 1, Neighborhood(nil)))
	assert.Empty(t, f.rec.out)
}

func TestSyncSkipsSerializationFailures(t *testing.T) {
	f := newFixture(t, nil)
	bad := f.character(models.NilEntity, components.Interior(5))
	good := f.character(models.NilEntity, components.Interior(5))
	f.proto.serializer = stateSerializer{fail: bad}

	assert.Equal(t, 1, f.proto.Sync(1, 1, Single(5)))
	assert.Equal(t, []models.EntityID{good}, f.rec.spawned())
	assert.Equal(t, 1, f.logs.FilterMessage("Failed to serialize character").Len())
}

func TestSyncSendErrorsAreLoggedNotCounted(t *testing.T) {
	f := newFixture(t, nil)
	f.character(models.NilEntity, components.Interior(5))
	f.rec.err = errors.New("queue full")

	assert.Zero(t, f.proto.Sync(1, 0xab, Single(5)))
	entries := f.logs.FilterMessage("Failed to send spawn directive").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "0xab", entries[0].ContextMap()["connection_id"])
}

func TestSetMembership(t *testing.T) {
	s := Neighborhood([]models.CellID{1, 2, 2, 3})
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(4))

	one := Single(9)
	assert.Equal(t, 1, one.Len())
	assert.True(t, one.Contains(9))
}
