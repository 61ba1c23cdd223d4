package redisstore

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/kinfolk/internal/relations"
)

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestStore_UnreachableRedisSurfacesErrors(t *testing.T) {
	rdb := NewClient(closedAddr(t), "", 0)
	s := New(rdb, zerolog.Nop(), WithReportTTL(time.Minute), WithTurnTTL(time.Second))
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, ok, err := s.GetReport(ctx, "p1")
	assert.Error(t, err)
	assert.False(t, ok)

	assert.Error(t, s.InvalidateReports(ctx))

	unlock, ok, err := s.TryLock(ctx, "sess")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Nil(t, unlock)
}

func TestOptions_IgnoreNonPositive(t *testing.T) {
	s := New(NewClient(closedAddr(t), "", 0), zerolog.Nop(), WithReportTTL(0), WithTurnTTL(-time.Second))
	t.Cleanup(func() { _ = s.Close() })
	assert.Equal(t, defaultReportTTL, s.reportTTL)
	assert.Equal(t, defaultTurnTTL, s.turnTTL)
}

func newMiniStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := New(NewClient(mr.Addr(), "", 0), zerolog.Nop(), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore_ReportCacheInvalidation(t *testing.T) {
	s, mr := newMiniStore(t)
	ctx := context.Background()
	report := relations.Report{
		HomePersonID: "p1",
		Ancestry: []relations.Ancestor{
			{PersonID: "p1", FullName: "Ann Lee", Relation: "Self", Side: relations.SideNone},
		},
	}

	_, ok, err := s.GetReport(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetReport(ctx, "p1", report))
	require.NoError(t, s.SetReport(ctx, "", report))
	assert.True(t, mr.Exists("kinfolk:reports:v0:p1"))
	assert.True(t, mr.Exists("kinfolk:reports:v0:_"))
	assert.Equal(t, 10*time.Minute, mr.TTL("kinfolk:reports:v0:p1"))

	got, ok, err := s.GetReport(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report, *got)

	require.NoError(t, s.InvalidateReports(ctx))
	_, ok, err = s.GetReport(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.GetReport(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetReport(ctx, "p1", report))
	assert.True(t, mr.Exists("kinfolk:reports:v1:p1"))
	_, ok, err = s.GetReport(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_UndecodableReportIsMiss(t *testing.T) {
	s, mr := newMiniStore(t)
	require.NoError(t, mr.Set("kinfolk:reports:v0:p1", "{not json"))

	_, ok, err := s.GetReport(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("kinfolk:reports:v0:p1"))
}

func TestStore_TurnLock(t *testing.T) {
	s, mr := newMiniStore(t, WithTurnTTL(time.Second))
	ctx := context.Background()
	key := "kinfolk:turn:sess"

	unlock, ok, err := s.TryLock(ctx, "sess")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = s.TryLock(ctx, "sess")
	require.NoError(t, err)
	assert.False(t, ok)

	other, ok, err := s.TryLock(ctx, "other")
	require.NoError(t, err)
	require.True(t, ok)
	other()

	unlock()
	assert.False(t, mr.Exists(key))

	unlock, ok, err = s.TryLock(ctx, "sess")
	require.NoError(t, err)
	require.True(t, ok)
	unlock()
}

func TestStore_ExpiredLockSurvivesStaleUnlock(t *testing.T) {
	s, mr := newMiniStore(t, WithTurnTTL(time.Second))
	ctx := context.Background()
	key := "kinfolk:turn:sess"

	stale, ok, err := s.TryLock(ctx, "sess")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(key))

	current, ok, err := s.TryLock(ctx, "sess")
	require.NoError(t, err)
	require.True(t, ok)
	holder, err := mr.Get(key)
	require.NoError(t, err)

	stale()
	require.True(t, mr.Exists(key))
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, holder, got)

	_, ok, err = s.TryLock(ctx, "sess")
	require.NoError(t, err)
	assert.False(t, ok)

	current()
	assert.False(t, mr.Exists(key))
}
