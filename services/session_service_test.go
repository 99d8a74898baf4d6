package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRotatesOnEveryRead(t *testing.T) {
	f := newFixture(t)

	first := f.read(t, "tA").SessionID
	second := f.read(t, "tA").SessionID
	assert.NotEqual(t, first, second)

	_, err := f.submit(first, "tA", line(f.p1, 1))
	var mismatch *SessionMismatchError
	assert.ErrorAs(t, err, &mismatch, "superseded table session must be rejected")

	state, err := f.submit(second, "tA", line(f.p1, 1))
	require.NoError(t, err)
	assert.NotEmpty(t, state.SessionID)
	assert.NotEqual(t, second, state.SessionID, "creating the order binds a new session to it")
}

func TestSessionVerifyChecksTableAndSignature(t *testing.T) {
	f := newFixture(t)
	token := f.read(t, "tA").SessionID

	claims, err := f.sessions.Verify(token, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, f.table.ID, claims.TableID)
	assert.Zero(t, claims.OrderID)

	_, err = f.sessions.Verify(token, f.table.ID+1)
	var mismatch *SessionMismatchError
	assert.ErrorAs(t, err, &mismatch)

	_, err = f.sessions.Verify(token+"x", f.table.ID)
	assert.ErrorAs(t, err, &mismatch)

	other, err := NewSessionService(f.sessions.Deps, "another-secret")
	require.NoError(t, err)
	_, err = other.Verify(token, f.table.ID)
	assert.ErrorAs(t, err, &mismatch)
}

func TestSessionMissingOnlyToleratedBeforeFirstOrder(t *testing.T) {
	f := newFixture(t)

	state, err := f.submit("", "tA", line(f.p1, 1))
	require.NoError(t, err, "first write on a fresh table needs no session")
	require.NotNil(t, state.Order)

	_, err = f.submit("", "tA", line(f.p1, 3))
	var mismatch *SessionMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestSessionFromBeforeOrderRejectedOnceOrderExists(t *testing.T) {
	f := newFixture(t)

	tableSession := f.read(t, "tA").SessionID
	_, err := f.submit("", "tA", line(f.p1, 1))
	require.NoError(t, err)

	_, err = f.submit(tableSession, "tA", line(f.p1, 2))
	var mismatch *SessionMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestNewSessionServiceRequiresSecret(t *testing.T) {
	_, err := NewSessionService(Deps{}, "")
	assert.Error(t, err)
}
