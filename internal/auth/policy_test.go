package auth

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/veristake/bondmarket/pkg/types"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	admin    = common.HexToAddress("0x0000000000000000000000000000000000000002")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func TestOwnerChecks(t *testing.T) {
	t.Parallel()

	p := New(owner, zaptest.NewLogger(t))

	assert.True(t, p.IsOwner(owner))
	assert.False(t, p.IsOwner(stranger))
	assert.True(t, p.IsOwnerOrAdmin(owner))
	assert.False(t, p.IsAdmin(owner))
}

func TestAdminAllowList(t *testing.T) {
	t.Parallel()

	p := New(owner, zaptest.NewLogger(t))

	require.NoError(t, p.AddAdmin(owner, admin))
	assert.True(t, p.IsAdmin(admin))
	assert.True(t, p.IsOwnerOrAdmin(admin))
	assert.True(t, p.CanResolveDispute(admin))
	assert.False(t, p.CanResolveDispute(stranger))

	require.NoError(t, p.RemoveAdmin(owner, admin))
	assert.False(t, p.IsAdmin(admin))
	assert.False(t, p.CanResolveDispute(admin))
}

func TestOnlyOwnerMutates(t *testing.T) {
	t.Parallel()

	p := New(owner, zaptest.NewLogger(t))
	require.NoError(t, p.AddAdmin(owner, admin))

	var authErr *types.AuthorizationError

	// Admins cannot mutate the allow-list, only the owner can.
	err := p.AddAdmin(admin, stranger)
	require.True(t, errors.As(err, &authErr))

	err = p.RemoveAdmin(admin, admin)
	require.True(t, errors.As(err, &authErr))

	err = p.TransferOwnership(stranger, stranger)
	require.True(t, errors.As(err, &authErr))

	assert.True(t, p.IsOwner(owner))
}

func TestTransferOwnership(t *testing.T) {
	t.Parallel()

	p := New(owner, zaptest.NewLogger(t))
	newOwner := common.HexToAddress("0x0000000000000000000000000000000000000009")

	require.NoError(t, p.TransferOwnership(owner, newOwner))

	assert.True(t, p.IsOwner(newOwner))
	assert.False(t, p.IsOwner(owner))

	// The old owner keeps no residual rights.
	err := p.AddAdmin(owner, admin)
	var authErr *types.AuthorizationError
	require.True(t, errors.As(err, &authErr))
}
