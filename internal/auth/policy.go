package auth

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/veristake/bondmarket/pkg/types"
)

// Policy holds a single owner identity plus a mutable allow-list of admin
// identities. Only the owner may change the allow-list or transfer ownership.
// The owner-or-admin union is exposed as a single capability check used by
// dispute resolution; every other privileged operation checks the owner alone.
type Policy struct {
	mu     sync.RWMutex
	owner  common.Address
	admins map[common.Address]bool
	logger *zap.Logger
}

// New creates a policy owned by owner with an empty admin set.
func New(owner common.Address, logger *zap.Logger) *Policy {
	return &Policy{
		owner:  owner,
		admins: make(map[common.Address]bool),
		logger: logger,
	}
}

// Owner returns the current owner identity.
func (p *Policy) Owner() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner
}

// IsOwner reports whether id is the owner.
func (p *Policy) IsOwner(id common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return id == p.owner
}

// IsAdmin reports whether id is on the admin allow-list.
func (p *Policy) IsAdmin(id common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.admins[id]
}

// IsOwnerOrAdmin reports whether id is the owner or an admin.
func (p *Policy) IsOwnerOrAdmin(id common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return id == p.owner || p.admins[id]
}

// CanResolveDispute is the capability check used by the registry's dispute
// adjudication. Disputes are the only operation open to the owner-or-admin
// union.
func (p *Policy) CanResolveDispute(id common.Address) bool {
	return p.IsOwnerOrAdmin(id)
}

// AddAdmin puts id on the allow-list. Owner only.
func (p *Policy) AddAdmin(caller, id common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return &types.AuthorizationError{Operation: "add admin", Caller: caller}
	}

	p.admins[id] = true
	p.logger.Info("admin-added", zap.String("admin", id.Hex()))
	return nil
}

// RemoveAdmin removes id from the allow-list. Owner only. Removing an
// identity that is not listed is a no-op.
func (p *Policy) RemoveAdmin(caller, id common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return &types.AuthorizationError{Operation: "remove admin", Caller: caller}
	}

	delete(p.admins, id)
	p.logger.Info("admin-removed", zap.String("admin", id.Hex()))
	return nil
}

// TransferOwnership hands the owner identity to newOwner. Owner only.
func (p *Policy) TransferOwnership(caller, newOwner common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return &types.AuthorizationError{Operation: "transfer ownership", Caller: caller}
	}

	p.logger.Info("ownership-transferred",
		zap.String("from", p.owner.Hex()),
		zap.String("to", newOwner.Hex()))
	p.owner = newOwner
	return nil
}
