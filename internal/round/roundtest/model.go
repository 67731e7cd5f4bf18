// Package roundtest is an in-memory model of the B3trRound contract wired
// into a chaintest.Backend.
package roundtest

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/roundctl/internal/chain/chaintest"
	"github.com/Bidon15/roundctl/internal/round"
)

// Model holds rounds, registered apps, allocations and claimed flags.
// Rounds below the current one are closed and claimable.
type Model struct {
	mu sync.Mutex

	current uint64
	apps    map[uint64][]common.Hash
	amounts map[uint64]map[common.Hash]*big.Int
	claimed map[uint64]map[common.Hash]bool
	deps    round.Dependencies

	// RevertWhenNothingToClaim makes claims revert when no unclaimed app
	// with a non-zero amount is left in the round.
	RevertWhenNothingToClaim bool

	// Operator, when set, is the only account allowed to start rounds.
	Operator common.Address
}

// New returns a model whose current round is current.
func New(current uint64) *Model {
	return &Model{
		current: current,
		apps:    make(map[uint64][]common.Hash),
		amounts: make(map[uint64]map[common.Hash]*big.Int),
		claimed: make(map[uint64]map[common.Hash]bool),
	}
}

// NewBackend returns a fake backend with a fresh model registered on it.
func NewBackend(current uint64) (*chaintest.Backend, *Model) {
	backend := chaintest.New(round.ABI())
	m := New(current)
	m.Register(backend)
	return backend, m
}

// AddApp registers id in roundID with a claimable amount.
func (m *Model) AddApp(roundID uint64, id common.Hash, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.amounts[roundID] == nil {
		m.amounts[roundID] = make(map[common.Hash]*big.Int)
		m.claimed[roundID] = make(map[common.Hash]bool)
	}
	if _, ok := m.amounts[roundID][id]; !ok {
		m.apps[roundID] = append(m.apps[roundID], id)
	}
	m.amounts[roundID][id] = new(big.Int).Set(amount)
}

// MarkClaimed flags id as claimed in roundID.
func (m *Model) MarkClaimed(roundID uint64, id common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[roundID] == nil {
		m.claimed[roundID] = make(map[common.Hash]bool)
	}
	m.claimed[roundID][id] = true
}

// SetDependencies sets the addresses the contract reports as initialized.
func (m *Model) SetDependencies(deps round.Dependencies) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps = deps
}

// Current returns the current round.
func (m *Model) Current() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Previous returns the previous round, or round.NoRound.
func (m *Model) Previous() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previousLocked()
}

// Claimed reports the claimed flag of id in roundID.
func (m *Model) Claimed(roundID uint64, id common.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimed[roundID][id]
}

// Register installs the contract handlers on backend.
func (m *Model) Register(backend *chaintest.Backend) {
	backend.HandleRead(round.MethodEmissions, m.address(func(d round.Dependencies) common.Address { return d.Emissions }))
	backend.HandleRead(round.MethodXAllocationPool, m.address(func(d round.Dependencies) common.Address { return d.XAllocationPool }))
	backend.HandleRead(round.MethodXAllocationVoting, m.address(func(d round.Dependencies) common.Address { return d.XAllocationVoting }))
	backend.HandleRead(round.MethodX2EarnApps, m.address(func(d round.Dependencies) common.Address { return d.X2EarnApps }))

	backend.HandleRead(round.MethodGetCurrentRoundID, func([]interface{}) ([]interface{}, error) {
		return []interface{}{new(big.Int).SetUint64(m.Current())}, nil
	})
	backend.HandleRead(round.MethodGetPreviousRoundID, func([]interface{}) ([]interface{}, error) {
		return []interface{}{new(big.Int).SetUint64(m.Previous())}, nil
	})
	backend.HandleRead(round.MethodGetAllXAppsForRound, func(args []interface{}) ([]interface{}, error) {
		return []interface{}{m.filter(roundArg(args), func(common.Hash, *big.Int, bool) bool { return true })}, nil
	})
	backend.HandleRead(round.MethodGetUnclaimedXAppsForRound, func(args []interface{}) ([]interface{}, error) {
		return []interface{}{m.filter(roundArg(args), unclaimed)}, nil
	})
	backend.HandleRead(round.MethodGetUnclaimedXAppsForPreviousRound, func([]interface{}) ([]interface{}, error) {
		return []interface{}{m.filter(m.Previous(), unclaimed)}, nil
	})
	backend.HandleRead(round.MethodGetUnclaimedXAppsWithNonZeroAmounts, func(args []interface{}) ([]interface{}, error) {
		return []interface{}{m.filter(roundArg(args), claimable)}, nil
	})
	backend.HandleRead(round.MethodGetUnclaimedXAppsWithAmounts, func(args []interface{}) ([]interface{}, error) {
		r := roundArg(args)
		ids := m.filter(r, unclaimed)

		m.mu.Lock()
		defer m.mu.Unlock()
		amounts := make([]*big.Int, len(ids))
		for i, id := range ids {
			amounts[i] = new(big.Int).Set(m.amounts[r][common.Hash(id)])
		}
		return []interface{}{ids, amounts}, nil
	})
	backend.HandleRead(round.MethodHasXAppClaimed, func(args []interface{}) ([]interface{}, error) {
		id := args[1].([32]byte)
		return []interface{}{m.Claimed(roundArg(args), common.Hash(id))}, nil
	})

	backend.HandleWrite(round.MethodClaimAllocationsForRound, func(_ common.Address, args []interface{}) bool {
		return m.claim(roundArg(args))
	})
	backend.HandleWrite(round.MethodClaimAllocationsForPreviousRound, func(common.Address, []interface{}) bool {
		return m.claim(m.Previous())
	})
	backend.HandleWrite(round.MethodStartNewRoundAndDistributeAllocations, func(from common.Address, _ []interface{}) bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.Operator != (common.Address{}) && from != m.Operator {
			return false
		}
		m.current++
		return true
	})
}

func (m *Model) previousLocked() uint64 {
	if m.current == 0 {
		return round.NoRound
	}
	return m.current - 1
}

// claim marks every claimable app of roundID as claimed. Open or future
// rounds revert.
func (m *Model) claim(roundID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if roundID == round.NoRound || roundID >= m.current {
		return false
	}
	n := 0
	for _, id := range m.apps[roundID] {
		if claimable(id, m.amounts[roundID][id], m.claimed[roundID][id]) {
			m.claimed[roundID][id] = true
			n++
		}
	}
	return n > 0 || !m.RevertWhenNothingToClaim
}

func (m *Model) filter(roundID uint64, keep func(common.Hash, *big.Int, bool) bool) [][32]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][32]byte, 0, len(m.apps[roundID]))
	for _, id := range m.apps[roundID] {
		if keep(id, m.amounts[roundID][id], m.claimed[roundID][id]) {
			out = append(out, id)
		}
	}
	return out
}

func (m *Model) address(pick func(round.Dependencies) common.Address) chaintest.ReadFunc {
	return func([]interface{}) ([]interface{}, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return []interface{}{pick(m.deps)}, nil
	}
}

func unclaimed(_ common.Hash, _ *big.Int, claimed bool) bool {
	return !claimed
}

func claimable(_ common.Hash, amount *big.Int, claimed bool) bool {
	return !claimed && amount != nil && amount.Sign() > 0
}

func roundArg(args []interface{}) uint64 {
	return args[0].(*big.Int).Uint64()
}
