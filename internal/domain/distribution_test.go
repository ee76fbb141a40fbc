package domain

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func testAccounts(n int) []Account {
	accounts := make([]Account, 0, n)
	for i := 1; i <= n; i++ {
		accounts = append(accounts, Account{ID: AccountID(fmt.Sprintf("acc-%d", i)), Name: fmt.Sprintf("Account %d", i)})
	}
	return accounts
}

func countByID(pool []Account) map[AccountID]int {
	counts := map[AccountID]int{}
	for _, account := range pool {
		counts[account.ID]++
	}
	return counts
}

// assertRepeatsOnlyInExhaustedTail checks that any adjacent repeat is followed
// exclusively by the same account, the only case the forward pass accepts.
func assertRepeatsOnlyInExhaustedTail(t *testing.T, pool []Account) {
	t.Helper()

	for i := 1; i < len(pool); i++ {
		if pool[i].ID != pool[i-1].ID {
			continue
		}
		for j := i; j < len(pool); j++ {
			require.Equal(t, pool[i].ID, pool[j].ID, "repeat at %d while a different account was still available at %d", i, j)
		}
	}
}

func TestDistributeAccountsLengthAndFairShare(t *testing.T) {
	t.Parallel()

	for accountsN := 1; accountsN <= 5; accountsN++ {
		for slots := 0; slots <= 23; slots++ {
			accounts := testAccounts(accountsN)
			pool := DistributeAccounts(accounts, slots, seeded(uint64(accountsN*100+slots)))

			require.Len(t, pool, slots)

			counts := countByID(pool)
			floor := slots / accountsN
			for _, account := range accounts {
				assert.GreaterOrEqual(t, counts[account.ID], floor, "accounts=%d slots=%d", accountsN, slots)
				assert.LessOrEqual(t, counts[account.ID], floor+1, "accounts=%d slots=%d", accountsN, slots)
			}
			assertRepeatsOnlyInExhaustedTail(t, pool)
		}
	}
}

func TestDistributeAccountsThreeAccountsNineSlots(t *testing.T) {
	t.Parallel()

	accounts := testAccounts(3)
	for seed := uint64(0); seed < 50; seed++ {
		pool := DistributeAccounts(accounts, 9, seeded(seed))

		require.Len(t, pool, 9)
		counts := countByID(pool)
		for _, account := range accounts {
			assert.Equal(t, 3, counts[account.ID])
		}
		assertRepeatsOnlyInExhaustedTail(t, pool)
	}
}

func TestDistributeAccountsSingleAccountRepeats(t *testing.T) {
	t.Parallel()

	account := Account{ID: "solo"}
	pool := DistributeAccounts([]Account{account}, 4, seeded(7))

	assert.Equal(t, []Account{account, account, account, account}, pool)
}

func TestDistributeAccountsEdgeCases(t *testing.T) {
	t.Parallel()

	assert.Empty(t, DistributeAccounts(testAccounts(3), 0, seeded(1)))
	assert.Nil(t, DistributeAccounts(nil, 5, seeded(1)))
}

func TestDistributeAccountsIsDeterministicForSeed(t *testing.T) {
	t.Parallel()

	accounts := testAccounts(4)
	first := DistributeAccounts(accounts, 10, seeded(42))
	second := DistributeAccounts(accounts, 10, seeded(42))

	assert.Equal(t, first, second)
}

func TestDistributeAccountsReducesAdjacentRepeats(t *testing.T) {
	t.Parallel()

	accounts := testAccounts(2)
	repeats := 0
	for seed := uint64(0); seed < 200; seed++ {
		pool := DistributeAccounts(accounts, 10, seeded(seed))
		for i := 1; i < len(pool); i++ {
			if pool[i].ID == pool[i-1].ID {
				repeats++
			}
		}
	}

	// An evenly split 2-account pool of 10 always leaves room to alternate.
	assert.Zero(t, repeats)
}

func TestAssignAccountsKeepsPreassignedAndOrder(t *testing.T) {
	t.Parallel()

	fixed := Account{ID: "fixed"}
	items := []WorkItem{
		{ID: "1", Text: "one"},
		{ID: "2", Text: "two", Account: &fixed},
		{ID: "3", Text: "three"},
	}

	assigned := AssignAccounts(items, testAccounts(2), seeded(3))

	require.Len(t, assigned, 3)
	assert.Equal(t, []WorkItemID{"1", "2", "3"}, []WorkItemID{assigned[0].ID, assigned[1].ID, assigned[2].ID})
	assert.Equal(t, AccountID("fixed"), assigned[1].Account.ID)
	require.NotNil(t, assigned[0].Account)
	require.NotNil(t, assigned[2].Account)
	assert.NotEqual(t, assigned[0].Account.ID, assigned[2].Account.ID)
	assert.Nil(t, items[0].Account, "input must not be mutated")
}

func TestAssignAccountsWithoutAccountsLeavesItemsUnassigned(t *testing.T) {
	t.Parallel()

	items := []WorkItem{{ID: "1"}, {ID: "2"}}
	assigned := AssignAccounts(items, nil, nil)

	assert.Equal(t, items, assigned)
}

func TestPickRandomAccounts(t *testing.T) {
	t.Parallel()

	accounts := testAccounts(5)

	picked := PickRandomAccounts(accounts, 3, seeded(9))
	require.Len(t, picked, 3)
	assert.Len(t, countByID(picked), 3)

	assert.Len(t, PickRandomAccounts(accounts, 10, seeded(9)), 5)
	assert.Nil(t, PickRandomAccounts(accounts, 0, seeded(9)))
}
