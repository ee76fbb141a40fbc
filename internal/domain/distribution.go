package domain

import "math/rand/v2"

// Shuffler is the random source used by the distributor. *rand.Rand satisfies it.
type Shuffler interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

func defaultShuffler() Shuffler {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// DistributeAccounts assigns accounts to slots fairly and without predictable order.
//
// Every account appears floor(slots/len(accounts)) times before any account
// appears once more. Adjacent repeats are broken up by a single forward pass;
// a repeat survives only when every later slot holds the same account.
func DistributeAccounts(accounts []Account, slots int, rng Shuffler) []Account {
	if len(accounts) == 0 {
		return nil
	}
	if slots <= 0 {
		return []Account{}
	}
	if rng == nil {
		rng = defaultShuffler()
	}

	pool := make([]Account, 0, slots+len(accounts))
	for len(pool) < slots {
		batch := make([]Account, len(accounts))
		copy(batch, accounts)
		rng.Shuffle(len(batch), func(i, j int) {
			batch[i], batch[j] = batch[j], batch[i]
		})
		pool = append(pool, batch...)
	}
	pool = pool[:slots]

	for i := len(pool) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}

	if len(accounts) > 1 {
		for i := 1; i < len(pool); i++ {
			if pool[i].ID != pool[i-1].ID {
				continue
			}
			for j := i + 1; j < len(pool); j++ {
				if pool[j].ID != pool[i].ID {
					pool[i], pool[j] = pool[j], pool[i]
					break
				}
			}
		}
	}

	return pool
}

// AssignAccounts returns a copy of items where every unassigned item receives an
// account from DistributeAccounts. Pre-assigned items keep their account.
func AssignAccounts(items []WorkItem, accounts []Account, rng Shuffler) []WorkItem {
	result := make([]WorkItem, len(items))
	copy(result, items)
	if len(accounts) == 0 {
		return result
	}

	open := 0
	for _, item := range result {
		if item.Account == nil {
			open++
		}
	}

	distributed := DistributeAccounts(accounts, open, rng)
	next := 0
	for i := range result {
		if result[i].Account != nil {
			continue
		}
		account := distributed[next]
		result[i].Account = &account
		next++
	}

	return result
}

// PickRandomAccounts returns up to n accounts chosen uniformly at random.
func PickRandomAccounts(accounts []Account, n int, rng Shuffler) []Account {
	if n <= 0 || len(accounts) == 0 {
		return nil
	}
	if rng == nil {
		rng = defaultShuffler()
	}
	if n > len(accounts) {
		n = len(accounts)
	}

	shuffled := make([]Account, len(accounts))
	copy(shuffled, accounts)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return shuffled[:n]
}
