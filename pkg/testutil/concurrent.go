package testutil

import (
	"sync"

	dErrors "ecertify/pkg/domain-errors"
)

// ConcurrentResult sorts the outcomes of RunConcurrent. Rejected counts calls
// the ledger refused on a rule; Errors counts internal failures and timeouts,
// which a correct ledger should never produce under contention.
type ConcurrentResult struct {
	Successes int32
	Rejected  int32
	Errors    int32
	// Codes tallies the domain code of every failed call.
	Codes map[dErrors.Code]int
}

// RunConcurrent releases n goroutines at once, each calling fn with its index,
// and waits for all of them.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	errs := make([]error, n)
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			<-gate
			errs[i] = fn(i)
		})
	}
	close(gate)
	wg.Wait()

	res := &ConcurrentResult{Codes: map[dErrors.Code]int{}}
	for _, err := range errs {
		if err == nil {
			res.Successes++
			continue
		}
		code := dErrors.CodeOf(err)
		res.Codes[code]++
		if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
			res.Errors++
		} else {
			res.Rejected++
		}
	}
	return res
}
