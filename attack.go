/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"context"
	"time"
)

// Attack must be implemented by a scenario.
type Attack interface {
	// Setup should establish the connection to the service
	// It may want to access the Config of the Runner.
	Setup(c RunnerConfig) error
	// Do performs one iteration and is executed in a separate goroutine.
	// The context is used to cancel the request on timeout.
	Do(ctx context.Context) DoResult
	// Teardown can be used to close the connection to the service
	Teardown() error
	// Clone should return a fresh new Attack
	// Make sure the new Attack has values for shared struct fields initialized at Setup.
	Clone(r *Runner) Attack
}

// attack receives schedule signal and attacks target calling Do() method, returning AttackResult with timings
func attack(a Attack, r *Runner, num int) {
	l := r.L.With("attacker", num)
	for {
		select {
		case <-r.TimeoutCtx.Done():
			l.Debugf("stopping attacker")
			return
		case token, ok := <-r.next:
			if !ok {
				l.Debugf("schedule is over, stopping attacker")
				return
			}
			res, ok := doAttack(a, r, token)
			if !ok {
				return
			}
			r.results <- res
		}
	}
}

// closedLoopAttack attacks target again as soon as previous iteration completes
func closedLoopAttack(a Attack, r *Runner, num int) {
	l := r.L.With("attacker", num)
	for {
		if r.TimeoutCtx.Err() != nil {
			l.Debugf("stopping attacker")
			return
		}
		res, ok := doAttack(a, r, attackToken{Step: 1, Tick: r.currentTick()})
		if !ok {
			return
		}
		r.results <- res
	}
}

// doAttack calls Do() bounded by attacker timeout, returns false if the test ended while Do() was in flight
func doAttack(a Attack, r *Runner, token attackToken) (AttackResult, bool) {
	ctx, cancel := context.WithTimeout(r.TimeoutCtx, time.Duration(r.Cfg.AttackerTimeout)*time.Second)
	defer cancel()

	done := make(chan DoResult, 1)
	tStart := time.Now()
	go func() {
		done <- a.Do(ctx)
	}()

	var doResult DoResult
	select {
	case doResult = <-done:
	case <-ctx.Done():
	}
	if ctx.Err() != nil {
		// request still hangs when the test ends, but it's not an error because test has ended
		if r.TimeoutCtx.Err() != nil {
			return AttackResult{}, false
		}
		doResult = DoResult{RequestLabel: r.Name, Error: errAttackDoTimedOut, HTTP: doResult.HTTP}
	}
	tEnd := time.Now()

	return AttackResult{
		AttackToken: token,
		Begin:       tStart,
		End:         tEnd,
		Elapsed:     tEnd.Sub(tStart),
		DoResult:    doResult,
	}, true
}
