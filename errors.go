/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"github.com/pkg/errors"
)

var (
	errAttackDoTimedOut = "attack Do(ctx) timeout"
	errAttackerSetup    = errors.New("error when setup attacker")
	errNodeIsBusy       = "node %s is already running scenario %s"

	// ErrInvalidConfig returned when runner config has problems
	ErrInvalidConfig = errors.New("invalid runner config")
	// ErrUnknownAttacker returned when no attacker registered for a name
	ErrUnknownAttacker = errors.New("unknown attacker")
	// ErrUnknownMetric returned when no metric registered for a name
	ErrUnknownMetric = errors.New("unknown metric")
)
