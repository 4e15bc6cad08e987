/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	atkRegistryMu sync.RWMutex
	atkRegistry   = make(map[string]Attack)
)

// RegisterAttacker registers attacker prototype by scenario exec name
func RegisterAttacker(name string, atk Attack) {
	atkRegistryMu.Lock()
	defer atkRegistryMu.Unlock()
	atkRegistry[name] = atk
}

func AttackerFromString(name string) (Attack, error) {
	atkRegistryMu.RLock()
	defer atkRegistryMu.RUnlock()
	atk, ok := atkRegistry[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownAttacker, name)
	}
	return atk, nil
}

// RegisteredAttackers sorted names of all registered attackers
func RegisteredAttackers() []string {
	atkRegistryMu.RLock()
	defer atkRegistryMu.RUnlock()
	names := make([]string, 0, len(atkRegistry))
	for n := range atkRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
