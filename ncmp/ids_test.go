/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeBatchOfCmHandleIds(t *testing.T) {
	ids := MakeBatchOfCmHandleIds(100, 2)
	require.Len(t, ids, 100)
	require.Equal(t, "ch-201", ids[0])
	require.Equal(t, "ch-300", ids[99])
	require.Equal(t, []string{"ch-1", "ch-2"}, MakeBatchOfCmHandleIds(2, 0))
}

func TestTotalBatches(t *testing.T) {
	require.Equal(t, 25, TotalBatches(50000, 2000))
	require.Equal(t, 3, TotalBatches(5, 2))
	require.Equal(t, 1, TotalBatches(1, 100))
}

func TestRandomCmHandleIdInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n := RandomCmHandleNumber(3)
		require.True(t, n >= 1 && n <= 3)
	}
	require.Equal(t, "ch-1", RandomCmHandleId(1))
}

func TestAlternateId(t *testing.T) {
	require.Equal(t, "/SubNetwork=Europe/SubNetwork=Ireland/MeContext=MyRadioNode7/ManagedElement=MyManagedElement7", AlternateId(7))
	require.True(t, strings.HasPrefix(RandomAlternateId(10), "/SubNetwork=Europe/SubNetwork=Ireland/MeContext=MyRadioNode"))
}

func TestMakeRandomBatchOfAlternateIdsDistinct(t *testing.T) {
	ids := MakeRandomBatchOfAlternateIds(200, 250)
	require.Len(t, ids, 200)
	seen := make(map[string]struct{})
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, id)
		seen[id] = struct{}{}
	}
	// clamped to total
	require.Len(t, MakeRandomBatchOfAlternateIds(10, 4), 4)
}

func TestModuleSetTagCycles(t *testing.T) {
	require.Equal(t, "tagA", ModuleSetTag(1))
	require.Equal(t, "tagE", ModuleSetTag(5))
	require.Equal(t, "tagA", ModuleSetTag(6))
	require.Equal(t, "tagE", ModuleSetTag(0))
}
