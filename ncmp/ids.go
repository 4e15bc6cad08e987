/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"fmt"
	"math/rand"
)

var ModuleSetTags = []string{"tagA", "tagB", "tagC", "tagD", "tagE"}

// MakeBatchOfCmHandleIds returns batch of ids, e.g. batch 2 of size 100 is ch-201 .. ch-300
func MakeBatchOfCmHandleIds(batchSize, batchNumber int) []string {
	startIndex := 1 + batchNumber*batchSize
	ids := make([]string, batchSize)
	for i := range ids {
		ids[i] = CmHandleId(startIndex + i)
	}
	return ids
}

// TotalBatches amount of batches needed to cover total handles
func TotalBatches(total, batchSize int) int {
	return (total + batchSize - 1) / batchSize
}

func CmHandleId(n int) string {
	return fmt.Sprintf("ch-%d", n)
}

// RandomCmHandleNumber uniform in [1, total]
func RandomCmHandleNumber(total int) int {
	return rand.Intn(total) + 1
}

func RandomCmHandleId(total int) string {
	return CmHandleId(RandomCmHandleNumber(total))
}

func AlternateId(n int) string {
	return fmt.Sprintf("/SubNetwork=Europe/SubNetwork=Ireland/MeContext=MyRadioNode%d/ManagedElement=MyManagedElement%d", n, n)
}

func RandomAlternateId(total int) string {
	return AlternateId(RandomCmHandleNumber(total))
}

// MakeRandomBatchOfAlternateIds returns size distinct alternate ids, size is limited by total
func MakeRandomBatchOfAlternateIds(size, total int) []string {
	if size > total {
		size = total
	}
	seen := make(map[int]struct{}, size)
	ids := make([]string, 0, size)
	for len(ids) < size {
		n := RandomCmHandleNumber(total)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		ids = append(ids, AlternateId(n))
	}
	return ids
}

// ModuleSetTag tag of n-th cm handle
func ModuleSetTag(n int) string {
	l := len(ModuleSetTags)
	return ModuleSetTags[((n-1)%l+l)%l]
}
