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

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

func TestSearchFilters(t *testing.T) {
	cases := map[string]string{
		FilterNoFilter:       `{}`,
		FilterModule:         `{"cmHandleQueryParameters":[{"conditionName":"hasAllModules","conditionParameters":[{"moduleName":"ietf-yang-types-1"}]}]}`,
		FilterProperty:       `{"cmHandleQueryParameters":[{"conditionName":"hasAllProperties","conditionParameters":[{"Color":"yellow"}]}]}`,
		FilterCpsPath:        `{"cmHandleQueryParameters":[{"conditionName":"cmHandleWithCpsPath","conditionParameters":[{"cpsPath":"//state[@cm-handle-state='READY']"}]}]}`,
		FilterReadyCmHandles: `{"cmHandleQueryParameters":[{"conditionName":"cmHandleWithCpsPath","conditionParameters":[{"cpsPath":"//state[@cm-handle-state='READY']"}]}]}`,
		FilterTrustLevel:     `{"cmHandleQueryParameters":[{"conditionName":"cmHandleWithTrustLevel","conditionParameters":[{"trustLevel":"COMPLETE"}]}]}`,
	}
	for name, expected := range cases {
		f, err := SearchFilter(name)
		require.NoError(t, err)
		b, err := jsoniter.Marshal(f)
		require.NoError(t, err)
		require.JSONEq(t, expected, string(b), name)
	}
	require.Len(t, SearchFilterNames(), len(cases))
}

func TestNewCmHandle(t *testing.T) {
	b, err := jsoniter.Marshal(NewCmHandle(6))
	require.NoError(t, err)
	require.JSONEq(t, `{
		"cmHandle": "ch-6",
		"cmHandleProperties": {"neType": "RadioNode"},
		"publicCmHandleProperties": {"Color": "yellow", "Size": "small", "Shape": "cube"},
		"alternateId": "/SubNetwork=Europe/SubNetwork=Ireland/MeContext=MyRadioNode6/ManagedElement=MyManagedElement6",
		"moduleSetTag": "tagA",
		"dataProducerIdentifier": "dataProducer-6",
		"trustLevel": "COMPLETE"
	}`, string(b))
}

func TestDeregistrationPayload(t *testing.T) {
	b, err := jsoniter.Marshal(RegistrationRequest{DmiPlugin: "http://dmi", RemovedCmHandles: []string{"ch-1"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"dmiPlugin":"http://dmi","removedCmHandles":["ch-1"]}`, string(b))
}

func TestBatchReadRequest(t *testing.T) {
	b, err := jsoniter.Marshal(NewBatchReadRequest([]string{"a", "b"}))
	require.NoError(t, err)
	require.JSONEq(t, `{"operations":[{
		"resourceIdentifier": "parent/child",
		"targetIds": ["a", "b"],
		"datastore": "ncmp-datastore:passthrough-operational",
		"options": "(fields=schemas/schema)",
		"operationId": "12",
		"operation": "read"
	}]}`, string(b))
}

func TestDataJobRequest(t *testing.T) {
	req := NewDataJobRequest(4, 10)
	require.Equal(t, "device/managed-element-collection", req.DataJobMetadata.Destination)
	require.Equal(t, "application/json", req.DataJobMetadata.DataAcceptType)
	require.Equal(t, "application/merge-patch+json", req.DataJobMetadata.DataContentType)

	ops := req.DataJobWriteRequest.Data
	require.Len(t, ops, 4)
	require.Equal(t, "add", ops[0].Op)
	require.Equal(t, "1-1", ops[0].OperationId)
	require.True(t, strings.HasSuffix(ops[0].Path, "/SomeChild=child-1"))
	require.Equal(t, map[string]string{"key": "some-value-one-1"}, ops[0].Value)
	require.Equal(t, "merge", ops[1].Op)
	require.Equal(t, "1-2", ops[1].OperationId)
	require.True(t, strings.HasSuffix(ops[1].Path, "/SomeChild=child-2/SomeGrandChild=grand-child-2"))
	require.Equal(t, map[string]string{"key": "some-value-two-2"}, ops[3].Value)
	// both operations of a pair target the same managed element
	require.Equal(t, strings.TrimSuffix(ops[2].Path, "/SomeChild=child-1"),
		strings.TrimSuffix(ops[3].Path, "/SomeChild=child-2/SomeGrandChild=grand-child-2"))

	require.Len(t, NewDataJobRequest(100, 10).DataJobWriteRequest.Data, 100)
	require.Equal(t, "/do-not-use/dataJobs/42/write", DataJobPath("42"))
}
