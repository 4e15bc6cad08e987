/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type DataJobMetadata struct {
	Destination     string `json:"destination"`
	DataAcceptType  string `json:"dataAcceptType"`
	DataContentType string `json:"dataContentType"`
}

type WriteOperation struct {
	Path        string            `json:"path"`
	Op          string            `json:"op"`
	OperationId string            `json:"operationId"`
	Value       map[string]string `json:"value"`
}

type DataJobWriteRequest struct {
	Data []WriteOperation `json:"data"`
}

// DataJobRequest write data job body
type DataJobRequest struct {
	DataJobMetadata     DataJobMetadata     `json:"dataJobMetadata"`
	DataJobWriteRequest DataJobWriteRequest `json:"dataJobWriteRequest"`
}

// NewDataJobRequest builds n operations, add and merge for n/2 random managed elements
func NewDataJobRequest(n, totalCmHandles int) DataJobRequest {
	ops := make([]WriteOperation, 0, n)
	for i := 1; i <= n/2; i++ {
		base := RandomAlternateId(totalCmHandles)
		ops = append(ops,
			WriteOperation{
				Path:        base + "/SomeChild=child-1",
				Op:          "add",
				OperationId: fmt.Sprintf("%d-1", i),
				Value:       map[string]string{"key": fmt.Sprintf("some-value-one-%d", i)},
			},
			WriteOperation{
				Path:        base + "/SomeChild=child-2/SomeGrandChild=grand-child-2",
				Op:          "merge",
				OperationId: fmt.Sprintf("%d-2", i),
				Value:       map[string]string{"key": fmt.Sprintf("some-value-two-%d", i)},
			},
		)
	}
	return DataJobRequest{
		DataJobMetadata: DataJobMetadata{
			Destination:     "device/managed-element-collection",
			DataAcceptType:  "application/json",
			DataContentType: "application/merge-patch+json",
		},
		DataJobWriteRequest: DataJobWriteRequest{Data: ops},
	}
}

func DataJobPath(jobId string) string {
	return fmt.Sprintf("/do-not-use/dataJobs/%s/write", jobId)
}

// ExecuteWriteDataJob sends write data job with n operations under a random job id
func (c *Client) ExecuteWriteDataJob(ctx context.Context, n int) Response {
	jobId := uuid.New().String()
	c.L.Debugf("starting write data job %s, operations: %d", jobId, n)
	return c.PostJSON(ctx, DataJobPath(jobId), NewDataJobRequest(n, c.cfg.TotalCmHandles))
}
