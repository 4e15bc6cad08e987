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
	"net/url"
)

const (
	DatastoreOperational = "ncmp-datastore:passthrough-operational"
	DatastoreRunning     = "ncmp-datastore:passthrough-running"

	resourceIdentifier = "my-resource-identifier"
	dataPath           = "/ncmp/v1/data"
)

// PassthroughWriteBody body of pass-through write
var PassthroughWriteBody = map[string]string{"neType": "BaseStation"}

// PassthroughPath pass-through data path, cm handle reference is path escaped
func PassthroughPath(cmHandleReference, datastore string, includeDescendants bool) string {
	p := fmt.Sprintf("/ncmp/v1/ch/%s/data/ds/%s?resourceIdentifier=%s",
		url.PathEscape(cmHandleReference), datastore, resourceIdentifier)
	if includeDescendants {
		p += "&include-descendants=true"
	}
	return p
}

func (c *Client) randomReference(alt bool) string {
	if alt {
		return RandomAlternateId(c.cfg.TotalCmHandles)
	}
	return RandomCmHandleId(c.cfg.TotalCmHandles)
}

// PassthroughRead reads operational data of random cm handle
func (c *Client) PassthroughRead(ctx context.Context, alt bool) Response {
	return c.Get(ctx, PassthroughPath(c.randomReference(alt), DatastoreOperational, true))
}

// PassthroughWrite writes running data of random cm handle
func (c *Client) PassthroughWrite(ctx context.Context, alt bool) Response {
	return c.PostJSON(ctx, PassthroughPath(c.randomReference(alt), DatastoreRunning, false), PassthroughWriteBody)
}

type DataOperation struct {
	ResourceIdentifier string   `json:"resourceIdentifier"`
	TargetIds          []string `json:"targetIds"`
	Datastore          string   `json:"datastore"`
	Options            string   `json:"options"`
	OperationId        string   `json:"operationId"`
	Operation          string   `json:"operation"`
}

// DataOperationRequest legacy batch read body
type DataOperationRequest struct {
	Operations []DataOperation `json:"operations"`
}

func NewBatchReadRequest(targetIds []string) DataOperationRequest {
	return DataOperationRequest{Operations: []DataOperation{{
		ResourceIdentifier: "parent/child",
		TargetIds:          targetIds,
		Datastore:          DatastoreOperational,
		Options:            "(fields=schemas/schema)",
		OperationId:        "12",
		Operation:          "read",
	}}}
}

// LegacyBatchRead asks NCMP to read data of targets, results are published to the legacy batch topic
func (c *Client) LegacyBatchRead(ctx context.Context, targetIds []string) Response {
	return c.PostJSON(ctx, dataPath+"?topic="+url.QueryEscape(c.cfg.LegacyBatchTopic), NewBatchReadRequest(targetIds))
}
