/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cps-perf/ncmploader"
)

const (
	inventoryPath = "/ncmpInventory/v1/ch"

	TrustLevelComplete = "COMPLETE"
)

var errNotReadyInTime = errors.New("cm handles are not ready in time")

type CmHandleProperties struct {
	NeType string `json:"neType"`
}

type PublicCmHandleProperties struct {
	Color string `json:"Color"`
	Size  string `json:"Size"`
	Shape string `json:"Shape"`
}

// CmHandle registration entry
type CmHandle struct {
	CmHandle                 string                   `json:"cmHandle"`
	CmHandleProperties       CmHandleProperties       `json:"cmHandleProperties"`
	PublicCmHandleProperties PublicCmHandleProperties `json:"publicCmHandleProperties"`
	AlternateId              string                   `json:"alternateId"`
	ModuleSetTag             string                   `json:"moduleSetTag"`
	DataProducerIdentifier   string                   `json:"dataProducerIdentifier,omitempty"`
	TrustLevel               string                   `json:"trustLevel,omitempty"`
}

type UpgradedCmHandles struct {
	CmHandles    []string `json:"cmHandles"`
	ModuleSetTag string   `json:"moduleSetTag"`
}

// RegistrationRequest dmi plugin registration body
type RegistrationRequest struct {
	DmiPlugin         string             `json:"dmiPlugin"`
	CreatedCmHandles  []CmHandle         `json:"createdCmHandles,omitempty"`
	RemovedCmHandles  []string           `json:"removedCmHandles,omitempty"`
	UpgradedCmHandles *UpgradedCmHandles `json:"upgradedCmHandles,omitempty"`
}

// NewCmHandle registration entry for ch-<n>
func NewCmHandle(n int) CmHandle {
	return CmHandle{
		CmHandle:           CmHandleId(n),
		CmHandleProperties: CmHandleProperties{NeType: "RadioNode"},
		PublicCmHandleProperties: PublicCmHandleProperties{
			Color: "yellow",
			Size:  "small",
			Shape: "cube",
		},
		AlternateId:            AlternateId(n),
		ModuleSetTag:           ModuleSetTag(n),
		DataProducerIdentifier: "dataProducer-" + strconv.Itoa(n),
		TrustLevel:             TrustLevelComplete,
	}
}

func cmHandleNumber(id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "ch-"))
	if err != nil || !strings.HasPrefix(id, "ch-") {
		return 0, errors.Errorf("bad cm handle id %s", id)
	}
	return n, nil
}

func (c *Client) CreateCmHandles(ctx context.Context, ids []string) Response {
	handles := make([]CmHandle, 0, len(ids))
	for _, id := range ids {
		n, err := cmHandleNumber(id)
		if err != nil {
			return Response{Err: err}
		}
		handles = append(handles, NewCmHandle(n))
	}
	return c.PostJSON(ctx, inventoryPath, RegistrationRequest{
		DmiPlugin:        c.cfg.DMIStubURL,
		CreatedCmHandles: handles,
	})
}

func (c *Client) DeleteCmHandles(ctx context.Context, ids []string) Response {
	return c.PostJSON(ctx, inventoryPath, RegistrationRequest{
		DmiPlugin:        c.cfg.DMIStubURL,
		RemovedCmHandles: ids,
	})
}

// UpgradeCmHandles moves cm handles to another module set tag
func (c *Client) UpgradeCmHandles(ctx context.Context, ids []string, moduleSetTag string) Response {
	return c.PostJSON(ctx, inventoryPath, RegistrationRequest{
		DmiPlugin: c.cfg.DMIStubURL,
		UpgradedCmHandles: &UpgradedCmHandles{
			CmHandles:    ids,
			ModuleSetTag: moduleSetTag,
		},
	})
}

// RegisterAll registers all batches, returns elapsed time and amount of successfully registered cm handles
func (c *Client) RegisterAll(ctx context.Context, checks Checker) (time.Duration, int, error) {
	return c.forEachBatch(ctx, checks, "create CM-handles", c.CreateCmHandles)
}

// DeregisterAll removes all batches, returns elapsed time and amount of successfully removed cm handles
func (c *Client) DeregisterAll(ctx context.Context, checks Checker) (time.Duration, int, error) {
	return c.forEachBatch(ctx, checks, "delete CM-handles", c.DeleteCmHandles)
}

func (c *Client) forEachBatch(ctx context.Context, checks Checker, label string, f func(context.Context, []string) Response) (time.Duration, int, error) {
	if checks == nil {
		checks = nopChecker{}
	}
	start := time.Now()
	total := c.cfg.TotalCmHandles
	batches := TotalBatches(total, c.cfg.RegistrationBatchSize)
	processed := 0
	for batch := 0; batch < batches; batch++ {
		if err := ctx.Err(); err != nil {
			return time.Since(start), processed, err
		}
		ids := MakeBatchOfCmHandleIds(c.cfg.RegistrationBatchSize, batch)
		// last batch doesn't go beyond total
		if rest := total - batch*c.cfg.RegistrationBatchSize; rest < len(ids) {
			ids = ids[:rest]
		}
		resp := f(ctx, ids)
		if checks.Check(label+" status equals 200", resp.Status == http.StatusOK) {
			processed += len(ids)
		} else {
			c.L.Errorf("%s batch %d failed: %s, status: %d, details: %s", label, batch, ncmploader.FailureCategory(resp.Status), resp.Status, failureDetails(resp))
		}
	}
	return time.Since(start), processed, nil
}

// NumberOfReadyCmHandles amount of cm handles in READY state
func (c *Client) NumberOfReadyCmHandles(ctx context.Context) (int, error) {
	resp, err := c.ExecuteCmHandleIdSearch(ctx, FilterReadyCmHandles, false)
	if err != nil {
		return 0, err
	}
	if resp.Err != nil {
		return 0, resp.Err
	}
	if resp.Status != http.StatusOK {
		return 0, errors.Errorf("ready cm handles search failed with status %d", resp.Status)
	}
	return resp.ArrayLength()
}

// WaitForAllCmHandlesToBeReady polls ready cm handles until all are READY
func (c *Client) WaitForAllCmHandlesToBeReady(ctx context.Context) error {
	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout())
	defer cancel()
	total := c.cfg.TotalCmHandles
	for range ncmploader.ImmediateTicker(pollCtx, c.cfg.PollInterval()) {
		ready, err := c.NumberOfReadyCmHandles(pollCtx)
		if err != nil {
			c.L.Warnf("failed to get ready cm handles: %s", err)
			continue
		}
		c.L.Infof("%d/%d CM handles are READY", ready, total)
		if ready >= total {
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrapf(errNotReadyInTime, "timeout %s", c.cfg.ReadyTimeout())
}
