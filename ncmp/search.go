/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"context"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

const (
	searchesPath   = "/ncmp/v1/ch/searches"
	idSearchesPath = "/ncmp/v1/ch/id-searches"
)

// Search filter names
const (
	FilterNoFilter       = "no-filter"
	FilterModule         = "module"
	FilterProperty       = "property"
	FilterCpsPath        = "cps-path-for-ready-cm-handles"
	FilterTrustLevel     = "trust-level"
	FilterReadyCmHandles = "readyCmHandles"
)

// Search condition names understood by NCMP
const (
	ConditionHasAllModules          = "hasAllModules"
	ConditionHasAllProperties       = "hasAllProperties"
	ConditionCmHandleWithCpsPath    = "cmHandleWithCpsPath"
	ConditionCmHandleWithTrustLevel = "cmHandleWithTrustLevel"
)

var ErrUnknownSearchFilter = errors.New("unknown search filter")

type QueryParameter struct {
	ConditionName       string              `json:"conditionName"`
	ConditionParameters []map[string]string `json:"conditionParameters"`
}

// SearchRequest body of cm handle search and id search
type SearchRequest struct {
	CmHandleQueryParameters []QueryParameter `json:"cmHandleQueryParameters,omitempty"`
}

func condition(name, key, value string) SearchRequest {
	return SearchRequest{CmHandleQueryParameters: []QueryParameter{{
		ConditionName:       name,
		ConditionParameters: []map[string]string{{key: value}},
	}}}
}

var readyCpsPath = condition(ConditionCmHandleWithCpsPath, "cpsPath", "//state[@cm-handle-state='READY']")

var searchFilters = map[string]SearchRequest{
	FilterNoFilter:       {},
	FilterModule:         condition(ConditionHasAllModules, "moduleName", "ietf-yang-types-1"),
	FilterProperty:       condition(ConditionHasAllProperties, "Color", "yellow"),
	FilterCpsPath:        readyCpsPath,
	FilterTrustLevel:     condition(ConditionCmHandleWithTrustLevel, "trustLevel", TrustLevelComplete),
	FilterReadyCmHandles: readyCpsPath,
}

// SearchFilter request body of named filter
func SearchFilter(name string) (SearchRequest, error) {
	f, ok := searchFilters[name]
	if !ok {
		return SearchRequest{}, errors.Wrap(ErrUnknownSearchFilter, name)
	}
	return f, nil
}

// SearchFilterNames sorted names of known filters
func SearchFilterNames() []string {
	names := make([]string, 0, len(searchFilters))
	for n := range searchFilters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ExecuteCmHandleSearch searches cm handles with named filter
func (c *Client) ExecuteCmHandleSearch(ctx context.Context, filter string) (Response, error) {
	body, err := SearchFilter(filter)
	if err != nil {
		return Response{}, err
	}
	return c.PostJSON(ctx, searchesPath, body), nil
}

// ExecuteCmHandleIdSearch searches cm handle ids (or alternate ids) with named filter
func (c *Client) ExecuteCmHandleIdSearch(ctx context.Context, filter string, outputAlternateId bool) (Response, error) {
	body, err := SearchFilter(filter)
	if err != nil {
		return Response{}, err
	}
	return c.PostJSON(ctx, idSearchesPath+"?outputAlternateId="+strconv.FormatBool(outputAlternateId), body), nil
}
