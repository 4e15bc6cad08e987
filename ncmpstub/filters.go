/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmpstub

import (
	"regexp"

	"github.com/pkg/errors"
)

type condition struct {
	ConditionName       string              `json:"conditionName"`
	ConditionParameters []map[string]string `json:"conditionParameters"`
}

type query struct {
	CmHandleQueryParameters []condition `json:"cmHandleQueryParameters"`
}

type matchFunc func(h *cmHandle) bool

// only state lookups are supported
var stateCpsPath = regexp.MustCompile(`^//state\[@cm-handle-state='([A-Z]+)'\]$`)

func (s *Stub) matcher(q query) (matchFunc, error) {
	fs := make([]matchFunc, 0, len(q.CmHandleQueryParameters))
	for _, cond := range q.CmHandleQueryParameters {
		f, err := s.conditionMatcher(cond)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return func(h *cmHandle) bool {
		for _, f := range fs {
			if !f(h) {
				return false
			}
		}
		return true
	}, nil
}

func (s *Stub) conditionMatcher(cond condition) (matchFunc, error) {
	switch cond.ConditionName {
	case "hasAllModules":
		want := make([]string, 0)
		for _, p := range cond.ConditionParameters {
			want = append(want, p["moduleName"])
		}
		return func(_ *cmHandle) bool {
			return containsAll(s.opts.Modules, want)
		}, nil
	case "hasAllProperties":
		return func(h *cmHandle) bool {
			for _, p := range cond.ConditionParameters {
				for k, v := range p {
					if h.Properties[k] != v {
						return false
					}
				}
			}
			return true
		}, nil
	case "cmHandleWithCpsPath":
		if len(cond.ConditionParameters) != 1 {
			return nil, errors.New("cmHandleWithCpsPath needs one cpsPath")
		}
		path := cond.ConditionParameters[0]["cpsPath"]
		m := stateCpsPath.FindStringSubmatch(path)
		if m == nil {
			return nil, errors.Errorf("unsupported cps path %s", path)
		}
		return func(h *cmHandle) bool {
			return s.state(h) == m[1]
		}, nil
	case "cmHandleWithTrustLevel":
		if len(cond.ConditionParameters) != 1 {
			return nil, errors.New("cmHandleWithTrustLevel needs one trustLevel")
		}
		level := cond.ConditionParameters[0]["trustLevel"]
		return func(h *cmHandle) bool {
			return h.TrustLevel == level
		}, nil
	default:
		return nil, errors.Errorf("unknown condition %s", cond.ConditionName)
	}
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
