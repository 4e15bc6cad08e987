/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package suite

import (
	"github.com/invopop/jsonschema"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/cps-perf/ncmploader"
)

const profileSchemaID = "https://github.com/cps-perf/ncmploader/profile.schema.json"

// ProfileSchema JSON schema of profile files, scenario exec is limited to registered scenarios
func ProfileSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(&Profile{})
	s.ID = profileSchemaID
	s.Title = "ncmploader profile"
	if sc, ok := s.Properties.Get("scenarios"); ok && sc.AdditionalProperties != nil {
		if exec, ok := sc.AdditionalProperties.Properties.Get("exec"); ok {
			for _, name := range ncmploader.RegisteredAttackers() {
				exec.Enum = append(exec.Enum, name)
			}
		}
	}
	b, err := jsoniter.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal profile schema")
	}
	return b, nil
}
