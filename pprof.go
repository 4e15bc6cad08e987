/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"sync"
)

var pprofOnce sync.Once

func pprofHandlers(r *http.ServeMux) {
	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func servePprof(port int, l *Logger) {
	pprofOnce.Do(func() {
		go func() {
			m := http.NewServeMux()
			pprofHandlers(m)
			l.Infof("serving pprof on :%d", port)
			if err := http.ListenAndServe(fmt.Sprintf(":%d", port), m); err != nil {
				l.Errorf("pprof server: %v", err)
			}
		}()
	})
}
