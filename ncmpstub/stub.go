/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

// Package ncmpstub is an in-memory NCMP with DMI delays for local runs and tests
package ncmpstub

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cps-perf/ncmploader"
)

const (
	StateAdvised = "ADVISED"
	StateReady   = "READY"

	DatastoreOperational = "ncmp-datastore:passthrough-operational"
	DatastoreRunning     = "ncmp-datastore:passthrough-running"
)

// Options stub behaviour
type Options struct {
	// ReadDelay dmi delay of pass-through read
	ReadDelay time.Duration
	// WriteDelay dmi delay of pass-through write
	WriteDelay time.Duration
	// ReadyAfter time after registration when a cm handle becomes READY
	ReadyAfter time.Duration
	// Modules every cm handle has
	Modules []string
}

func DefaultOptions() Options {
	return Options{
		ReadDelay:  300 * time.Millisecond,
		WriteDelay: 670 * time.Millisecond,
		Modules:    []string{"ietf-yang-types-1", "ietf-inet-types-1"},
	}
}

// BatchPublisher receives legacy batch read requests
type BatchPublisher interface {
	PublishBatchRead(topic, requestId string, targetIds []string) error
}

type cmHandle struct {
	Id           string
	AlternateId  string
	ModuleSetTag string
	TrustLevel   string
	Properties   map[string]string
	registeredAt time.Time
}

// Stub in-memory cm handle inventory
type Stub struct {
	mu      sync.RWMutex
	handles map[string]*cmHandle
	byAlt   map[string]string
	opts    Options
	pub     BatchPublisher
	L       *ncmploader.Logger
}

func New(opts Options, pub BatchPublisher, l *ncmploader.Logger) *Stub {
	if l == nil {
		l = ncmploader.NewNopLogger()
	}
	return &Stub{
		handles: make(map[string]*cmHandle),
		byAlt:   make(map[string]string),
		opts:    opts,
		pub:     pub,
		L:       l,
	}
}

// Count amount of registered cm handles
func (s *Stub) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handles)
}

func (s *Stub) state(h *cmHandle) string {
	if time.Since(h.registeredAt) >= s.opts.ReadyAfter {
		return StateReady
	}
	return StateAdvised
}

// sortedHandles snapshot ordered by numeric suffix of id
func (s *Stub) sortedHandles() []*cmHandle {
	s.mu.RLock()
	res := make([]*cmHandle, 0, len(s.handles))
	for _, h := range s.handles {
		res = append(res, h)
	}
	s.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		a, _ := strconv.Atoi(strings.TrimPrefix(res[i].Id, "ch-"))
		b, _ := strconv.Atoi(strings.TrimPrefix(res[j].Id, "ch-"))
		if a != b {
			return a < b
		}
		return res[i].Id < res[j].Id
	})
	return res
}

func (s *Stub) lookup(ref string) (*cmHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.handles[ref]; ok {
		return h, true
	}
	if id, ok := s.byAlt[ref]; ok {
		return s.handles[id], true
	}
	return nil, false
}

func errorJSON(c *gin.Context, status int, message, details string) {
	c.JSON(status, gin.H{
		"status":  strconv.Itoa(status),
		"message": message,
		"details": details,
	})
}

// Handler gin engine serving NCMP endpoints
func (s *Stub) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	// alternate ids contain escaped slashes
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.POST("/ncmpInventory/v1/ch", s.updateDmiRegistration)
	// searches share the position of cm handle reference
	r.POST("/ncmp/v1/ch/:ref", func(c *gin.Context) {
		switch c.Param("ref") {
		case "searches":
			s.search(c)
		case "id-searches":
			s.idSearch(c)
		default:
			errorJSON(c, http.StatusNotFound, "not found", c.Request.URL.Path)
		}
	})
	r.GET("/ncmp/v1/ch/:ref/data/ds/:datastore", s.passthroughRead)
	r.POST("/ncmp/v1/ch/:ref/data/ds/:datastore", s.passthroughWrite)
	r.POST("/ncmp/v1/data", s.dataOperation)
	r.POST("/do-not-use/dataJobs/:id/write", s.writeDataJob)
	return r
}

// Run serves stub on addr until the server is closed
func (s *Stub) Run(addr string) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.L.Error(err)
		}
	}()
	return srv
}

type createdCmHandle struct {
	CmHandle                 string            `json:"cmHandle"`
	AlternateId              string            `json:"alternateId"`
	ModuleSetTag             string            `json:"moduleSetTag"`
	TrustLevel               string            `json:"trustLevel"`
	PublicCmHandleProperties map[string]string `json:"publicCmHandleProperties"`
}

type registration struct {
	DmiPlugin         string            `json:"dmiPlugin"`
	CreatedCmHandles  []createdCmHandle `json:"createdCmHandles"`
	RemovedCmHandles  []string          `json:"removedCmHandles"`
	UpgradedCmHandles *struct {
		CmHandles    []string `json:"cmHandles"`
		ModuleSetTag string   `json:"moduleSetTag"`
	} `json:"upgradedCmHandles"`
}

func (s *Stub) updateDmiRegistration(c *gin.Context) {
	var req registration
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "malformed registration", err.Error())
		return
	}
	if req.DmiPlugin == "" {
		errorJSON(c, http.StatusBadRequest, "dmi plugin is required", "")
		return
	}
	now := time.Now()
	s.mu.Lock()
	for _, ch := range req.CreatedCmHandles {
		if old, ok := s.handles[ch.CmHandle]; ok {
			delete(s.byAlt, old.AlternateId)
		}
		s.handles[ch.CmHandle] = &cmHandle{
			Id:           ch.CmHandle,
			AlternateId:  ch.AlternateId,
			ModuleSetTag: ch.ModuleSetTag,
			TrustLevel:   ch.TrustLevel,
			Properties:   ch.PublicCmHandleProperties,
			registeredAt: now,
		}
		if ch.AlternateId != "" {
			s.byAlt[ch.AlternateId] = ch.CmHandle
		}
	}
	for _, id := range req.RemovedCmHandles {
		if h, ok := s.handles[id]; ok {
			delete(s.byAlt, h.AlternateId)
			delete(s.handles, id)
		}
	}
	if u := req.UpgradedCmHandles; u != nil {
		for _, id := range u.CmHandles {
			if h, ok := s.handles[id]; ok {
				h.ModuleSetTag = u.ModuleSetTag
				h.registeredAt = now
			}
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, []interface{}{})
}

func (s *Stub) filtered(c *gin.Context) ([]*cmHandle, bool) {
	var q query
	if err := c.ShouldBindJSON(&q); err != nil {
		errorJSON(c, http.StatusBadRequest, "malformed query", err.Error())
		return nil, false
	}
	match, err := s.matcher(q)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "unsupported query", err.Error())
		return nil, false
	}
	res := make([]*cmHandle, 0)
	for _, h := range s.sortedHandles() {
		if match(h) {
			res = append(res, h)
		}
	}
	return res, true
}

func (s *Stub) search(c *gin.Context) {
	handles, ok := s.filtered(c)
	if !ok {
		return
	}
	res := make([]gin.H, 0, len(handles))
	for _, h := range handles {
		res = append(res, gin.H{
			"cmHandle":                 h.Id,
			"alternateId":              h.AlternateId,
			"moduleSetTag":             h.ModuleSetTag,
			"trustLevel":               h.TrustLevel,
			"publicCmHandleProperties": []map[string]string{h.Properties},
			"state":                    gin.H{"cmHandleState": s.state(h)},
		})
	}
	c.JSON(http.StatusOK, res)
}

func (s *Stub) idSearch(c *gin.Context) {
	handles, ok := s.filtered(c)
	if !ok {
		return
	}
	alt := c.Query("outputAlternateId") == "true"
	res := make([]string, 0, len(handles))
	for _, h := range handles {
		if alt {
			res = append(res, h.AlternateId)
		} else {
			res = append(res, h.Id)
		}
	}
	c.JSON(http.StatusOK, res)
}

func (s *Stub) passthroughHandle(c *gin.Context, datastore string) (*cmHandle, bool) {
	if c.Param("datastore") != datastore {
		errorJSON(c, http.StatusBadRequest, "unsupported datastore", c.Param("datastore"))
		return nil, false
	}
	h, ok := s.lookup(c.Param("ref"))
	if !ok {
		errorJSON(c, http.StatusNotFound, "cm handle not found", c.Param("ref"))
		return nil, false
	}
	if c.Query("resourceIdentifier") == "" {
		errorJSON(c, http.StatusBadRequest, "resourceIdentifier is required", "")
		return nil, false
	}
	return h, true
}

func (s *Stub) passthroughRead(c *gin.Context) {
	h, ok := s.passthroughHandle(c, DatastoreOperational)
	if !ok {
		return
	}
	time.Sleep(s.opts.ReadDelay)
	c.JSON(http.StatusOK, gin.H{
		"cmHandle":           h.Id,
		"resourceIdentifier": c.Query("resourceIdentifier"),
		"data":               gin.H{"neType": "RadioNode"},
	})
}

func (s *Stub) passthroughWrite(c *gin.Context) {
	if _, ok := s.passthroughHandle(c, DatastoreRunning); !ok {
		return
	}
	if _, err := c.GetRawData(); err != nil {
		errorJSON(c, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}
	time.Sleep(s.opts.WriteDelay)
	c.Status(http.StatusCreated)
}

type dataOperationRequest struct {
	Operations []struct {
		TargetIds []string `json:"targetIds"`
		Operation string   `json:"operation"`
	} `json:"operations"`
}

func (s *Stub) dataOperation(c *gin.Context) {
	topic := c.Query("topic")
	if topic == "" {
		errorJSON(c, http.StatusBadRequest, "topic is required", "")
		return
	}
	var req dataOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "malformed data operation", err.Error())
		return
	}
	requestId := uuid.New().String()
	if s.pub != nil {
		targets := make([]string, 0)
		for _, op := range req.Operations {
			targets = append(targets, op.TargetIds...)
		}
		go func() {
			if err := s.pub.PublishBatchRead(topic, requestId, targets); err != nil {
				s.L.Errorf("failed to publish batch read %s: %s", requestId, err)
			}
		}()
	}
	c.JSON(http.StatusOK, gin.H{"requestId": requestId})
}

type dataJobRequest struct {
	DataJobMetadata struct {
		Destination string `json:"destination"`
	} `json:"dataJobMetadata"`
	DataJobWriteRequest struct {
		Data []struct {
			Path        string `json:"path"`
			Op          string `json:"op"`
			OperationId string `json:"operationId"`
		} `json:"data"`
	} `json:"dataJobWriteRequest"`
}

func (s *Stub) writeDataJob(c *gin.Context) {
	var req dataJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "malformed data job", err.Error())
		return
	}
	if req.DataJobMetadata.Destination == "" {
		errorJSON(c, http.StatusBadRequest, "destination is required", "")
		return
	}
	results := make([]gin.H, 0, len(req.DataJobWriteRequest.Data))
	for _, op := range req.DataJobWriteRequest.Data {
		status := "success"
		if _, ok := s.lookup(managedElementOf(op.Path)); !ok {
			status = "cm handle not found"
		}
		results = append(results, gin.H{"operationId": op.OperationId, "status": status})
	}
	c.JSON(http.StatusOK, gin.H{"dataJobId": c.Param("id"), "results": results})
}

// managedElementOf alternate id prefix of a data job path, up to the ManagedElement rdn
func managedElementOf(path string) string {
	i := strings.Index(path, "/ManagedElement=")
	if i < 0 {
		return path
	}
	if j := strings.Index(path[i+1:], "/"); j >= 0 {
		return path[:i+1+j]
	}
	return path
}
