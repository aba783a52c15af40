//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

const testToken = "integration-test-token"

// fakeNimbusServer is an in-memory Nimbus API for end-to-end workflow tests.
// It serves the zone and record endpoints with real pagination semantics and
// supports failure injection for resilience scenarios.
type fakeNimbusServer struct {
	mu        sync.Mutex
	zones     map[string]*nimbus.Zone
	zoneOrder []string
	records   map[string][]*nimbus.Record
	nextID    int

	// failuresLeft injects that many 503 responses before serving normally.
	failuresLeft int
	requests     int
}

func newFakeNimbusServer() *fakeNimbusServer {
	return &fakeNimbusServer{
		zones:   make(map[string]*nimbus.Zone),
		records: make(map[string][]*nimbus.Record),
	}
}

func (s *fakeNimbusServer) injectFailures(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failuresLeft = n
}

func (s *fakeNimbusServer) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests
}

func (s *fakeNimbusServer) seedZones(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, n)

	for i := 0; i < n; i++ {
		zone := s.newZoneLocked(fmt.Sprintf("zone-%02d.example.com", i))
		ids = append(ids, zone.ID)
	}

	return ids
}

func (s *fakeNimbusServer) seedRecords(zoneID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < n; i++ {
		s.newRecordLocked(zoneID, &nimbus.RecordCreateRequest{
			Type:    "A",
			Name:    fmt.Sprintf("host-%02d.example.com", i),
			Content: fmt.Sprintf("203.0.113.%d", i+1),
			TTL:     300,
		})
	}
}

func (s *fakeNimbusServer) newZoneLocked(name string) *nimbus.Zone {
	s.nextID++
	zone := &nimbus.Zone{
		Resource: nimbus.Resource{
			ID:        fmt.Sprintf("zone-%d", s.nextID),
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		},
		Name:   name,
		Status: "active",
	}
	s.zones[zone.ID] = zone
	s.zoneOrder = append(s.zoneOrder, zone.ID)

	return zone
}

func (s *fakeNimbusServer) newRecordLocked(zoneID string, req *nimbus.RecordCreateRequest) *nimbus.Record {
	s.nextID++
	record := &nimbus.Record{
		Resource: nimbus.Resource{
			ID:        fmt.Sprintf("record-%d", s.nextID),
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		},
		ZoneID:  zoneID,
		Type:    req.Type,
		Name:    req.Name,
		Content: req.Content,
		TTL:     req.TTL,
	}
	s.records[zoneID] = append(s.records[zoneID], record)

	return record
}

func (s *fakeNimbusServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/zones", s.createZone)
	mux.HandleFunc("GET /v1/zones", s.listZones)
	mux.HandleFunc("GET /v1/zones/{id}", s.getZone)
	mux.HandleFunc("PUT /v1/zones/{id}", s.updateZone)
	mux.HandleFunc("DELETE /v1/zones/{id}", s.deleteZone)
	mux.HandleFunc("POST /v1/zones/{id}/records", s.createRecord)
	mux.HandleFunc("GET /v1/zones/{id}/records", s.listRecords)
	mux.HandleFunc("GET /v1/zones/{id}/records/{recordID}", s.getRecord)
	mux.HandleFunc("DELETE /v1/zones/{id}/records/{recordID}", s.deleteRecord)

	return s.intercept(mux)
}

// intercept applies request counting, failure injection, and bearer auth
// before handing off to the resource handlers.
func (s *fakeNimbusServer) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		fail := s.failuresLeft > 0
		if fail {
			s.failuresLeft--
		}
		s.mu.Unlock()

		if fail {
			writeAPIError(w, http.StatusServiceUnavailable, 1500, "Service Unavailable", "upstream briefly unavailable")

			return
		}

		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeAPIError(w, http.StatusUnauthorized, nimbus.ErrorCodeNotAuthorized, "Not Authorized", "invalid or missing bearer token")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *fakeNimbusServer) createZone(w http.ResponseWriter, r *http.Request) {
	var req nimbus.ZoneCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeAPIError(w, http.StatusUnprocessableEntity, 10008, "Unprocessable Entity", "zone name is required")

		return
	}

	s.mu.Lock()
	zone := s.newZoneLocked(req.Name)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, zone)
}

func (s *fakeNimbusServer) listZones(w http.ResponseWriter, r *http.Request) {
	page := intQuery(r, "page", 1)
	perPage := intQuery(r, "per_page", 50)

	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.zoneOrder)
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	resp := nimbus.ListResponse[nimbus.Zone]{
		Pagination: nimbus.Pagination{
			TotalResults: total,
			TotalPages:   totalPages,
			Page:         page,
			PerPage:      perPage,
		},
		Resources: make([]nimbus.Zone, 0, end-start),
	}

	for _, id := range s.zoneOrder[start:end] {
		resp.Resources = append(resp.Resources, *s.zones[id])
	}

	if page < totalPages {
		resp.Pagination.Next = &nimbus.Link{
			Href: fmt.Sprintf("/v1/zones?page=%d&per_page=%d", page+1, perPage),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *fakeNimbusServer) getZone(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	zone, ok := s.zones[r.PathValue("id")]
	s.mu.Unlock()

	if !ok {
		writeAPIError(w, http.StatusNotFound, nimbus.ErrorCodeNotFound, "Resource Not Found", "zone not found")

		return
	}

	writeJSON(w, http.StatusOK, zone)
}

func (s *fakeNimbusServer) updateZone(w http.ResponseWriter, r *http.Request) {
	var req nimbus.ZoneUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusUnprocessableEntity, 10008, "Unprocessable Entity", "invalid update payload")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	zone, ok := s.zones[r.PathValue("id")]
	if !ok {
		writeAPIError(w, http.StatusNotFound, nimbus.ErrorCodeNotFound, "Resource Not Found", "zone not found")

		return
	}

	if req.Paused != nil {
		zone.Paused = *req.Paused
	}
	zone.UpdatedAt = time.Now().UTC()

	writeJSON(w, http.StatusOK, zone)
}

func (s *fakeNimbusServer) deleteZone(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.zones[id]; !ok {
		writeAPIError(w, http.StatusNotFound, nimbus.ErrorCodeNotFound, "Resource Not Found", "zone not found")

		return
	}

	delete(s.zones, id)
	delete(s.records, id)

	for i, zoneID := range s.zoneOrder {
		if zoneID == id {
			s.zoneOrder = append(s.zoneOrder[:i], s.zoneOrder[i+1:]...)

			break
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *fakeNimbusServer) createRecord(w http.ResponseWriter, r *http.Request) {
	zoneID := r.PathValue("id")

	var req nimbus.RecordCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeAPIError(w, http.StatusUnprocessableEntity, 10008, "Unprocessable Entity", "record name is required")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.zones[zoneID]; !ok {
		writeAPIError(w, http.StatusNotFound, nimbus.ErrorCodeNotFound, "Resource Not Found", "zone not found")

		return
	}

	record := s.newRecordLocked(zoneID, &req)

	writeJSON(w, http.StatusCreated, record)
}

// listRecords serves cursor pagination: the cursor is the offset of the next
// unserved record, two records per page.
func (s *fakeNimbusServer) listRecords(w http.ResponseWriter, r *http.Request) {
	const pageSize = 2

	zoneID := r.PathValue("id")

	offset := 0
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		parsed, err := strconv.Atoi(strings.TrimPrefix(cursor, "off-"))
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, 10005, "Bad Query Parameter", "invalid cursor")

			return
		}
		offset = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.records[zoneID]

	end := offset + pageSize
	if offset > len(all) {
		offset = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	page := nimbus.CursorPage[nimbus.Record]{
		Items:   make([]nimbus.Record, 0, end-offset),
		HasMore: end < len(all),
	}

	for _, record := range all[offset:end] {
		page.Items = append(page.Items, *record)
	}

	if page.HasMore {
		page.Cursor = fmt.Sprintf("off-%d", end)
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *fakeNimbusServer) getRecord(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records[r.PathValue("id")] {
		if record.ID == r.PathValue("recordID") {
			writeJSON(w, http.StatusOK, record)

			return
		}
	}

	writeAPIError(w, http.StatusNotFound, nimbus.ErrorCodeNotFound, "Resource Not Found", "record not found")
}

func (s *fakeNimbusServer) deleteRecord(w http.ResponseWriter, r *http.Request) {
	zoneID := r.PathValue("id")
	recordID := r.PathValue("recordID")

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, record := range s.records[zoneID] {
		if record.ID == recordID {
			s.records[zoneID] = append(s.records[zoneID][:i], s.records[zoneID][i+1:]...)
			w.WriteHeader(http.StatusNoContent)

			return
		}
	}

	writeAPIError(w, http.StatusNotFound, nimbus.ErrorCodeNotFound, "Resource Not Found", "record not found")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, status, code int, title, detail string) {
	writeJSON(w, status, nimbus.ResponseError{
		Errors: []nimbus.APIError{{Code: code, Title: title, Detail: detail}},
	})
}

func intQuery(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}

	return parsed
}
