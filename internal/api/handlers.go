package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/athena-arpd/athena-arpd/internal/engine"
	"github.com/athena-arpd/athena-arpd/pkg/arpv4"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Status())
}

// neighborView is the JSON shape of one cache entry.
type neighborView struct {
	IP         string `json:"ip"`
	MAC        string `json:"mac"`
	Kind       string `json:"kind"`
	InsertedAt int64  `json:"inserted_at_ms"`
	TTLMs      int64  `json:"ttl_ms,omitempty"`
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	ifaceID := r.URL.Query().Get("interface")
	if ifaceID == "" {
		JSONError(w, http.StatusBadRequest, "bad_request", "interface query parameter required")
		return
	}

	var out []neighborView
	for _, e := range s.d.Neighbors(ifaceID) {
		v := neighborView{
			IP:         e.IP.String(),
			MAC:        e.MAC.String(),
			Kind:       e.Kind.String(),
			InsertedAt: e.InsertedAt,
		}
		if e.Kind == engine.Dynamic {
			v.TTLMs = e.TTLMs
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			JSONError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	records, err := s.d.Conflicts(limit)
	if err != nil {
		JSONError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	ifaceID := r.URL.Query().Get("interface")
	ipStr := r.URL.Query().Get("ip")
	ip, err := arpv4.ParseIPv4(ipStr)
	if ifaceID == "" || err != nil {
		JSONError(w, http.StatusBadRequest, "bad_request", "interface and ip query parameters required")
		return
	}

	mac, st := s.d.Lookup(ifaceID, ip)
	resp := map[string]string{"ip": ip.String()}
	switch st {
	case engine.LookupResolved:
		resp["status"] = "resolved"
		resp["mac"] = mac.String()
	case engine.LookupNegative:
		resp["status"] = "negative"
	default:
		resp["status"] = "unknown"
	}
	writeJSON(w, http.StatusOK, resp)
}

type resolveRequest struct {
	Interface string `json:"interface"`
	IP        string `json:"ip"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	ip, err := arpv4.ParseIPv4(req.IP)
	if err != nil || req.Interface == "" {
		JSONError(w, http.StatusBadRequest, "bad_request", "interface and ip required")
		return
	}

	st := s.d.Resolve(req.Interface, ip)
	status := map[engine.RequestStatus]string{
		engine.RequestSent:             "sent",
		engine.RequestResolved:         "already_resolved",
		engine.RequestNegative:         "suppressed_negative",
		engine.RequestFlooded:          "suppressed_flood",
		engine.RequestUnknownInterface: "unknown_interface",
	}[st]
	if st == engine.RequestUnknownInterface {
		JSONError(w, http.StatusNotFound, "not_found", "unknown interface")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": status})
}

type staticRequest struct {
	Interface string `json:"interface"`
	IP        string `json:"ip"`
	MAC       string `json:"mac"`
}

func (s *Server) handleAddStatic(w http.ResponseWriter, r *http.Request) {
	var req staticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	ip, ipErr := arpv4.ParseIPv4(req.IP)
	mac, macErr := arpv4.ParseMAC(req.MAC)
	if req.Interface == "" || ipErr != nil || macErr != nil {
		JSONError(w, http.StatusBadRequest, "bad_request", "interface, ip, and mac required")
		return
	}

	if err := s.d.AddStatic(req.Interface, ip, mac); err != nil {
		JSONError(w, http.StatusConflict, "add_failed", err.Error())
		return
	}
	s.logger.Info("static entry added via API", "interface", req.Interface, "ip", req.IP, "mac", req.MAC)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (s *Server) handleRemoveStatic(w http.ResponseWriter, r *http.Request) {
	ifaceID := r.URL.Query().Get("interface")
	ip, err := arpv4.ParseIPv4(r.URL.Query().Get("ip"))
	if ifaceID == "" || err != nil {
		JSONError(w, http.StatusBadRequest, "bad_request", "interface and ip query parameters required")
		return
	}

	if err := s.d.RemoveStatic(ifaceID, ip); err != nil {
		JSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type announceRequest struct {
	Interface string `json:"interface"`
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Interface == "" {
		JSONError(w, http.StatusBadRequest, "bad_request", "interface required")
		return
	}
	if err := s.d.Announce(req.Interface); err != nil {
		JSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "announced"})
}

type dadRequest struct {
	Interface string `json:"interface"`
	Candidate string `json:"candidate"`
	Seed      uint64 `json:"seed,omitempty"`
}

func (s *Server) handleStartDAD(w http.ResponseWriter, r *http.Request) {
	var req dadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	candidate, err := arpv4.ParseIPv4(req.Candidate)
	if err != nil || req.Interface == "" {
		JSONError(w, http.StatusBadRequest, "bad_request", "interface and candidate required")
		return
	}
	seed := req.Seed
	if seed == 0 {
		seed = uint64(candidate.Uint32())<<16 | 0x5bd1
	}

	if err := s.d.StartDAD(req.Interface, candidate, seed); err != nil {
		JSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "probing"})
}
