package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"shiftwatch/internal/model"
	"shiftwatch/internal/normalize"
)

type ingestResult struct {
	Accepted int `json:"accepted"`
	Failed   int `json:"failed"`
}

// RESTHandler accepts one JSON object or an array per request. The API
// server mounts it when REST ingest is enabled.
type RESTHandler struct {
	p *Pipeline
}

func (p *Pipeline) REST() *RESTHandler {
	return &RESTHandler{p: p}
}

func (h *RESTHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	objs, ok := readObjects(w, r)
	if !ok {
		return
	}
	loc := h.p.location()
	var res ingestResult
	for _, obj := range objs {
		fields := ParseJSONMap(obj)
		fields.Source = "rest"
		fields.Raw = "rest"
		ev, err := normalize.Normalize(*fields, loc)
		if err != nil {
			h.p.reject(err, fields.Name, "rest")
			res.Failed++
			continue
		}
		if !SendNonBlocking(r.Context(), h.p.out, ev, h.p.logger) {
			res.Failed++
			continue
		}
		res.Accepted++
	}
	writeResult(w, res)
}

func (h *RESTHandler) HandleStatuses(w http.ResponseWriter, r *http.Request) {
	objs, ok := readObjects(w, r)
	if !ok {
		return
	}
	var (
		res      ingestResult
		statuses []model.ManualStatus
	)
	for _, obj := range objs {
		fields := ParseStatusJSONMap(obj)
		st, err := normalize.NormalizeStatus(*fields)
		if err != nil {
			h.p.reject(err, fields.Name, "rest")
			res.Failed++
			continue
		}
		statuses = append(statuses, st)
	}
	if err := h.p.saveStatuses(r.Context(), statuses); err != nil {
		if h.p.logger != nil {
			h.p.logger.Error("save statuses failed", "err", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	res.Accepted = len(statuses)
	writeResult(w, res)
}

func (p *Pipeline) saveStatuses(ctx context.Context, statuses []model.ManualStatus) error {
	if p.sink == nil || len(statuses) == 0 {
		return nil
	}
	if err := p.sink.SaveStatuses(ctx, statuses); err != nil {
		return err
	}
	if p.OnStatuses != nil {
		p.OnStatuses(statusDates(statuses))
	}
	return nil
}

func readObjects(w http.ResponseWriter, r *http.Request) ([]map[string]interface{}, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil, false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 2<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	trim := bytes.TrimSpace(body)
	if len(trim) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	if trim[0] == '[' {
		var list []map[string]interface{}
		if err := json.Unmarshal(trim, &list); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return nil, false
		}
		return list, true
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(trim, &obj); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	return []map[string]interface{}{obj}, true
}

func writeResult(w http.ResponseWriter, res ingestResult) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}
