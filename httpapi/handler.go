// Package httpapi exposes a set of registered layers over HTTP: feature
// selection by bounding box, inserts, deletes, geometry and attribute
// updates, and column additions, plus a Prometheus scrape endpoint and
// a liveness probe. Routing is dimfeld/httptreemux, the same
// tree-based router this module's teacher depends on.
package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dimfeld/httptreemux"

	"github.com/vectorlayer/spatialite/cursor"
	"github.com/vectorlayer/spatialite/internal/log"
	"github.com/vectorlayer/spatialite/layer"
	"github.com/vectorlayer/spatialite/mutate"
)

// Server is a registry of named layers exposed over HTTP.
type Server struct {
	router  *httptreemux.TreeMux
	metrics *metrics
	layers  map[string]*layer.Layer
}

// NewServer builds a Server with no layers registered. Callers add
// layers with Register before calling ListenAndServe.
func NewServer(namespace string) *Server {
	s := &Server{
		router:  httptreemux.New(),
		metrics: newMetrics(namespace),
		layers:  make(map[string]*layer.Layer),
	}
	s.routes()
	return s
}

// Register adds a layer under name, replacing any layer already
// registered under that name.
func (s *Server) Register(name string, l *layer.Layer) {
	s.layers[name] = l
}

// Layer returns the layer registered under name, or nil if none is.
func (s *Server) Layer(name string) *layer.Layer {
	return s.layers[name]
}

// Handler returns the server's router as a plain http.Handler, for
// embedding behind something other than ListenAndServe (e.g. a Lambda
// adapter).
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	log.Infof("httpapi: listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.wrap("healthz", s.handleHealthz))
	s.router.GET("/metrics", s.wrap("metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		s.metrics.handler().ServeHTTP(w, r)
	}))
	s.router.GET("/layers", s.wrap("layers.list", s.handleListLayers))
	s.router.GET("/layers/:name", s.wrap("layers.get", s.handleLayerInfo))
	s.router.GET("/layers/:name/features", s.wrap("features.select", s.handleSelect))
	s.router.POST("/layers/:name/features", s.wrap("features.insert", s.handleInsert))
	s.router.DELETE("/layers/:name/features", s.wrap("features.delete", s.handleDelete))
	s.router.PATCH("/layers/:name/features/geometry", s.wrap("features.updateGeom", s.handleUpdateGeometries))
	s.router.PATCH("/layers/:name/features/attributes", s.wrap("features.updateAttrs", s.handleUpdateAttributes))
	s.router.POST("/layers/:name/columns", s.wrap("layers.addColumns", s.handleAddColumns))
	s.router.PUT("/layers/:name/subset", s.wrap("layers.setSubset", s.handleSetSubset))
}

// wrap records per-route metrics around a handler and recovers a
// handler panic into a 500 rather than taking the server down, the
// way a single malformed request shouldn't affect any other layer.
func (s *Server) wrap(route string, h httptreemux.HandlerFunc) httptreemux.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if rec := recover(); rec != nil {
				log.Errorf("httpapi: panic handling %s: %v", route, rec)
				writeError(rw, http.StatusInternalServerError, "internal error")
			}
			s.metrics.observe(route, r.Method, rw.status, start)
		}()
		h(rw, r, params)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	names := make([]string, 0, len(s.layers))
	for name := range s.layers {
		names = append(names, name)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"layers": names})
}

func (s *Server) lookupLayer(w http.ResponseWriter, params map[string]string) (*layer.Layer, bool) {
	name := params["name"]
	l, ok := s.layers[name]
	if !ok {
		writeError(w, http.StatusNotFound, "no layer registered as "+name)
		return nil, false
	}
	return l, true
}

type layerInfoResponse struct {
	Capabilities int      `json:"capabilities"`
	Extent       [4]float64 `json:"extent"`
	Count        int64    `json:"count"`
	Fields       []string `json:"fields"`
}

func (s *Server) handleLayerInfo(w http.ResponseWriter, r *http.Request, params map[string]string) {
	l, ok := s.lookupLayer(w, params)
	if !ok {
		return
	}
	names := make([]string, 0, len(l.Fields()))
	for _, f := range l.Fields() {
		names = append(names, f.Name)
	}
	ext := l.Extent()
	writeJSON(w, http.StatusOK, layerInfoResponse{
		Capabilities: int(l.Capabilities()),
		Extent:       [4]float64{ext.MinX, ext.MinY, ext.MaxX, ext.MaxY},
		Count:        l.Count(),
		Fields:       names,
	})
}

type featureResponse struct {
	ID     int64                  `json:"id"`
	Values map[string]interface{} `json:"values,omitempty"`
	Geom   string                 `json:"geom,omitempty"` // base64-encoded, 3D dialect
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, params map[string]string) {
	l, ok := s.lookupLayer(w, params)
	if !ok {
		return
	}
	q := r.URL.Query()

	var bbox cursor.Extent
	if q.Get("minx") != "" {
		minx, err1 := strconv.ParseFloat(q.Get("minx"), 64)
		miny, err2 := strconv.ParseFloat(q.Get("miny"), 64)
		maxx, err3 := strconv.ParseFloat(q.Get("maxx"), 64)
		maxy, err4 := strconv.ParseFloat(q.Get("maxy"), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			writeError(w, http.StatusBadRequest, "minx/miny/maxx/maxy must be numeric")
			return
		}
		bbox = cursor.Extent{MinX: minx, MinY: miny, MaxX: maxx, MaxY: maxy}
	}

	var attrNames []string
	if fields := q.Get("fields"); fields != "" {
		attrNames = strings.Split(fields, ",")
	}
	fetchGeom := q.Get("geom") != "false"
	useIntersect := q.Get("intersect") == "true"

	c, err := l.Select(bbox, attrNames, fetchGeom, useIntersect)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer c.Rewind()

	out := make([]featureResponse, 0, 64)
	for {
		row, ok, err := c.Next()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			break
		}
		fr := featureResponse{ID: row.ID}
		if len(attrNames) > 0 {
			fr.Values = make(map[string]interface{}, len(attrNames))
			for i, name := range attrNames {
				if i < len(row.Values) {
					fr.Values[name] = row.Values[i]
				}
			}
		}
		if row.Geom != nil {
			fr.Geom = base64.StdEncoding.EncodeToString(row.Geom)
		}
		out = append(out, fr)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"features": out})
}

type insertRequest struct {
	Features []struct {
		Geom       string        `json:"geom"` // base64, 3D dialect; empty means NULL
		Attributes []interface{} `json:"attributes"`
	} `json:"features"`
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request, params map[string]string) {
	l, ok := s.lookupLayer(w, params)
	if !ok {
		return
	}
	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	features := make([]mutate.Feature, len(req.Features))
	for i, f := range req.Features {
		var geom []byte
		if f.Geom != "" {
			decoded, err := base64.StdEncoding.DecodeString(f.Geom)
			if err != nil {
				writeError(w, http.StatusBadRequest, "feature "+strconv.Itoa(i)+": malformed geom")
				return
			}
			geom = decoded
		}
		features[i] = mutate.Feature{Geom3D: geom, Attributes: f.Attributes}
	}

	n, err := l.Insert(features)
	if err != nil {
		writeMutateError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"inserted": n})
}

type deleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, params map[string]string) {
	l, ok := s.lookupLayer(w, params)
	if !ok {
		return
	}
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	n, err := l.Delete(req.IDs)
	if err != nil {
		writeMutateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

type updateGeometryRequest struct {
	Updates []struct {
		ID   int64  `json:"id"`
		Geom string `json:"geom"`
	} `json:"updates"`
}

func (s *Server) handleUpdateGeometries(w http.ResponseWriter, r *http.Request, params map[string]string) {
	l, ok := s.lookupLayer(w, params)
	if !ok {
		return
	}
	var req updateGeometryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	updates := make([]mutate.GeomUpdate, len(req.Updates))
	for i, u := range req.Updates {
		geom, err := base64.StdEncoding.DecodeString(u.Geom)
		if err != nil {
			writeError(w, http.StatusBadRequest, "update "+strconv.Itoa(i)+": malformed geom")
			return
		}
		updates[i] = mutate.GeomUpdate{ID: u.ID, Geom3D: geom}
	}
	if err := l.UpdateGeometries(updates); err != nil {
		writeMutateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"updated": len(updates)})
}

type updateAttributesRequest struct {
	Updates []mutate.AttrUpdate `json:"updates"`
}

func (s *Server) handleUpdateAttributes(w http.ResponseWriter, r *http.Request, params map[string]string) {
	l, ok := s.lookupLayer(w, params)
	if !ok {
		return
	}
	var req updateAttributesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if err := l.UpdateAttributes(req.Updates); err != nil {
		writeMutateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"updated": len(req.Updates)})
}

type addColumnsRequest struct {
	Columns []mutate.Column `json:"columns"`
}

func (s *Server) handleAddColumns(w http.ResponseWriter, r *http.Request, params map[string]string) {
	l, ok := s.lookupLayer(w, params)
	if !ok {
		return
	}
	var req addColumnsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if err := l.AddColumns(req.Columns); err != nil {
		writeMutateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"added": len(req.Columns)})
}

type setSubsetRequest struct {
	Subset string `json:"subset"`
}

func (s *Server) handleSetSubset(w http.ResponseWriter, r *http.Request, params map[string]string) {
	l, ok := s.lookupLayer(w, params)
	if !ok {
		return
	}
	var req setSubsetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if err := l.SetSubset(req.Subset); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subset": req.Subset})
}

func writeMutateError(w http.ResponseWriter, err error) {
	if _, ok := err.(mutate.ErrReadOnlyViolation); ok {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("httpapi: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
