package blog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/rwcache"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	svc         *Service
	log         logrus.FieldLogger
	defaultSize int
}

// NewHandler wires the post routes onto a fresh router. defaultSize is the page
// size used when only page_num is given.
func NewHandler(svc *Service, log logrus.FieldLogger, defaultSize int) *Handler {
	if defaultSize < 1 {
		defaultSize = 20
	}
	return &Handler{svc: svc, log: log, defaultSize: defaultSize}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/post", h.createPost).Methods(http.MethodPost)
	r.HandleFunc("/post/{id:[0-9]+}", h.getPost).Methods(http.MethodGet)
	r.HandleFunc("/post/{id:[0-9]+}", h.updatePost).Methods(http.MethodPut)
	r.HandleFunc("/post/{id:[0-9]+}", h.deletePost).Methods(http.MethodDelete)
	r.HandleFunc("/posts", h.listPosts).Methods(http.MethodGet)
	r.HandleFunc("/", h.listPosts).Methods(http.MethodGet)
	r.HandleFunc("/rw_set", h.readSet).Methods(http.MethodGet)
	r.HandleFunc("/versions", h.versions).Methods(http.MethodGet)
	r.HandleFunc("/count", h.count).Methods(http.MethodGet)
	r.HandleFunc("/clear_kv", h.clear).Methods(http.MethodPost)
	return r
}

type apiResponse struct {
	Status int    `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var d Draft
	if err := decodeBody(w, r, &d); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Create(r.Context(), d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.WithField("id", p.ID).Info("post created")
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var d Draft
	if err := decodeBody(w, r, &d); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Update(r.Context(), id, d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.WithField("id", id).Info("post deleted")
	writeJSON(w, http.StatusOK, fmt.Sprintf("deleted post #%d", id))
}

// listPosts serves a page when page_num or page_size is present and the whole
// collection otherwise. The ETag is the digest of the read set's versions.
func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	page, size, err := h.pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.List(r.Context(), page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	etag := strconv.Quote(strconv.FormatUint(res.Versions.Digest(), 16))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) readSet(w http.ResponseWriter, r *http.Request) {
	page, size, err := h.pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rs, err := h.svc.ReadSet(r.Context(), page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *Handler) versions(w http.ResponseWriter, r *http.Request) {
	page, size, err := h.pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	vv, err := h.svc.Versions(r.Context(), page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vv)
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Count(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Info("collection cleared")
	writeJSON(w, http.StatusOK, "cleared")
}

// pageParams returns page 0 when neither parameter is present. A missing half
// defaults to page 1 or the handler's default size.
func (h *Handler) pageParams(r *http.Request) (page, size int, err error) {
	q := r.URL.Query()
	pn, ps := q.Get("page_num"), q.Get("page_size")
	if pn == "" && ps == "" {
		return 0, 0, nil
	}
	page, size = 1, h.defaultSize
	if pn != "" {
		if page, err = strconv.Atoi(pn); err != nil {
			return 0, 0, fmt.Errorf("%w: page_num %q", rwcache.ErrInvalidPageRequest, pn)
		}
	}
	if ps != "" {
		if size, err = strconv.Atoi(ps); err != nil {
			return 0, 0, fmt.Errorf("%w: page_size %q", rwcache.ErrInvalidPageRequest, ps)
		}
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("%w: page_num %d", rwcache.ErrInvalidPageRequest, page)
	}
	return page, size, nil
}

var errBadRequest = errors.New("blog: bad request")

func postID(r *http.Request) (uint64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: post id %q", errBadRequest, raw)
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func statusOf(err error) int {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, errBadRequest),
		errors.Is(err, rwcache.ErrInvalidPageRequest),
		errors.Is(err, rwcache.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, ErrPostNotFound):
		return http.StatusNotFound
	case errors.Is(err, rwcache.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	entry := h.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path, "status": status})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Debug("request rejected")
	}
	writeJSON(w, status, apiResponse{Status: status, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	if _, ok := v.(apiResponse); !ok {
		v = apiResponse{Status: status, Data: v}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
