// Demo server for collaborative editing: each connected frontend owns a
// buffer replica, edits are folded in with SetText, and the resulting
// operations are relayed to the other replicas when they sync.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/brunokim/cotext/clock"
	"github.com/brunokim/cotext/text"
)

var (
	port      = flag.Int("port", 8009, "port to run server")
	staticDir = flag.String("static_dir", "", "directory with static files")
	pretty    = flag.Bool("pretty", true, "human-readable log output")
)

type state struct {
	sync.Mutex

	log zerolog.Logger

	buffers     map[string]*text.Buffer
	frontendIDs []string
	// inbox holds, per frontend, the encoded operation batches produced by
	// other frontends since its last sync.
	inbox       map[string][][]byte
	nextReplica clock.ReplicaID
}

func newState(log zerolog.Logger) *state {
	return &state{
		log:     log,
		buffers: make(map[string]*text.Buffer),
		inbox:   make(map[string][][]byte),
	}
}

func main() {
	flag.Parse()

	var w io.Writer = os.Stderr
	if *pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	log := zerolog.New(w).With().Timestamp().Logger()

	s := newState(log)

	if *staticDir != "" {
		http.Handle("/", http.FileServer(http.Dir(*staticDir)))
	}
	http.Handle("/edit", editHTTPHandler{s})
	http.Handle("/fork", forkHTTPHandler{s})
	http.Handle("/sync", syncHTTPHandler{s})

	addr := fmt.Sprintf(":%d", *port)
	log.Info().Str("addr", addr).Msg("serving")
	err := http.ListenAndServe(addr, nil)
	log.Fatal().Err(err).Msg("server stopped")
}

// -----

type editRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type editHTTPHandler struct {
	s *state
}

func (h editHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	editReq := &editRequest{}
	if err := json.NewDecoder(req.Body).Decode(editReq); err != nil {
		h.s.log.Error().Err(err).Msg("parsing body in /edit")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.s.handleEdit(w, editReq)
}

func (s *state) handleEdit(w http.ResponseWriter, req *editRequest) {
	s.Lock()
	defer s.Unlock()

	buf, ok := s.buffers[req.ID]
	if !ok {
		if len(s.buffers) > 0 {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, "unknown frontend ID %q; fork from an existing one", req.ID)
			return
		}
		buf = text.NewBuffer(s.allocReplica(), "")
		s.addFrontend(req.ID, buf)
	}
	ops, err := buf.SetText(req.Text)
	if err != nil {
		s.log.Error().Err(err).Str("id", req.ID).Msg("applying edit")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(ops) > 0 {
		s.relay(req.ID, ops)
	}
	s.log.Info().Str("id", req.ID).Int("ops", len(ops)).Str("value", buf.Text()).Msg("edit")

	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, buf.Text())
}

// -----

type forkRequest struct {
	LocalID  string `json:"local"`
	RemoteID string `json:"remote"`
}

type forkHTTPHandler struct {
	s *state
}

func (h forkHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	forkReq := &forkRequest{}
	if err := json.NewDecoder(req.Body).Decode(forkReq); err != nil {
		h.s.log.Error().Err(err).Msg("parsing body in /fork")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.s.handleFork(w, forkReq)
}

func (s *state) handleFork(w http.ResponseWriter, req *forkRequest) {
	s.Lock()
	defer s.Unlock()

	local, ok := s.buffers[req.LocalID]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "unknown local frontend ID %q", req.LocalID)
		return
	}
	if _, ok := s.buffers[req.RemoteID]; ok {
		w.WriteHeader(http.StatusPreconditionFailed)
		fmt.Fprintf(w, "new remote frontend ID already exists: %q", req.RemoteID)
		return
	}
	s.addFrontend(req.RemoteID, local.Fork(s.allocReplica()))
	s.log.Info().Str("local", req.LocalID).Str("remote", req.RemoteID).Msg("fork")
}

// -----

type syncRequest struct {
	ID string `json:"id"`
}

type syncHTTPHandler struct {
	s *state
}

func (h syncHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	syncReq := &syncRequest{}
	if err := json.NewDecoder(req.Body).Decode(syncReq); err != nil {
		h.s.log.Error().Err(err).Msg("parsing body in /sync")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.s.handleSync(w, syncReq)
}

func (s *state) handleSync(w http.ResponseWriter, req *syncRequest) {
	s.Lock()
	defer s.Unlock()

	buf, ok := s.buffers[req.ID]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "unknown frontend ID %q", req.ID)
		return
	}
	batches := s.inbox[req.ID]
	s.inbox[req.ID] = nil
	for _, batch := range batches {
		ops, err := text.DecodeOperations(batch)
		if err != nil {
			s.log.Error().Err(err).Str("id", req.ID).Msg("decoding batch")
			continue
		}
		if err := buf.ApplyRemote(ops); err != nil {
			s.log.Error().Err(err).Str("id", req.ID).Msg("integrating batch")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}
	s.log.Info().Str("id", req.ID).Int("batches", len(batches)).Str("value", buf.Text()).Msg("sync")

	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, buf.Text())
}

// -----

func (s *state) allocReplica() clock.ReplicaID {
	r := s.nextReplica
	s.nextReplica++
	return r
}

func (s *state) addFrontend(id string, buf *text.Buffer) {
	s.buffers[id] = buf
	s.frontendIDs = append(s.frontendIDs, id)
}

// relay queues an encoded copy of the operations for every other frontend.
func (s *state) relay(from string, ops []text.Operation) {
	batch, err := text.EncodeOperations(ops)
	if err != nil {
		s.log.Error().Err(err).Str("id", from).Msg("encoding batch")
		return
	}
	for _, id := range s.frontendIDs {
		if id != from {
			s.inbox[id] = append(s.inbox[id], batch)
		}
	}
}
