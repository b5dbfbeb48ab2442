package httpapi

import (
	"net/http"

	"github.com/tobmae/soulchat/memory"
	"github.com/tobmae/soulchat/rag"
)

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	t := memory.Type(r.URL.Query().Get("type"))
	if t != "" && !t.Valid() {
		writeError(w, http.StatusBadRequest, "invalid memory type")
		return
	}

	records, err := s.memories.List(r.Context(), t)
	if err != nil {
		s.logger.Error("list memories failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not list memories")
		return
	}
	if records == nil {
		records = []memory.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": records, "count": len(records)})
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.memories.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.logger.Error("delete memory failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not delete memory")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type ragQueryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	var req ragQueryRequest
	if err := decodeJSON(r, &req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	var chunks []rag.Chunk
	if s.retriever != nil {
		chunks = s.retriever.Retrieve(req.Query)
	}
	if chunks == nil {
		chunks = []rag.Chunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks, "count": len(chunks)})
}
