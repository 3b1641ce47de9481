package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/graystore/orm"
)

// DatabaseList is the response of GET /databases.
type DatabaseList struct {
	Databases []string `json:"databases"`
}

// TableList is the response of GET /databases/{db}/tables.
type TableList struct {
	Database string            `json:"database"`
	Tables   []orm.TableSchema `json:"tables"`
}

// validDatabaseName accepts plain file names inside the store directory.
func validDatabaseName(name string) bool {
	return name != "" &&
		!strings.HasPrefix(name, ".") &&
		filepath.Base(name) == name &&
		!strings.ContainsAny(name, `/\`)
}

func (s *Server) handleListDatabases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, DatabaseList{Databases: s.store.Databases()})
}

// schemas loads the schemas of the {db} URL parameter, writing an error
// response and returning false on failure.
func (s *Server) schemas(w http.ResponseWriter, r *http.Request) (string, []orm.TableSchema, bool) {
	db := chi.URLParam(r, "db")
	if !validDatabaseName(db) {
		writeBadRequest(w, "invalid database name")
		return "", nil, false
	}

	tables, err := s.store.Schemas(r.Context(), db)
	switch {
	case errors.Is(err, orm.ErrUnknownDatabase):
		writeNotFound(w, "database not found")
		return "", nil, false
	case errors.Is(err, orm.ErrConnectionUnavailable):
		s.logger.Warn("database unavailable", "database", db, "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "database unavailable")
		return "", nil, false
	case err != nil:
		s.logger.Error("reading table schemas failed", "database", db, "error", err)
		writeInternalError(w, "failed to read table schemas")
		return "", nil, false
	}
	if tables == nil {
		tables = []orm.TableSchema{}
	}
	return db, tables, true
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	db, tables, ok := s.schemas(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TableList{Database: db, Tables: tables})
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	_, tables, ok := s.schemas(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	for _, t := range tables {
		if t.Name == name {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeNotFound(w, "table not found")
}
