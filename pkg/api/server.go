package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/arborcms/arbor/pkg/observability"
	"github.com/arborcms/arbor/pkg/tree"
)

// Server is the HTTP boundary over the tree reader and mutator.
type Server struct {
	router  *mux.Router
	reader  *tree.Reader
	mutator *tree.Mutator
	log     *observability.Logger
}

// kindSegments maps URL path segments to entity kinds.
var kindSegments = map[string]tree.Kind{
	"pages":        tree.KindPage,
	"assetfolders": tree.KindAssetFolder,
	"datafolders":  tree.KindDataFolder,
}

// NewServer creates the API server and registers all routes.
func NewServer(reader *tree.Reader, mutator *tree.Mutator, log *observability.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		reader:  reader,
		mutator: mutator,
		log:     log,
	}
	s.setupRoutes()
	return s
}

// Router returns the configured handler for mounting.
func (s *Server) Router() *mux.Router {
	return s.router
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	for segment, kind := range kindSegments {
		api.HandleFunc("/"+segment, s.findEntities(kind)).Methods("GET")
		api.HandleFunc("/"+segment, s.createEntity(kind)).Methods("POST")
		api.HandleFunc("/"+segment+"/move", s.moveEntities(kind)).Methods("POST")
		api.HandleFunc("/"+segment+"/copy", s.copyEntities(kind)).Methods("POST")
		api.HandleFunc("/"+segment+"/delete", s.deleteEntities(kind)).Methods("POST")
		api.HandleFunc("/"+segment+"/undelete", s.undeleteEntities(kind)).Methods("POST")
		api.HandleFunc("/"+segment+"/{externalId}", s.getEntity(kind)).Methods("GET")
		api.HandleFunc("/"+segment+"/{externalId}/permissions", s.getPermissions(kind)).Methods("GET")
	}

	// Data folder entries are order-only leaves without paths of their own.
	api.HandleFunc("/datafolders/{externalId}/entries", s.listEntries).Methods("GET")
	api.HandleFunc("/datafolders/{externalId}/entries", s.createEntry).Methods("POST")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
