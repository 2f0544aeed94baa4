package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/directory"
)

// Server is the gateway's REST surface over the directory. All
// directory access goes through the hook-dispatching Client, so every
// request is subject to the plugin hooks, authorization included.
type Server struct {
	client    *directory.Client
	router    *mux.Router
	topAnchor string
	log       *logrus.Logger
}

// NewServer creates the API server. topAnchor is the configured tree
// root DN, served as the fallback for the top endpoint.
func NewServer(client *directory.Client, topAnchor string, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	s := &Server{
		client:    client,
		router:    mux.NewRouter(),
		topAnchor: topAnchor,
		log:       log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes. The rename route is
// registered before the generic entry routes so its suffix is not
// swallowed by the greedy DN pattern.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/ldap/{dn:.+}/rename", s.renameEntry).Methods("POST")
	s.router.HandleFunc("/api/v1/ldap/{dn:.+}", s.searchEntries).Methods("GET")
	s.router.HandleFunc("/api/v1/ldap/{dn:.+}", s.addEntry).Methods("POST")
	s.router.HandleFunc("/api/v1/ldap/{dn:.+}", s.modifyEntry).Methods("PATCH")
	s.router.HandleFunc("/api/v1/ldap/{dn:.+}", s.deleteEntry).Methods("DELETE")

	s.router.HandleFunc("/api/v1/top", s.getTop).Methods("GET")
	s.router.HandleFunc("/whoami", s.whoami).Methods("GET")
}

// Router exposes the router so the command can wrap it in middleware
// and hand it to the plugin registry for mounting.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
