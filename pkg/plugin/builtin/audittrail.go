package builtin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/audit"
	"github.com/dirgate/dirgate/pkg/hooks"
	"github.com/dirgate/dirgate/pkg/httputil"
	"github.com/dirgate/dirgate/pkg/plugin"
)

func init() {
	plugin.RegisterFactory("audittrail", newAuditTrailPlugin)
}

// auditOverrides is the descriptor override surface for the audit
// trail plugin.
type auditOverrides struct {
	SQLitePath string `json:"sqlite_path,omitempty"`
	LogDir     string `json:"log_dir,omitempty"`
}

// auditTrailPlugin records gateway activity and serves the trail query
// endpoint under its plugin mount.
type auditTrailPlugin struct {
	recorder *audit.Recorder
	trail    audit.Trail
	logger   audit.Logger
	log      *logrus.Logger
}

func newAuditTrailPlugin(env plugin.Env) (plugin.Plugin, error) {
	var overrides auditOverrides
	if err := env.DecodeOverrides(&overrides); err != nil {
		return nil, err
	}

	cfg := env.Config.Audit
	if overrides.SQLitePath != "" {
		cfg.SQLitePath = overrides.SQLitePath
	}

	var trail audit.Trail
	if cfg.SQLitePath != "" {
		store, err := audit.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		trail = store
	} else {
		trail = audit.NewMemoryLogger(0)
	}

	var logger audit.Logger = trail
	if overrides.LogDir != "" {
		fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: overrides.LogDir})
		if err != nil {
			trail.Close()
			return nil, err
		}
		logger = audit.NewMultiLogger(trail, fileLogger)
	}

	return &auditTrailPlugin{
		recorder: audit.NewRecorder(logger, env.Log),
		trail:    trail,
		logger:   logger,
		log:      env.Log,
	}, nil
}

func (p *auditTrailPlugin) Name() string { return "audittrail" }

func (p *auditTrailPlugin) Hooks() map[string]hooks.Handler {
	return p.recorder.Hooks()
}

// Recorder exposes the recorder for collaborators that report auth and
// authorization outcomes directly.
func (p *auditTrailPlugin) Recorder() *audit.Recorder {
	return p.recorder
}

// Mount installs the trail query endpoint.
func (p *auditTrailPlugin) Mount(r *mux.Router) {
	r.HandleFunc("/events", p.handleSearch).Methods(http.MethodGet)
}

// handleSearch answers GET /plugins/audittrail/events. Supported query
// parameters: type (repeatable), status, principal, dn, since (RFC
// 3339), until (RFC 3339), limit, offset.
func (p *auditTrailPlugin) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := audit.SearchFilter{
		Status:    audit.EventStatus(query.Get("status")),
		Principal: query.Get("principal"),
		DN:        query.Get("dn"),
	}
	for _, t := range query["type"] {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	if since := query.Get("since"); since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid since timestamp")
			return
		}
		filter.Start = parsed
	}
	if until := query.Get("until"); until != "" {
		parsed, err := time.Parse(time.RFC3339, until)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid until timestamp")
			return
		}
		filter.End = parsed
	}
	if limit := query.Get("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed < 0 {
			httputil.WriteBadRequest(w, "invalid limit")
			return
		}
		filter.Limit = parsed
	}
	if offset := query.Get("offset"); offset != "" {
		parsed, err := strconv.Atoi(offset)
		if err != nil || parsed < 0 {
			httputil.WriteBadRequest(w, "invalid offset")
			return
		}
		filter.Offset = parsed
	}

	events, err := p.trail.Search(r.Context(), filter)
	if err != nil {
		p.log.WithError(err).Error("audit trail search failed")
		httputil.WriteInternalError(w)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// Close flushes and closes the trail backends.
func (p *auditTrailPlugin) Close() error {
	return p.logger.Close()
}
