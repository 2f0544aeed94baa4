package audit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/directory"
	"github.com/dirgate/dirgate/pkg/hooks"
)

// Recorder turns gateway activity into audit events. Directory
// mutations arrive through the entrychanged notify hook; authentication
// and authorization outcomes arrive through the gateway-level notify
// hooks the HTTP boundary dispatches.
type Recorder struct {
	logger Logger
	log    *logrus.Logger
}

// NewRecorder creates a recorder writing through the given logger.
func NewRecorder(logger Logger, log *logrus.Logger) *Recorder {
	if log == nil {
		log = logrus.New()
	}
	return &Recorder{logger: logger, log: log}
}

// Hooks returns the hook handlers the recorder subscribes with.
func (r *Recorder) Hooks() map[string]hooks.Handler {
	return map[string]hooks.Handler{
		directory.HookEntryChanged: r.entryChanged,
		hooks.HookAuthSuccess:      r.authSuccess,
		hooks.HookAuthFailure:      r.authFailure,
		hooks.HookAccessDenied:     r.accessDenied,
	}
}

var verbEvents = map[string]EventType{
	"add":    EventEntryAdded,
	"modify": EventEntryModified,
	"rename": EventEntryRenamed,
	"delete": EventEntryDeleted,
}

// entryChanged handles the post-mutation notify hook. Args are the
// mutation verb and the entry DN (the new DN for renames).
func (r *Recorder) entryChanged(ctx context.Context, args hooks.Args) (hooks.Args, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("entrychanged hook expects verb and dn, got %d args", len(args))
	}
	verb, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("entrychanged hook verb is %T, want string", args[0])
	}
	dn, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("entrychanged hook dn is %T, want string", args[1])
	}

	eventType, ok := verbEvents[verb]
	if !ok {
		return nil, fmt.Errorf("unknown entrychanged verb %q", verb)
	}

	event := NewEvent(ctx, eventType, StatusSuccess)
	event.DN = dn
	event.Message = fmt.Sprintf("directory %s: %s", verb, dn)
	return nil, r.logger.Log(ctx, event)
}

// stringArgs type-checks a notify hook's argument list.
func stringArgs(name string, args hooks.Args, want int) ([]string, error) {
	if len(args) < want {
		return nil, fmt.Errorf("%s hook expects %d args, got %d", name, want, len(args))
	}
	out := make([]string, want)
	for i := 0; i < want; i++ {
		s, ok := args[i].(string)
		if !ok {
			return nil, fmt.Errorf("%s hook arg %d is %T, want string", name, i, args[i])
		}
		out[i] = s
	}
	return out, nil
}

func (r *Recorder) authSuccess(ctx context.Context, args hooks.Args) (hooks.Args, error) {
	parsed, err := stringArgs(hooks.HookAuthSuccess, args, 2)
	if err != nil {
		return nil, err
	}
	r.AuthSuccess(ctx, parsed[0], parsed[1])
	return nil, nil
}

func (r *Recorder) authFailure(ctx context.Context, args hooks.Args) (hooks.Args, error) {
	parsed, err := stringArgs(hooks.HookAuthFailure, args, 1)
	if err != nil {
		return nil, err
	}
	r.AuthFailure(ctx, parsed[0])
	return nil, nil
}

func (r *Recorder) accessDenied(ctx context.Context, args hooks.Args) (hooks.Args, error) {
	parsed, err := stringArgs(hooks.HookAccessDenied, args, 2)
	if err != nil {
		return nil, err
	}
	r.AccessDenied(ctx, parsed[0], parsed[1])
	return nil, nil
}

// AuthSuccess records a successful authentication.
func (r *Recorder) AuthSuccess(ctx context.Context, strategy, principal string) {
	event := NewEvent(ctx, EventAuthSuccess, StatusSuccess)
	event.Principal = principal
	event.Message = fmt.Sprintf("authenticated via %s", strategy)
	r.record(ctx, event)
}

// AuthFailure records a request that no strategy could authenticate.
func (r *Recorder) AuthFailure(ctx context.Context, remote string) {
	event := NewEvent(ctx, EventAuthFailure, StatusFailure)
	event.Message = fmt.Sprintf("authentication failed from %s", remote)
	r.record(ctx, event)
}

// AccessDenied records an authorization denial for a DN.
func (r *Recorder) AccessDenied(ctx context.Context, operation, dn string) {
	event := NewEvent(ctx, EventAccessDenied, StatusDenied)
	event.DN = dn
	event.Message = fmt.Sprintf("%s denied on %s", operation, dn)
	r.record(ctx, event)
}

// record logs the event, downgrading logger failures to a warning so an
// unwritable trail never blocks request handling.
func (r *Recorder) record(ctx context.Context, event *Event) {
	if err := r.logger.Log(ctx, event); err != nil {
		r.log.WithFields(logrus.Fields{
			"event_type": event.Type,
		}).WithError(err).Warn("failed to record audit event")
	}
}
