package services

import (
	"errors"
	"io"

	"github.com/fyrsmithlabs/frontdesk/internal/callsession"
	"github.com/fyrsmithlabs/frontdesk/internal/desk"
	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/notify"
	"github.com/fyrsmithlabs/frontdesk/internal/sweeper"
)

// Registry provides access to all frontdesk services.
type Registry interface {
	Desk() *desk.Service
	HelpRequests() *helprequest.Registry
	Knowledge() *knowledge.Service
	Sessions() *callsession.Service
	Bus() notify.Bus
	Sweeper() *sweeper.Sweeper
	// Close stops the sweeper and releases transports and storage, in
	// reverse order of creation.
	Close() error
}

// Options configures the registry with service instances.
type Options struct {
	Desk         *desk.Service
	HelpRequests *helprequest.Registry
	Knowledge    *knowledge.Service
	Sessions     *callsession.Service
	Bus          notify.Bus
	Sweeper      *sweeper.Sweeper
	// Closers are closed last to first.
	Closers []io.Closer
}

type registry struct {
	desk         *desk.Service
	helpRequests *helprequest.Registry
	knowledge    *knowledge.Service
	sessions     *callsession.Service
	bus          notify.Bus
	sweeper      *sweeper.Sweeper
	closers      []io.Closer
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		desk:         opts.Desk,
		helpRequests: opts.HelpRequests,
		knowledge:    opts.Knowledge,
		sessions:     opts.Sessions,
		bus:          opts.Bus,
		sweeper:      opts.Sweeper,
		closers:      opts.Closers,
	}
}

func (r *registry) Desk() *desk.Service                 { return r.desk }
func (r *registry) HelpRequests() *helprequest.Registry { return r.helpRequests }
func (r *registry) Knowledge() *knowledge.Service       { return r.knowledge }
func (r *registry) Sessions() *callsession.Service      { return r.sessions }
func (r *registry) Bus() notify.Bus                     { return r.bus }
func (r *registry) Sweeper() *sweeper.Sweeper           { return r.sweeper }

func (r *registry) Close() error {
	if r.sweeper != nil {
		r.sweeper.Stop()
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// closerFunc adapts a func to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }
