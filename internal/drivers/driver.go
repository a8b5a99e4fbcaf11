// Package drivers implements the closed set of acquisition strategies that
// discover candidate document URLs (leads) for a provider. Every driver
// conforms to the same contract: run against one provider record, populate
// the shared leads map through the sink, optionally stash pre-fetched
// bodies in the provider's data buffer, and report success.
package drivers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/fetch"
	"github.com/starford/raido/internal/registry"
)

// Sink receives leads discovered by drivers, keyed by document URL.
type Sink interface {
	AddLead(url string, lead *registry.Lead)
}

// Driver is one acquisition strategy. Run returns false (or an error) on
// acquisition failure; the caller logs it and continues the run.
type Driver interface {
	Name() string
	Run(ctx context.Context, provider string, p *registry.Provider, sink Sink) (bool, error)
}

// New constructs the driver for name. Unknown names are a configuration
// error.
func New(name string, client *fetch.Client, logger *slog.Logger) (Driver, error) {
	switch name {
	case registry.DriverNop, registry.DriverURL, registry.DriverExternal:
		return &Nop{name: name}, nil
	case registry.DriverAPIsJSON:
		return &APIsJSON{client: client, logger: logger}, nil
	case registry.DriverCatalog:
		return &Catalog{client: client, logger: logger}, nil
	case registry.DriverGoogle:
		return &Google{client: client, logger: logger}, nil
	case registry.DriverGithub:
		return &Github{client: client, logger: logger}, nil
	case registry.DriverZip:
		return &Zip{client: client, logger: logger}, nil
	case registry.DriverBlob:
		return &Blob{client: client, logger: logger}, nil
	case registry.DriverHTML:
		return &HTML{client: client, logger: logger}, nil
	}
	return nil, fmt.Errorf("drivers: %w: %q", apperr.ErrUnknownDriver, name)
}

// Dispatch runs every grouped provider's driver exactly once, in sorted
// order for determinism. Driver failures are logged as warnings and never
// abort the run.
func Dispatch(ctx context.Context, groups map[string]map[string]*registry.Provider, sink Sink, client *fetch.Client, logger *slog.Logger) {
	driverNames := make([]string, 0, len(groups))
	for n := range groups {
		driverNames = append(driverNames, n)
	}
	sort.Strings(driverNames)

	for _, dn := range driverNames {
		d, err := New(dn, client, logger)
		if err != nil {
			logger.Warn("drivers: skipping group", slog.String("driver", dn), slog.String("error", err.Error()))
			continue
		}

		providers := groups[dn]
		names := make([]string, 0, len(providers))
		for n := range providers {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, pn := range names {
			start := time.Now()
			ok, err := d.Run(ctx, pn, providers[pn], sink)
			switch {
			case err != nil:
				logger.Warn("drivers: acquisition failed",
					slog.String("driver", dn), slog.String("provider", pn),
					slog.String("error", err.Error()))
			case !ok:
				logger.Warn("drivers: acquisition unsuccessful",
					slog.String("driver", dn), slog.String("provider", pn))
			default:
				logger.Debug("drivers: acquisition done",
					slog.String("driver", dn), slog.String("provider", pn),
					slog.Duration("took", time.Since(start)))
			}
		}
	}
}

// Nop covers the url/external/nop variants: the provider's single document
// is fetched directly by its static source URL later, so no leads are
// produced.
type Nop struct {
	name string
}

func (d *Nop) Name() string { return d.name }

func (d *Nop) Run(context.Context, string, *registry.Provider, Sink) (bool, error) {
	return true, nil
}
