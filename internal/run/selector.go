package run

import (
	"github.com/starford/raido/internal/registry"
)

// DriverFilterNone is the explicit override selecting every entry
// regardless of run markers or configured drivers.
const DriverFilterNone = "none"

// Select enumerates the candidates the current run must act on and, as a
// side effect, rebuilds the driver→provider grouping the acquisition stage
// iterates. A provider appears in its driver's group exactly once no matter
// how many of its versions were selected.
//
// Select-all mode triggers on the explicit "none" filter, or when a
// non-update-style run targets the default path spec. Otherwise an entry is
// selected when the filter matches its provider's driver, or, with no
// filter, when its run marker carries the current run token.
//
// Candidates come back in sorted (provider, service, version) order, which
// is the registry's deterministic iteration order.
func (c *Context) Select(pathSpec, defaultPathSpec, driverFilter string) []*registry.Candidate {
	selectAll := driverFilter == DriverFilterNone ||
		(pathSpec == defaultPathSpec && !c.Kind.UpdateStyle)

	c.DriverGroups = make(map[string]map[string]*registry.Provider)
	var out []*registry.Candidate

	c.Store.Reg.Walk(func(pn string, p *registry.Provider, sn string, s *registry.Service, vn string, e *registry.VersionEntry) {
		selected := selectAll ||
			(driverFilter != "" && driverFilter == p.Driver) ||
			(driverFilter == "" && e.Run != "" && e.Run == c.Token)
		if !selected {
			return
		}

		group, ok := c.DriverGroups[p.Driver]
		if !ok {
			group = make(map[string]*registry.Provider)
			c.DriverGroups[p.Driver] = group
		}
		group[pn] = p

		out = append(out, &registry.Candidate{
			Provider: pn,
			Driver:   p.Driver,
			Service:  sn,
			Version:  vn,
			Parent:   s,
			GP:       p,
			MD:       e,
		})
	})
	return out
}
