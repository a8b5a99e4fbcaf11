package run

// Failure records one soft failure for a (provider, service, version)
// triple. Only the latest failure per triple is retained within a run.
type Failure struct {
	Status  int    `yaml:"status" json:"status"`
	Error   string `yaml:"error,omitempty" json:"error,omitempty"`
	Context string `yaml:"context,omitempty" json:"context,omitempty"`
}

// Ledger accumulates soft failures during a run without aborting it,
// auto-vivified at failures[provider][service][version].
type Ledger map[string]map[string]map[string]*Failure

// Record inserts or overwrites the failure for the given triple.
func (l Ledger) Record(provider, service, version string, f *Failure) {
	services, ok := l[provider]
	if !ok {
		services = make(map[string]map[string]*Failure)
		l[provider] = services
	}
	versions, ok := services[service]
	if !ok {
		versions = make(map[string]*Failure)
		services[service] = versions
	}
	versions[version] = f
}

// Has reports whether a failure is recorded for the triple.
func (l Ledger) Has(provider, service, version string) bool {
	if services, ok := l[provider]; ok {
		if versions, ok := services[service]; ok {
			_, ok := versions[version]
			return ok
		}
	}
	return false
}

// Get returns the recorded failure for the triple, or nil.
func (l Ledger) Get(provider, service, version string) *Failure {
	if services, ok := l[provider]; ok {
		if versions, ok := services[service]; ok {
			return versions[version]
		}
	}
	return nil
}
