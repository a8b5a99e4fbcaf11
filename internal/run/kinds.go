package run

import "fmt"

// Kind describes one processing verb's run characteristics.
type Kind struct {
	Name string

	// Slow runs scan the full document tree before reconciliation; fast
	// runs rely on the marking phase instead.
	Slow bool

	// UpdateStyle runs expect per-candidate failures and suppress the
	// failure exit code at save time.
	UpdateStyle bool

	// Sorts marks runs whose output must be deterministic (ci, deploy).
	Sorts bool
}

// Kinds is the closed set of processing verbs.
var Kinds = map[string]Kind{
	"update":   {Name: "update", Slow: true, UpdateStyle: true},
	"validate": {Name: "validate", Slow: true},
	"check":    {Name: "check"},
	"ci":       {Name: "ci", Slow: true, Sorts: true},
	"deploy":   {Name: "deploy", Sorts: true},
	"add":      {Name: "add"},
}

// KindFor resolves a verb name.
func KindFor(name string) (Kind, error) {
	k, ok := Kinds[name]
	if !ok {
		return Kind{}, fmt.Errorf("run: unknown command %q", name)
	}
	return k, nil
}
