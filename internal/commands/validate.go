package commands

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/parser"
	"github.com/starford/raido/internal/registry"
)

// validate re-validates a candidate's materialized document without
// touching the network or the document itself.
func (p *processor) validate(cand *registry.Candidate) {
	md := cand.MD
	if md.Filename == "" {
		p.rc.Record(cand, 0, errors.New("entry has no filename"), "validate")
		return
	}
	data, err := p.store.Read(md.Filename)
	if err != nil {
		p.rc.Record(cand, http.StatusNotFound, err, "validate")
		p.logger.Warn("✗ missing", slog.String("candidate", candKey(cand)))
		return
	}

	parsed, err := parser.Parse(data)
	if err != nil {
		p.invalidate(cand, err.Error())
		return
	}
	vres, err := p.validator.Validate(parsed.Doc, data, sourceURL(md))
	if err != nil {
		p.rc.Record(cand, 0, err, "validate")
		return
	}
	if !vres.Valid {
		p.invalidate(cand, vres.Message)
		return
	}

	valid := true
	if md.Valid == nil || !*md.Valid {
		md.Valid = &valid
		p.rc.Store.Touch()
	}
	p.logger.Debug("✓ valid", slog.String("candidate", candKey(cand)))
}

// check runs fast consistency checks against an entry's bookkeeping: the
// file exists, its digest matches the recorded hash, and provenance is
// present. Nothing is mutated.
func (p *processor) check(cand *registry.Candidate) {
	md := cand.MD
	if md.Filename == "" {
		p.rc.Record(cand, 0, errors.New("entry has no filename"), "check")
		return
	}
	data, err := p.store.Read(md.Filename)
	if err != nil {
		p.rc.Record(cand, http.StatusNotFound, err, "check")
		return
	}
	if md.Hash != "" && checksum.Sum(data) != md.Hash {
		p.rc.Record(cand, 0, errors.New("content digest does not match recorded hash"), "check")
		return
	}
	if sourceURL(md) == "" {
		p.rc.Record(cand, 0, errors.New("entry has no source url"), "check")
		return
	}
	p.logger.Debug("✓ check", slog.String("candidate", candKey(cand)))
}
