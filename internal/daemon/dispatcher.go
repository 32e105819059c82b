package daemon

import (
	"io"
	"net/url"

	"portage/internal/logger"
	"portage/internal/model"
	"portage/internal/record"

	"go.uber.org/zap"
)

// The only fields accepted in a submission; everything else a client
// sends is dropped and never reaches a transfer module.
var submitFields = []string{
	"src_url", "dest_url", "dap_type", "x509_proxy", "max_attempts",
	"parallelism", "max_parallelism", "min_parallelism", "arguments",
}

func (s *Server) handleSubmit(_ io.Writer, req *record.Record) *record.Record {
	ad := req.Filter(submitFields...)

	src := ad.Get("src_url")
	dest := ad.Get("dest_url")
	if src == "" {
		return record.Error("missing src_url")
	}
	if dest == "" {
		return record.Error("missing dest_url")
	}

	srcURL, err := url.Parse(src)
	if err != nil || srcURL.Scheme == "" {
		return record.Error("could not parse src_url")
	}
	destURL, err := url.Parse(dest)
	if err != nil || destURL.Scheme == "" {
		return record.Error("could not parse dest_url")
	}

	if _, ok := s.registry.Lookup(srcURL.Scheme); !ok {
		return record.Error("src_url protocol not supported")
	}
	if _, ok := s.registry.Lookup(destURL.Scheme); !ok {
		return record.Error("dest_url protocol not supported")
	}

	job := model.NewJob(ad, s.registry, s.clock)

	// Rejected at construction (e.g. no single module covers both
	// schemes): report why and keep it out of the history.
	if job.Status() != model.StatusScheduled {
		return record.Error(job.Message())
	}

	id, err := s.sched.Submit(job)
	if err != nil {
		logger.Log.Error("error scheduling job",
			zap.Int("job_id", id),
			zap.Error(err))
	}

	logger.Log.Info("job submitted",
		zap.Int("job_id", id),
		zap.String("src", src),
		zap.String("dest", dest))

	res := record.Success()
	res.SetInt("job_id", id)
	return res
}

func (s *Server) handleQuery(w io.Writer, req *record.Record) *record.Record {
	history := s.sched.History()

	// Status filter: defaults to pending, or to all when an explicit
	// range is given.
	var filter model.StatusFilter
	if !req.Has("status") {
		filter = model.FilterPending
		if req.Has("range") {
			filter = model.FilterAll
		}
	} else {
		var ok bool
		filter, ok = model.ParseStatusFilter(req.Get("status"))
		if !ok {
			return record.Error("invalid job type '" + req.Get("status") + "'")
		}
	}

	rs := record.Span(1, history.Len())
	if req.Has("range") {
		var err error
		rs, err = record.ParseRangeSet(req.Get("range"))
		if err != nil {
			return record.Error("could not parse range")
		}
	}

	count := 0
	notFound := record.NewRangeSet()

	for i := range rs.Indices() {
		j, ok := history.Get(i)
		if !ok {
			notFound.Swallow(i)
			continue
		}

		if !filter[j.Status()] {
			continue
		}
		count++

		if _, err := w.Write(j.Snapshot().Bytes()); err != nil {
			return record.Error(err.Error())
		}
	}

	res := record.Success()
	if !notFound.IsEmpty() {
		if count == 0 {
			res = record.Error("no jobs found")
		} else {
			res.Set("not_found", notFound.String())
		}
	}
	res.SetInt("count", count)
	return res
}

func (s *Server) handleRemove(_ io.Writer, req *record.Record) *record.Record {
	if !req.Has("range") {
		return record.Error("no job_id specified")
	}

	rs, err := record.ParseRangeSet(req.Get("range"))
	if err != nil {
		return record.Error("could not parse range")
	}

	reason := "removed by user"
	if req.Has("reason") {
		reason = reason + " (" + req.Get("reason") + ")"
	}

	// Unknown indices and already-ended jobs are both silent no-ops.
	for i := range rs.Indices() {
		j, ok := s.sched.History().Get(i)
		if !ok {
			continue
		}

		s.sched.Queue().Withdraw(j)
		if j.Remove(reason) {
			logger.Log.Info("job removed",
				zap.Int("job_id", i),
				zap.String("reason", reason))
		}
	}

	return record.Success()
}

func (s *Server) handleInfo(w io.Writer, req *record.Record) *record.Record {
	typ := req.Get("type")
	if typ == "" {
		typ = "module"
	}

	switch typ {
	case "module":
		for _, m := range s.registry.Modules() {
			if _, err := w.Write(m.Info().Bytes()); err != nil {
				return record.Error(err.Error())
			}
		}
		return record.Success()

	case "server":
		return record.Error("not yet implemented")

	default:
		return record.Error("invalid type: " + typ)
	}
}
