package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/grapher3d/grapher-core/internal/graph"
	"github.com/grapher3d/grapher-core/internal/request"
)

// graphList is the body of /api/graphs.
type graphList struct {
	Graphs []string `json:"graphs"`
}

// handleListGraphs returns the names of the caller's graphs.
func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	rc := s.parse(r)

	names, err := s.graphs.List(r.Context(), rc.Token())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, graphList{Graphs: names})
}

// handleGetGraph returns one graph with its equations.
func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	rc := s.parse(r)
	fields, ok := s.body(w, rc)
	if !ok {
		return
	}

	g, err := s.graphs.Get(r.Context(), rc.Token(), fields["name"])
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleCreateGraph adds an empty graph.
func (s *Server) handleCreateGraph(w http.ResponseWriter, r *http.Request) {
	rc := s.parse(r)
	fields, ok := s.body(w, rc)
	if !ok {
		return
	}

	if err := s.graphs.Create(r.Context(), rc.Token(), fields["name"]); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeText(w, msgSuccess)
}

// handleUpdateGraph replaces a graph's description and equations.
func (s *Server) handleUpdateGraph(w http.ResponseWriter, r *http.Request) {
	rc := s.parse(r)
	fields, ok := s.body(w, rc)
	if !ok {
		return
	}

	upd, err := parseUpdate(fields)
	if err != nil {
		s.logger.Debug("rejected update body", "error", err)
		writeBadRequest(w, MsgInvalidParams)
		return
	}

	if err := s.graphs.Update(r.Context(), rc.Token(), upd); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeText(w, msgSuccess)
}

// handleDeleteGraph removes a graph.
func (s *Server) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	rc := s.parse(r)
	fields, ok := s.body(w, rc)
	if !ok {
		return
	}

	if err := s.graphs.Delete(r.Context(), rc.Token(), fields["name"]); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeText(w, msgSuccess)
}

// maxEquations bounds equation_length so a hostile body cannot make the
// parser allocate without limit.
const maxEquations = 1024

// parseUpdate reads an update body:
//
//	name: <graph>
//	description: <text>
//	animate: true|false           (optional)
//	equation_length: <n>
//	<i>_equation: <text>          for i in [0, n)
//	<i>_disabled: true|false      (optional, default false)
//
// name and description must be present; either may be empty.
func parseUpdate(fields request.Fields) (graph.Update, error) {
	var upd graph.Update

	name, ok := fields.Get("name")
	if !ok {
		return upd, errMissing("name")
	}
	description, ok := fields.Get("description")
	if !ok {
		return upd, errMissing("description")
	}
	upd.Name = name
	upd.Description = description

	if raw, ok := fields.Get("animate"); ok {
		animate := strings.EqualFold(strings.TrimSpace(raw), "true")
		upd.Animate = &animate
	}

	n, err := strconv.Atoi(strings.TrimSpace(fields["equation_length"]))
	if err != nil {
		return upd, &fieldError{field: "equation_length", err: err}
	}
	if n < 0 || n > maxEquations {
		return upd, &fieldError{field: "equation_length", err: errOutOfRange}
	}

	upd.Equations = make([]graph.EquationInput, n)
	for i := range n {
		prefix := strconv.Itoa(i)
		text, ok := fields.Get(prefix + "_equation")
		if !ok {
			return upd, errMissing(prefix + "_equation")
		}
		upd.Equations[i] = graph.EquationInput{
			Text:     text,
			Disabled: strings.EqualFold(strings.TrimSpace(fields[prefix+"_disabled"]), "true"),
		}
	}
	return upd, nil
}
