package api

import (
	"log/slog"
	"net/http"

	"github.com/hardbanrecords/hardban-lab/internal/api/middleware"
	"github.com/hardbanrecords/hardban-lab/internal/rights"
)

// conflictCheckRequest is the body of POST /api/v1/rights/conflicts. Either the
// explicit ids or a release or book scope must be given.
type conflictCheckRequest struct {
	RightIDs  []string `json:"rightIds"`
	ReleaseID string   `json:"releaseId"`
	BookID    string   `json:"bookId"`
}

type conflictCheckResponse struct {
	Checked   int               `json:"checked"`
	Count     int               `json:"count"`
	Conflicts []rights.Conflict `json:"conflicts"`
}

func (s *Server) handleListRights(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	q := r.URL.Query()

	records, err := s.deps.Rights.List(r.Context(), rights.Filter{
		ReleaseID: q.Get("releaseId"),
		BookID:    q.Get("bookId"),
		RightType: q.Get("rightType"),
		Territory: rights.NormalizeTerritory(q.Get("territory")),
		Status:    q.Get("status"),
		Limit:     p.Limit,
		Offset:    p.Offset,
	})
	if err != nil {
		s.storeFailure(w, r, err, "right")

		return
	}

	list := s.rightsMapper.ToAPIResponseList(records, rights.ParseOptions(q["include"]))

	s.writeJSON(w, r, http.StatusOK, listResponse{Data: list, Count: len(list), Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) handleCreateRight(w http.ResponseWriter, r *http.Request) {
	var req rights.CreateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if req.CreatedBy == nil {
		if id := callerID(r); id != "" {
			req.CreatedBy = &id
		}
	}

	rec, err := s.rightsMapper.FromAPICreateRequest(&req)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	if err := s.deps.Rights.Create(r.Context(), rec); err != nil {
		s.storeFailure(w, r, err, "right")

		return
	}

	s.logger.Info("Right created",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("right_id", rec.ID),
		slog.String("right_type", rec.RightType),
		slog.String("territory", rec.Territory),
	)

	s.writeJSON(w, r, http.StatusCreated, s.rightsMapper.ToAPIResponse(rec, rights.ParseOptions(r.URL.Query()["include"])))
}

func (s *Server) handleGetRight(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Rights.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeFailure(w, r, err, "right")

		return
	}

	s.writeJSON(w, r, http.StatusOK, s.rightsMapper.ToAPIResponse(rec, rights.ParseOptions(r.URL.Query()["include"])))
}

func (s *Server) handleUpdateRight(w http.ResponseWriter, r *http.Request) {
	var req rights.UpdateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	changes, err := s.rightsMapper.FromAPIUpdateRequest(&req)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	rec, err := s.deps.Rights.Update(r.Context(), r.PathValue("id"), changes)
	if err != nil {
		s.storeFailure(w, r, err, "right")

		return
	}

	s.writeJSON(w, r, http.StatusOK, s.rightsMapper.ToAPIResponse(rec, rights.ParseOptions(r.URL.Query()["include"])))
}

func (s *Server) handleDeleteRight(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.deps.Rights.Delete(r.Context(), id); err != nil {
		s.storeFailure(w, r, err, "right")

		return
	}

	s.logger.Info("Right deleted",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("right_id", id),
		slog.String("user_id", callerID(r)),
	)

	w.WriteHeader(http.StatusNoContent)
}

// handleRightsConflicts reports exclusive rights that overlap in type, territory
// and language.
func (s *Server) handleRightsConflicts(w http.ResponseWriter, r *http.Request) {
	var req conflictCheckRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if len(req.RightIDs) == 0 && req.ReleaseID == "" && req.BookID == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("rightIds, releaseId or bookId is required"))

		return
	}

	records, err := s.deps.Rights.List(r.Context(), rights.Filter{
		IDs:       req.RightIDs,
		ReleaseID: req.ReleaseID,
		BookID:    req.BookID,
	})
	if err != nil {
		s.storeFailure(w, r, err, "right")

		return
	}

	list := s.rightsMapper.ToAPIResponseList(records, rights.Options{})
	conflicts := rights.DetectConflicts(list)

	s.writeJSON(w, r, http.StatusOK, conflictCheckResponse{
		Checked:   len(list),
		Count:     len(conflicts),
		Conflicts: conflicts,
	})
}

// handleRightsCoverage summarises the rights of a release, a book or the whole catalogue.
func (s *Server) handleRightsCoverage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	records, err := s.deps.Rights.List(r.Context(), rights.Filter{
		ReleaseID: q.Get("releaseId"),
		BookID:    q.Get("bookId"),
	})
	if err != nil {
		s.storeFailure(w, r, err, "right")

		return
	}

	list := s.rightsMapper.ToAPIResponseList(records, rights.Options{})

	s.writeJSON(w, r, http.StatusOK, rights.AnalyzeCoverage(list))
}

// storeFailure logs unexpected store errors and writes the mapped problem.
func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, err error, entity string) {
	problem := storeProblem(err, entity)

	if problem.Status >= http.StatusInternalServerError {
		s.logger.Error("Store operation failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("entity", entity),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	WriteErrorResponse(w, r, s.logger, problem)
}
