package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hardbanrecords/hardban-lab/internal/api/middleware"
	"github.com/hardbanrecords/hardban-lab/internal/chapters"
)

// chapterOptions reads ?include= plus the optional wpm and excerpt tuning parameters.
func chapterOptions(q url.Values) chapters.Options {
	opts := chapters.ParseOptions(q["include"])

	if n, err := strconv.Atoi(q.Get("wpm")); err == nil && n > 0 {
		opts.WordsPerMinute = n
	}

	if n, err := strconv.Atoi(q.Get("excerptLength")); err == nil && n > 0 {
		opts.ExcerptLength = n
	}

	return opts
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	q := r.URL.Query()

	records, err := s.deps.Chapters.List(r.Context(), chapters.Filter{
		BookID:   q.Get("bookId"),
		Status:   q.Get("status"),
		AuthorID: q.Get("authorId"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		s.storeFailure(w, r, err, "chapter")

		return
	}

	list := s.chapterMapper.ToAPIResponseList(records, chapterOptions(q))

	s.writeJSON(w, r, http.StatusOK, listResponse{Data: list, Count: len(list), Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	var req chapters.CreateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if req.AuthorID == nil {
		if id := callerID(r); id != "" {
			req.AuthorID = &id
		}
	}

	rec, err := s.chapterMapper.FromAPICreateRequest(&req)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	if err := s.deps.Chapters.Create(r.Context(), rec); err != nil {
		s.storeFailure(w, r, err, "chapter")

		return
	}

	s.logger.Info("Chapter created",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("chapter_id", rec.ID),
		slog.String("book_id", rec.BookID),
	)

	s.writeJSON(w, r, http.StatusCreated, s.chapterMapper.ToAPIResponse(rec, chapterOptions(r.URL.Query())))
}

func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Chapters.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeFailure(w, r, err, "chapter")

		return
	}

	s.writeJSON(w, r, http.StatusOK, s.chapterMapper.ToAPIResponse(rec, chapterOptions(r.URL.Query())))
}

func (s *Server) handleUpdateChapter(w http.ResponseWriter, r *http.Request) {
	var req chapters.UpdateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	changes, err := s.chapterMapper.FromAPIUpdateRequest(&req)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	rec, err := s.deps.Chapters.Update(r.Context(), r.PathValue("id"), changes)
	if err != nil {
		s.storeFailure(w, r, err, "chapter")

		return
	}

	s.writeJSON(w, r, http.StatusOK, s.chapterMapper.ToAPIResponse(rec, chapterOptions(r.URL.Query())))
}

func (s *Server) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.deps.Chapters.Delete(r.Context(), id); err != nil {
		s.storeFailure(w, r, err, "chapter")

		return
	}

	s.logger.Info("Chapter deleted",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("chapter_id", id),
		slog.String("user_id", callerID(r)),
	)

	w.WriteHeader(http.StatusNoContent)
}
