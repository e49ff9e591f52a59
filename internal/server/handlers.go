package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/linuxmatters/greetgif/internal/pipeline"
	"github.com/linuxmatters/greetgif/internal/template"
)

const (
	mimeGIF = "image/gif"
	mimePNG = "image/png"
)

// templateSummary is the list view of a template.
type templateSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Premium     bool   `json:"premium"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Frames      int    `json:"frames"`
}

func summarize(t *template.Template) templateSummary {
	return templateSummary{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Premium:     t.Premium,
		Thumbnail:   t.Thumbnail,
		Frames:      len(t.Frames),
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTemplates(c echo.Context) error {
	list, err := s.repo.List(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]templateSummary, 0, len(list))
	for _, t := range list {
		out = append(out, summarize(t))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetTemplate(c echo.Context) error {
	t, err := s.repo.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// handleRender takes a multipart form with templateId, text and an optional
// photo file and answers with the GIF.
func (s *Server) handleRender(c echo.Context) error {
	id := c.FormValue("templateId")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "templateId is required")
	}
	text := c.FormValue("text")

	photo := pipeline.DefaultPhoto
	if fh, err := c.FormFile("photo"); err == nil {
		if fh.Size > s.cfg.MaxUploadSize {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "photo too large")
		}
		f, err := fh.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadSize+1))
		f.Close()
		if err != nil {
			return err
		}
		photo = pipeline.PhotoBytes(data)
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}

	var out []byte
	err := s.withRender(c, func(ctx context.Context) error {
		var err error
		out, err = s.renderer.Render(ctx, id, photo, text)
		return err
	})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, mimeGIF, out)
}

// handlePreview renders template id with the default photo and either the
// text query parameter or the configured preview text.
func (s *Server) handlePreview(c echo.Context) error {
	id, text := c.Param("id"), s.queryText(c)
	var out []byte
	err := s.withRender(c, func(ctx context.Context) error {
		var err error
		out, err = s.renderer.Render(ctx, id, pipeline.DefaultPhoto, text)
		return err
	})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, mimeGIF, out)
}

func (s *Server) handleThumbnail(c echo.Context) error {
	id, text := c.Param("id"), s.queryText(c)
	var out []byte
	err := s.withRender(c, func(ctx context.Context) error {
		var err error
		out, err = s.renderer.Thumbnail(ctx, id, pipeline.DefaultPhoto, text)
		return err
	})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, mimePNG, out)
}

func (s *Server) queryText(c echo.Context) string {
	if v := c.QueryParam("text"); v != "" {
		return v
	}
	return s.previewText
}
