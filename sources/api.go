package sources

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pevans/govdigest/scraper"
)

// StatusReader is the read side of StatusStore.
type StatusReader interface {
	GetStatus(name string) (*Status, error)
	ListStatuses() ([]Status, error)
}

// SourceAPIServer serves the adapter registry joined with each source's
// last run status. The status reader may be nil, in which case only the
// registry is reported.
type SourceAPIServer struct {
	adapters []scraper.Adapter
	status   StatusReader
}

// NewSourceAPIServer creates a new source API server.
func NewSourceAPIServer(adapters []scraper.Adapter, status StatusReader) *SourceAPIServer {
	return &SourceAPIServer{
		adapters: adapters,
		status:   status,
	}
}

// RegisterRoutes mounts the source routes on r.
func (s *SourceAPIServer) RegisterRoutes(r gin.IRoutes) {
	r.GET("/api/v1/sources", s.HandleListSources)
	r.GET("/api/v1/sources/:name", s.HandleGetSource)
}

// SourceView is one adapter as reported by the API.
type SourceView struct {
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	EntryURLs    []string `json:"entry_urls"`
	RequestDelay string   `json:"request_delay,omitempty"`
	Enabled      bool     `json:"enabled"`
	Status       *Status  `json:"status,omitempty"`
}

// ListSourcesResponse represents the response for GET /api/v1/sources.
type ListSourcesResponse struct {
	Sources []SourceView `json:"sources"`
	Total   int          `json:"total"`
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// handleError maps domain errors to HTTP responses.
func (s *SourceAPIServer) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSourceNotFound), errors.Is(err, scraper.ErrUnknownAdapter):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// HandleListSources handles GET /api/v1/sources. Sources keep registry
// order.
func (s *SourceAPIServer) HandleListSources(c *gin.Context) {
	byName := map[string]*Status{}
	if s.status != nil {
		statuses, err := s.status.ListStatuses()
		if err != nil {
			s.handleError(c, err)
			return
		}
		for i := range statuses {
			byName[statuses[i].Name] = &statuses[i]
		}
	}

	views := make([]SourceView, 0, len(s.adapters))
	for _, a := range s.adapters {
		views = append(views, newSourceView(a, byName[a.Name]))
	}

	c.JSON(http.StatusOK, ListSourcesResponse{
		Sources: views,
		Total:   len(views),
	})
}

// HandleGetSource handles GET /api/v1/sources/{name}.
func (s *SourceAPIServer) HandleGetSource(c *gin.Context) {
	adapter, err := scraper.Find(s.adapters, c.Param("name"))
	if err != nil {
		s.handleError(c, err)
		return
	}

	var status *Status
	if s.status != nil {
		status, err = s.status.GetStatus(adapter.Name)
		if err != nil && !errors.Is(err, ErrSourceNotFound) {
			s.handleError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, newSourceView(adapter, status))
}

func newSourceView(a scraper.Adapter, status *Status) SourceView {
	view := SourceView{
		Name:      a.Name,
		Label:     a.Label,
		EntryURLs: a.EntryURLs,
		Enabled:   !a.Disabled,
		Status:    status,
	}
	if a.RequestDelay > 0 {
		view.RequestDelay = a.RequestDelay.String()
	}
	return view
}
