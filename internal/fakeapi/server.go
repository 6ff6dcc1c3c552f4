// Package fakeapi serves an in-memory imitation of the BriteVerify v1 and v3
// APIs for local development and end-to-end tests.
package fakeapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/samvad-hq/briteverify-go/internal/logger"
)

const (
	defaultPageSize  = 50
	defaultCredits   = 10_000
	listsPerPage     = 10
	maxContactsBatch = 100_000
)

// Options configures a Server.
type Options struct {
	// APIKey is the only key accepted. Empty accepts any non-blank key.
	APIKey string
	// CompleteAfter is the number of status polls after start before a list
	// completes. Zero completes lists on start.
	CompleteAfter int
	// FailState, when set, is the terminal state lists reach instead of
	// complete (e.g. "import_error").
	FailState string
	PageSize  int
	Credits   int
	Logger    logger.Logger
	Now       func() time.Time
}

// Server holds the fake API state.
type Server struct {
	opts Options
	log  logger.Logger

	mu      sync.Mutex
	lists   map[string]*list
	credits int
}

// New returns a Server with defaults applied.
func New(opts Options) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Credits <= 0 {
		opts.Credits = defaultCredits
	}
	if opts.CompleteAfter < 0 {
		opts.CompleteAfter = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Server{
		opts:    opts,
		log:     log,
		lists:   make(map[string]*list),
		credits: opts.Credits,
	}
}

// Handler returns the gin engine serving /api/v1 and /api/v3.
func (s *Server) Handler() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1", s.authorize())
	{
		v1.POST("/fullverify", s.fullVerify)
	}

	v3 := router.Group("/api/v3", s.authorize())
	{
		v3.GET("/accounts/credits", s.getCredits)
		v3.GET("/accounts/:ext/lists", s.listLists)
		v3.POST("/accounts/:ext/lists", s.createList)
		v3.GET("/accounts/:ext/lists/:id", s.getList)
		v3.GET("/lists", s.listLists)
		v3.POST("/lists", s.createList)
		v3.GET("/lists/:id", s.getList)
		v3.POST("/lists/:id", s.updateList)
		v3.DELETE("/lists/:id", s.deleteList)
		v3.GET("/lists/:id/export/:page", s.exportPage)
	}

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.DebugObj("fake api request", "fake_api_request", map[string]any{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// authorize accepts "Authorization: ApiKey: <key>".
func (s *Server) authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		key, ok := strings.CutPrefix(header, "ApiKey:")
		key = strings.TrimSpace(key)
		if !ok || key == "" || (s.opts.APIKey != "" && key != s.opts.APIKey) {
			s.log.WarnObj("fake api rejected credentials", "fake_api_auth", map[string]any{"path": c.Request.URL.Path})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "unauthorized", "message": "Invalid API key"})
			return
		}
		c.Next()
	}
}

func (s *Server) getCredits(c *gin.Context) {
	s.mu.Lock()
	reserve := 0
	for _, l := range s.lists {
		if l.running() {
			reserve += len(l.contacts)
		}
	}
	credits := s.credits
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"credits":            credits,
		"credits_in_reserve": reserve,
		"recorded_on":        s.opts.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) fullVerify(c *gin.Context) {
	var contact Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	if contact.empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_minimum_inputs"})
		return
	}
	start := time.Now()

	s.mu.Lock()
	s.credits--
	s.mu.Unlock()

	out := singleResult(contact)
	out["duration"] = time.Since(start).Seconds()
	c.JSON(http.StatusOK, out)
}

type listRequest struct {
	Contacts  []Contact `json:"contacts"`
	Directive string    `json:"directive"`
}

func (s *Server) createList(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_request", "message": "malformed request body"})
		return
	}
	if len(req.Contacts) > maxContactsBatch {
		c.JSON(http.StatusBadRequest, gin.H{"status": "exceeds_limit", "message": "too many contacts in one request"})
		return
	}

	now := s.opts.Now()
	l := &list{
		id:         uuid.NewString(),
		externalID: c.Param("ext"),
		state:      "open",
		contacts:   append([]Contact(nil), req.Contacts...),
		createdAt:  now,
	}

	s.mu.Lock()
	s.lists[l.id] = l
	if msg, ok := s.applyDirective(l, req.Directive, now); !ok {
		delete(s.lists, l.id)
		s.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_state", "message": msg})
		return
	}
	body := l.body(s.opts.PageSize, s.baseURL(c))
	s.mu.Unlock()

	s.log.InfoObj("fake api created list", "fake_api_list", map[string]any{"id": l.id, "contacts": len(req.Contacts)})
	c.JSON(http.StatusCreated, gin.H{"status": "success", "message": "list created", "list": body})
}

func (s *Server) updateList(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_request", "message": "malformed request body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lists[c.Param("id")]
	if !ok {
		notFound(c)
		return
	}
	if len(req.Contacts) > 0 {
		if !l.open() {
			c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_state", "message": "contacts can only be added to open lists"})
			return
		}
		if len(req.Contacts) > maxContactsBatch {
			c.JSON(http.StatusBadRequest, gin.H{"status": "exceeds_limit", "message": "too many contacts in one request"})
			return
		}
		l.contacts = append(l.contacts, req.Contacts...)
	}
	if msg, ok := s.applyDirective(l, req.Directive, s.opts.Now()); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_state", "message": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "list updated", "list": l.body(s.opts.PageSize, s.baseURL(c))})
}

// applyDirective must be called with s.mu held.
func (s *Server) applyDirective(l *list, directive string, now time.Time) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(directive)) {
	case "":
		return "", true
	case "start":
		if !l.open() {
			return "only open lists can be started", false
		}
		l.startedAt = now
		if len(l.contacts) == 0 {
			l.state = "missing_data"
			l.errors = append(l.errors, map[string]string{"code": "missing_data", "message": "list has no contacts"})
			return "", true
		}
		s.credits -= len(l.contacts)
		l.state = "pending"
		if s.opts.CompleteAfter == 0 {
			l.finish(s.opts.FailState)
		}
		return "", true
	case "terminate":
		if !l.open() && !l.running() {
			return "list can no longer be terminated", false
		}
		l.state = "terminated"
		return "", true
	default:
		return "unknown directive " + strconv.Quote(directive), false
	}
}

func (s *Server) getList(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lists[c.Param("id")]
	if !ok || (c.Param("ext") != "" && l.externalID != c.Param("ext")) {
		notFound(c)
		return
	}
	l.advance(s.opts.CompleteAfter, s.opts.FailState)
	c.JSON(http.StatusOK, l.body(s.opts.PageSize, s.baseURL(c)))
}

func (s *Server) deleteList(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Param("id")
	l, ok := s.lists[id]
	if !ok {
		notFound(c)
		return
	}
	delete(s.lists, id)
	l.state = "deleted"
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "list deleted", "list": l.body(s.opts.PageSize, s.baseURL(c))})
}

func (s *Server) exportPage(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_request", "message": "page must be a positive integer"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lists[c.Param("id")]
	if !ok {
		notFound(c)
		return
	}
	if l.state != "complete" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_state", "message": "list is not complete"})
		return
	}
	pages := l.pageCount(s.opts.PageSize)
	if page > max(1, pages) {
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found", "message": "page " + strconv.Itoa(page) + " does not exist"})
		return
	}

	from := (page - 1) * s.opts.PageSize
	to := min(from+s.opts.PageSize, len(l.contacts))
	results := make([]map[string]any, 0, max(0, to-from))
	for _, contact := range l.contacts[from:max(from, to)] {
		results = append(results, exportRow(contact))
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"num_pages": strconv.Itoa(pages),
		"results":   results,
	})
}

func (s *Server) listLists(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	state := strings.ToLower(strings.TrimSpace(c.Query("state")))
	date := strings.TrimSpace(c.Query("date"))
	ext := c.Param("ext")

	s.mu.Lock()
	matched := make([]*list, 0, len(s.lists))
	for _, l := range s.lists {
		if ext != "" && l.externalID != ext {
			continue
		}
		if state != "" && l.state != state {
			continue
		}
		if date != "" && l.createdAt.UTC().Format("2006-01-02") != date {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].createdAt.Equal(matched[j].createdAt) {
			return matched[i].id < matched[j].id
		}
		return matched[i].createdAt.Before(matched[j].createdAt)
	})

	total := max(1, (len(matched)+listsPerPage-1)/listsPerPage)
	from := min((page-1)*listsPerPage, len(matched))
	to := min(from+listsPerPage, len(matched))
	bodies := make([]map[string]any, 0, to-from)
	for _, l := range matched[from:to] {
		bodies = append(bodies, l.body(s.opts.PageSize, s.baseURL(c)))
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message": "Page " + strconv.Itoa(page) + " of " + strconv.Itoa(total),
		"lists":   bodies,
	})
}

func (s *Server) baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/api/v3"
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"status": "not_found", "message": "list not found"})
}
