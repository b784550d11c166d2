package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"clarity-disputes/backend/internal/audit"
	"clarity-disputes/backend/internal/pipeline"
	"clarity-disputes/backend/internal/scoring"
	"clarity-disputes/backend/internal/store"
)

// Config defines server dependencies.
type Config struct {
	Store          store.Store
	Recorder       *audit.Recorder
	Pipeline       *pipeline.Orchestrator
	Stream         *StreamHub
	AllowedOrigins []string
	MaxImportBytes int64
}

// Server wires HTTP handlers with persistence and the decision pipeline.
type Server struct {
	store          store.Store
	recorder       *audit.Recorder
	pipeline       *pipeline.Orchestrator
	stream         *StreamHub
	allowedOrigins []string
	maxImportBytes int64
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Recorder == nil {
		return nil, errors.New("audit recorder required")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline required")
	}
	stream := cfg.Stream
	if stream == nil {
		stream = NewStreamHub()
	}
	maxImport := cfg.MaxImportBytes
	if maxImport <= 0 {
		maxImport = 10 << 20
	}
	return &Server{
		store:          cfg.Store,
		recorder:       cfg.Recorder,
		pipeline:       cfg.Pipeline,
		stream:         stream,
		allowedOrigins: cfg.AllowedOrigins,
		maxImportBytes: maxImport,
	}, nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/tickets", s.handleListTickets)
		api.POST("/tickets", s.handleCreateTicket)
		api.POST("/tickets/import", s.handleImportTickets)
		api.GET("/tickets/:id", s.handleGetTicket)
		api.POST("/tickets/:id/process", s.handleProcessTicket)
		api.POST("/tickets/:id/human-decision", s.handleHumanDecision)
		api.GET("/tickets/:id/history", s.handleTicketHistory)
		api.GET("/analytics/dashboard", s.handleDashboard)
		api.POST("/ethics/score", s.handleEthicsScore)
		api.GET("/stream", s.handleStream)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListTickets(c *gin.Context) {
	tickets, err := s.store.ListTickets(c.Request.Context())
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	status := store.Status(strings.TrimSpace(c.Query("status")))
	risk := strings.TrimSpace(c.Query("risk_level"))

	items := make([]TicketDTO, 0, len(tickets))
	for _, t := range tickets {
		if status != "" && t.Status != status {
			continue
		}
		if risk != "" && t.RiskLevel != risk {
			continue
		}
		items = append(items, TicketFromModel(t))
	}
	c.JSON(http.StatusOK, TicketsResponse{Items: items, Total: len(items)})
}

func (s *Server) handleCreateTicket(c *gin.Context) {
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if !strings.Contains(req.CustomerEmail, "@") {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid customer_email %q", req.CustomerEmail))
		return
	}
	ticket := store.Ticket{
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		CustomerEmail: req.CustomerEmail,
		DisputeValue:  req.DisputeValue,
		Category:      req.Category,
	}
	if err := s.store.CreateTicket(c.Request.Context(), &ticket); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, TicketFromModel(ticket))
}

func (s *Server) handleImportTickets(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.renderError(c, http.StatusBadRequest, errors.New("tickets csv file is required"))
		} else {
			s.renderError(c, http.StatusBadRequest, err)
		}
		return
	}
	if fileHeader.Size > s.maxImportBytes {
		s.renderError(c, http.StatusRequestEntityTooLarge, fmt.Errorf("csv exceeds %d bytes", s.maxImportBytes))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	parsed, err := parseTicketCSV(f)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if parsed.rowCount == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("no tickets detected in csv"))
		return
	}

	process, _ := strconv.ParseBool(c.PostForm("process"))
	ctx := c.Request.Context()
	resp := ImportResponse{
		RowCount:  parsed.rowCount,
		Skipped:   len(parsed.errors),
		Errors:    parsed.errors,
		TicketIDs: make([]string, 0, len(parsed.tickets)),
	}
	for i := range parsed.tickets {
		ticket := parsed.tickets[i]
		if err := s.store.CreateTicket(ctx, &ticket); err != nil {
			s.renderError(c, http.StatusInternalServerError, fmt.Errorf("create ticket %q: %w", ticket.Title, err))
			return
		}
		resp.Created++
		resp.TicketIDs = append(resp.TicketIDs, ticket.ID)
		if process {
			if result := s.pipeline.ProcessTicket(ctx, ticket.ID); result.Error == nil {
				resp.Processed++
			} else {
				resp.Errors = append(resp.Errors, fmt.Sprintf("process %s: %s", ticket.ID, result.Error.Message))
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"rows":      resp.RowCount,
		"created":   resp.Created,
		"skipped":   resp.Skipped,
		"processed": resp.Processed,
	}).Info("tickets imported")
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetTicket(c *gin.Context) {
	ctx := c.Request.Context()
	ticket, err := s.store.GetTicket(ctx, c.Param("id"))
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	entries, err := s.recorder.List(ctx, ticket.ID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, TicketDetailResponse{Ticket: TicketFromModel(ticket), Negotiations: entries})
}

func (s *Server) handleProcessTicket(c *gin.Context) {
	result := s.pipeline.ProcessTicket(c.Request.Context(), c.Param("id"))
	if result.Error != nil {
		c.JSON(statusForKind(result.Error.Kind), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHumanDecision(c *gin.Context) {
	var req pipeline.HumanDecisionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	ticket, err := s.pipeline.HumanDecision(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		var perr *pipeline.Error
		if errors.As(err, &perr) {
			s.renderError(c, statusForKind(perr.Kind), err)
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Decision processed successfully",
		"ticket":  TicketFromModel(ticket),
	})
}

func (s *Server) handleTicketHistory(c *gin.Context) {
	ctx := c.Request.Context()
	ticket, err := s.store.GetTicket(ctx, c.Param("id"))
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	changes, err := s.store.ListStateChanges(ctx, ticket.ID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]StateChangeDTO, 0, len(changes))
	for _, change := range changes {
		items = append(items, StateChangeFromModel(change))
	}
	c.JSON(http.StatusOK, gin.H{"ticket_id": ticket.ID, "status": ticket.Status, "history": items})
}

func (s *Server) handleDashboard(c *gin.Context) {
	tickets, err := s.store.ListTickets(c.Request.Context())
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overview": store.Summarize(tickets)})
}

func (s *Server) handleEthicsScore(c *gin.Context) {
	var req EthicsScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, scoring.ScoreEthicalCompliance(req.TicketDescription, req.ResolutionType, req.Amount))
}

func (s *Server) handleStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.stream.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("ticket stream connected")
	defer s.stream.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("ticket stream closed")
			} else {
				logrus.WithError(err).Warn("ticket stream unexpected close")
			}
			break
		}
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) renderStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.renderError(c, http.StatusNotFound, err)
		return
	}
	s.renderError(c, http.StatusInternalServerError, err)
}

func statusForKind(kind pipeline.ErrorKind) int {
	switch kind {
	case pipeline.KindNotFound:
		return http.StatusNotFound
	case pipeline.KindAlreadyResolved:
		return http.StatusConflict
	case pipeline.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
