package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mfenderov/regrag/internal/intent"
	"github.com/mfenderov/regrag/internal/pipeline"
	"github.com/mfenderov/regrag/pkg/models"
)

type queryRequest struct {
	Province string `json:"province"`
	Asset    string `json:"asset"`
	DocClass string `json:"doc_class"`
	Question string `json:"question"`
	Lang     string `json:"lang"`
}

type queryResponse struct {
	AnswerZh        string            `json:"answer_zh,omitempty"`
	Citations       []models.Citation `json:"citations"`
	Refusal         string            `json:"refusal,omitempty"`
	Tips            []string          `json:"tips,omitempty"`
	TraceID         string            `json:"trace_id"`
	ElapsedMS       int64             `json:"elapsed_ms"`
	Mode            string            `json:"mode"`
	Intents         []intent.Intent   `json:"intents,omitempty"`
	EnhancementType string            `json:"enhancement_type,omitempty"`
}

type ingestRequest struct {
	Province string `json:"province"`
	Asset    string `json:"asset"`
	DocClass string `json:"doc_class"`
}

type ingestResponse struct {
	Accepted           bool     `json:"accepted"`
	JobID              string   `json:"job_id"`
	ProcessedDocuments int      `json:"processed_documents"`
	SkippedDocuments   int      `json:"skipped_documents"`
	Chunks             int      `json:"chunks"`
	Errors             []string `json:"errors"`
	TraceID            string   `json:"trace_id"`
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": s.service.Mode()})
}

func (s *Server) queryHandler(c *gin.Context) {
	start := time.Now()

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.QueryTimeout)
	defer cancel()

	ans, err := s.service.Answer(ctx, pipeline.Request{
		Province: req.Province,
		Asset:    req.Asset,
		DocClass: req.DocClass,
		Question: req.Question,
		Lang:     req.Lang,
	})
	if err != nil {
		s.fail(c, "query failed", err)
		return
	}

	citations := ans.Citations
	if citations == nil {
		citations = []models.Citation{}
	}
	c.JSON(http.StatusOK, queryResponse{
		AnswerZh:        ans.AnswerZh,
		Citations:       citations,
		Refusal:         ans.Refusal,
		Tips:            ans.Tips,
		TraceID:         traceID(c),
		ElapsedMS:       time.Since(start).Milliseconds(),
		Mode:            ans.Mode,
		Intents:         ans.Intents,
		EnhancementType: ans.EnhancementType,
	})
}

// ingestHandler runs one ingestion job to completion under the ingest
// timeout and reports its counts.
func (s *Server) ingestHandler(c *gin.Context) {
	var req ingestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, "invalid request payload")
			return
		}
	}

	jobID := uuid.New().String()
	var ir pipeline.IngestRequest
	if req.Province != "" {
		ir.Provinces = []string{req.Province}
	}
	if req.Asset != "" {
		ir.Assets = []string{req.Asset}
	}
	ir.DocClass = req.DocClass

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.IngestTimeout)
	defer cancel()

	slog.Info("ingest job started", "job_id", jobID, "province", req.Province, "asset", req.Asset, "doc_class", req.DocClass)
	res, err := s.service.Ingest(ctx, ir)
	if err != nil {
		s.fail(c, "ingest failed", err)
		return
	}

	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	c.JSON(http.StatusAccepted, ingestResponse{
		Accepted:           true,
		JobID:              jobID,
		ProcessedDocuments: res.DocsIndexed,
		SkippedDocuments:   res.DocsSkipped,
		Chunks:             res.ChunksUpserted,
		Errors:             errs,
		TraceID:            traceID(c),
	})
}

// fail maps invalid requests to 400 and everything else to 500 without
// leaking internal error text.
func (s *Server) fail(c *gin.Context, msg string, err error) {
	if errors.Is(err, pipeline.ErrInvalidRequest) {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	slog.Error(msg, "error", err, "trace_id", traceID(c))
	abort(c, http.StatusInternalServerError, "internal error")
}
