package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tahirm09/BulkNotify/docs"
	"github.com/tahirm09/BulkNotify/internal/dispatch"
	"github.com/tahirm09/BulkNotify/internal/recipient"
	"github.com/tahirm09/BulkNotify/internal/store"
	"github.com/tahirm09/BulkNotify/internal/template"
	"github.com/tahirm09/BulkNotify/pkg/logx"
	"github.com/tahirm09/BulkNotify/pkg/metrics"
	"github.com/tahirm09/BulkNotify/pkg/rmq"
)

type storeAPI interface {
	CreateJob(ctx context.Context, templateID, channel, sourceID string, statuses []dispatch.RecipientStatus) (int64, error)
	MarkRecipientSent(ctx context.Context, jobID int64, recipientID string) error
	MarkRecipientFailed(ctx context.Context, jobID int64, recipientID, lastErr string) error
	MarkJobDone(ctx context.Context, jobID int64, status string) error
	GetJob(ctx context.Context, id int64) (store.JobRow, error)
	GetJobStats(ctx context.Context, id int64) (store.JobStats, error)
	ListJobs(ctx context.Context, limit, offset int) ([]store.JobRow, []store.JobStats, error)
	ListRecipientStatuses(ctx context.Context, jobID int64) ([]store.RecipientRow, error)
}

type publisherAPI interface {
	PublishJSON(ctx context.Context, body []byte) error
}

type jobAPI interface {
	SourceID() string
	Statuses() []dispatch.RecipientStatus
	Run(ctx context.Context) *dispatch.Report
	Cancel()
}

type dispatcherAPI interface {
	Prepare(tpl template.MessageTemplate, recipients []recipient.Recipient, opts dispatch.Options) (jobAPI, error)
}

type templateCacheAPI interface {
	GetTemplates(ctx context.Context, channel template.Channel) ([]template.MessageTemplate, error)
	Invalidate(channel template.Channel)
}

type storeAdapter struct{ *store.Store }

func (a *storeAdapter) CreateJob(ctx context.Context, templateID, channel, sourceID string, statuses []dispatch.RecipientStatus) (int64, error) {
	var id int64
	err := a.WithTx(ctx, func(tx *sql.Tx) error {
		jid, err := a.InsertJob(ctx, tx, templateID, channel, sourceID)
		if err != nil {
			return err
		}
		id = jid
		for _, st := range statuses {
			if err := a.InsertRecipientPending(ctx, tx, jid, st.RecipientID, st.Address); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

func (a *storeAdapter) MarkRecipientSent(ctx context.Context, jobID int64, recipientID string) error {
	return a.Store.MarkRecipientSent(ctx, a.Store.DB, jobID, recipientID)
}

func (a *storeAdapter) MarkRecipientFailed(ctx context.Context, jobID int64, recipientID, lastErr string) error {
	return a.Store.MarkRecipientFailed(ctx, a.Store.DB, jobID, recipientID, lastErr)
}

func (a *storeAdapter) MarkJobDone(ctx context.Context, jobID int64, status string) error {
	return a.Store.MarkJobDone(ctx, a.Store.DB, jobID, status)
}

type dispatcherAdapter struct{ orch *dispatch.Orchestrator }

func (a dispatcherAdapter) Prepare(tpl template.MessageTemplate, recipients []recipient.Recipient, opts dispatch.Options) (jobAPI, error) {
	j, err := a.orch.Prepare(tpl, recipients, opts)
	if err != nil {
		return nil, err
	}
	return j, nil
}

type Handlers struct {
	Store storeAPI
	Pub   publisherAPI
	Disp  dispatcherAPI
	Cache templateCacheAPI
	Repo  template.Repository

	mu     sync.Mutex
	active map[int64]jobAPI
}

func NewHandlers(s *store.Store, pub *rmq.Publisher, orch *dispatch.Orchestrator, cache *template.Cache, repo template.Repository) *Handlers {
	return &Handlers{
		Store:  &storeAdapter{s},
		Pub:    pub,
		Disp:   dispatcherAdapter{orch},
		Cache:  cache,
		Repo:   repo,
		active: make(map[int64]jobAPI),
	}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) Docs(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", docs.DispatchSwaggerHTML)
}

func (h *Handlers) OpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", docs.DispatchOpenAPI)
}

func (h *Handlers) CreateDispatch(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	tpl, found, err := h.findTemplate(ctx, req.Channel, req.TemplateID)
	if err != nil {
		logx.L().Errorw("template_fetch_error", "template_id", req.TemplateID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "template repository unavailable"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}

	// jobID is assigned before Run starts; the callback only fires inside
	// Run, on this goroutine.
	var jobID int64
	opts := dispatch.Options{
		CustomFields: req.CustomFields,
		Batched:      req.Batched,
		OnStatus: func(st dispatch.RecipientStatus) {
			if !st.State.Terminal() {
				return
			}
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			var err error
			if st.State == dispatch.StateSent {
				err = h.Store.MarkRecipientSent(mctx, jobID, st.RecipientID)
			} else {
				err = h.Store.MarkRecipientFailed(mctx, jobID, st.RecipientID, st.Error)
			}
			if err != nil {
				logx.L().Errorw("status_persist_error", "job_id", jobID, "recipient_id", st.RecipientID, "error", err)
			}
		},
	}

	job, err := h.Disp.Prepare(tpl, req.Recipients, opts)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrNoRecipients), errors.Is(err, dispatch.ErrEmptyTemplate):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	jobID, err = h.Store.CreateJob(ctx, tpl.ID, string(req.Channel), job.SourceID(), job.Statuses())
	if err != nil {
		logx.L().Errorw("job_insert_error", "template_id", tpl.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.track(jobID, job)
	defer h.untrack(jobID)

	report := job.Run(ctx)

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Store.MarkJobDone(doneCtx, jobID, jobStatus(report)); err != nil {
		logx.L().Errorw("job_done_persist_error", "job_id", jobID, "error", err)
	}

	h.publishReport(jobID, report)

	c.JSON(http.StatusOK, buildDispatchResponse(jobID, report))
}

func (h *Handlers) CancelDispatch(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	h.mu.Lock()
	job, ok := h.active[id]
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no running job with that id"})
		return
	}

	job.Cancel()
	c.JSON(http.StatusAccepted, gin.H{"status": "canceling"})
}

func (h *Handlers) GetDispatch(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	job, err := h.Store.GetJob(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	stats, err := h.Store.GetJobStats(ctx, id)
	if err != nil {
		logx.L().Errorw("get_job_stats_error", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats error"})
		return
	}
	recs, err := h.Store.ListRecipientStatuses(ctx, id)
	if err != nil {
		logx.L().Errorw("list_recipient_statuses_error", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "statuses error"})
		return
	}

	resp := JobDetails{
		ID:         job.ID,
		TemplateID: job.TemplateID,
		Channel:    job.Channel,
		SourceID:   job.SourceID,
		Status:     job.Status,
		CreatedAt:  job.CreatedAt,
		Stats: JobStatsBody{
			Total: stats.Total, Pending: stats.Pending,
			Sent: stats.Sent, Failed: stats.Failed,
		},
		Recipients: make([]RecipientStatusBody, 0, len(recs)),
	}
	for _, r := range recs {
		b := RecipientStatusBody{
			RecipientID: r.RecipientID,
			Address:     r.Address,
			Status:      r.Status,
			LastError:   r.LastError.String,
		}
		if r.SentAt.Valid {
			t := r.SentAt.Time
			b.SentAt = &t
		}
		resp.Recipients = append(resp.Recipients, b)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) ListDispatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	rows, stats, err := h.Store.ListJobs(ctx, limit, offset)
	if err != nil {
		logx.L().Errorw("list_jobs_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
		return
	}

	out := make([]JobListItem, 0, len(rows))
	for i, r := range rows {
		out = append(out, JobListItem{
			ID:         r.ID,
			TemplateID: r.TemplateID,
			Channel:    r.Channel,
			Status:     r.Status,
			CreatedAt:  r.CreatedAt,
			Stats: JobStatsBody{
				Total: stats[i].Total, Pending: stats[i].Pending,
				Sent: stats[i].Sent, Failed: stats[i].Failed,
			},
		})
	}

	c.JSON(http.StatusOK, out)
}

func (h *Handlers) ListTemplates(c *gin.Context) {
	channel := template.Channel(c.Query("channel"))
	if !channel.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel must be EMAIL or WHATSAPP"})
		return
	}

	tpls, err := h.Cache.GetTemplates(c.Request.Context(), channel)
	if err != nil {
		logx.L().Errorw("templates_fetch_error", "channel", channel, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "template repository unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": tpls})
}

func (h *Handlers) CreateTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tpl := template.MessageTemplate{
		Name:     req.Name,
		Channel:  req.Channel,
		Subject:  req.Subject,
		Content:  req.Content,
		Category: req.Category,
	}
	created, err := h.Repo.Create(c.Request.Context(), tpl)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	h.Cache.Invalidate(req.Channel)

	c.JSON(http.StatusCreated, created)
}

func (h *Handlers) UpdateTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tpl := template.MessageTemplate{
		ID:       c.Param("id"),
		Name:     req.Name,
		Channel:  req.Channel,
		Subject:  req.Subject,
		Content:  req.Content,
		Category: req.Category,
	}
	updated, err := h.Repo.Update(c.Request.Context(), tpl)
	if err != nil {
		if errors.Is(err, template.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	h.Cache.Invalidate(req.Channel)

	c.JSON(http.StatusOK, updated)
}

func (h *Handlers) DeleteTemplate(c *gin.Context) {
	id := c.Param("id")

	tpl, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, template.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if err := h.Repo.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	h.Cache.Invalidate(tpl.Channel)

	c.Status(http.StatusNoContent)
}

func (h *Handlers) ValidateTemplate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tpl, err := h.Repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, template.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, template.ValidateTemplate(tpl, req.Fields))
}

func (h *Handlers) findTemplate(ctx context.Context, channel template.Channel, id string) (template.MessageTemplate, bool, error) {
	tpls, err := h.Cache.GetTemplates(ctx, channel)
	if err != nil {
		return template.MessageTemplate{}, false, err
	}
	for _, t := range tpls {
		if t.ID == id {
			return t, true, nil
		}
	}
	return template.MessageTemplate{}, false, nil
}

func (h *Handlers) track(id int64, j jobAPI) {
	h.mu.Lock()
	h.active[id] = j
	h.mu.Unlock()
}

func (h *Handlers) untrack(id int64) {
	h.mu.Lock()
	delete(h.active, id)
	h.mu.Unlock()
}

func (h *Handlers) publishReport(jobID int64, report *dispatch.Report) {
	payload, err := json.Marshal(ReportEvent{JobID: jobID, Report: report})
	if err != nil {
		logx.L().Errorw("report_marshal_error", "job_id", jobID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Pub.PublishJSON(ctx, payload); err != nil {
		logx.L().Errorw("report_publish_error", "job_id", jobID, "error", err)
		return
	}
	metrics.ReportEventsPublished.Inc()
}

func jobStatus(r *dispatch.Report) string {
	switch {
	case r.FullySuccessful():
		return "completed"
	case r.Sent > 0:
		return "partial"
	default:
		return "failed"
	}
}

func buildDispatchResponse(jobID int64, r *dispatch.Report) DispatchResponse {
	resp := DispatchResponse{
		JobID:           jobID,
		SourceID:        r.SourceID,
		TemplateID:      r.TemplateID,
		Channel:         r.Channel,
		Attempted:       r.Attempted,
		Sent:            r.Sent,
		Failed:          r.Failed,
		FullySuccessful: r.FullySuccessful(),
		Statuses:        r.Statuses,
	}
	for _, s := range r.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedRecipient{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			Reason:      "no contact value",
		})
	}
	return resp
}
