package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rzbill/ledger/internal/notification"
	"github.com/rzbill/ledger/internal/runtime"
	"github.com/rzbill/ledger/pkg/id"
	"github.com/rzbill/ledger/pkg/log"
)

// followPollInterval is how often the follow loop checks for new items.
const followPollInterval = 200 * time.Millisecond

// followHeartbeat keeps idle connections alive through proxies.
const followHeartbeat = 15 * time.Second

// FollowController streams new notifications over Server-Sent Events.
type FollowController struct {
	rt     *runtime.Runtime
	ids    *id.Generator
	logger log.Logger
}

// NewFollowController creates a new follow controller.
func NewFollowController(rt *runtime.Runtime) *FollowController {
	return &FollowController{
		rt:     rt,
		ids:    id.NewGenerator(),
		logger: rt.Logger().WithComponent("follow"),
	}
}

// RegisterRoutes registers the follow route with the given mux.
func (c *FollowController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/logs/follow", c.handleFollow)
}

// handleFollow tails a log from an optional position ("from" query), sending
// each notification as an SSE data event. "filter" is a CEL expression
// evaluated server-side; "skipGaps" drops gap placeholders.
func (c *FollowController) handleFollow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	ns := q.Get("namespace")
	if ns == "" {
		ns = c.rt.Config().DefaultNamespaceName
	}
	l, err := c.rt.OpenLog(ns, q.Get("log"))
	if err != nil {
		if errors.Is(err, runtime.ErrLogNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filter, err := notification.NewFilter(q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter: "+err.Error())
		return
	}

	var opts []notification.ReaderOption
	if from := q.Get("from"); from != "" {
		n, err := strconv.ParseUint(from, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from position")
			return
		}
		opts = append(opts, notification.WithPosition(n))
	}
	if parseBool(q.Get("skipGaps")) {
		opts = append(opts, notification.WithSkipGaps())
	}
	reader := l.Reader(opts...)

	subID := c.ids.Next().String()
	logger := c.logger.With(log.Str("subscriber", subID), log.Str("namespace", ns), log.Str("log", q.Get("log")))
	logger.Debug("follow started", log.Uint64("from", reader.Position()))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sink := sseSink{w: w, r: r}
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()
	heartbeat := time.NewTicker(followHeartbeat)
	defer heartbeat.Stop()

	for {
		items, err := reader.Read(r.Context())
		if err != nil {
			logger.Warn("follow read failed", log.Err(err))
			return
		}
		for _, n := range items {
			// gap placeholders have nothing to send
			if n == nil || !filter.Eval(n) {
				continue
			}
			if err := sink.Send(n); err != nil {
				return
			}
		}
		if len(items) > 0 {
			_ = sink.Flush()
		}
		select {
		case <-r.Context().Done():
			logger.Debug("follow closed", log.Uint64("position", reader.Position()))
			return
		case <-heartbeat.C:
			if err := sink.Comment("heartbeat"); err != nil {
				return
			}
			_ = sink.Flush()
		case <-ticker.C:
		}
	}
}
