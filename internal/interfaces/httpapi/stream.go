package httpapi

import (
	"fmt"
	"net/http"

	"github.com/herdsearch/herd-search/internal/usecase"
	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/bytebufferpool"
)

var streamJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// WatchSession streams the composed session view as Server-Sent Events.
// Every frame carries the full view, never a delta; the client replaces its
// state wholesale on each event. The stream ends when the client goes away.
func (h *Handler) WatchSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.WatchSession")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: response writer does not support streaming", usecase.ErrInvalidInput))
		return
	}

	views, err := h.watchService.WatchSession(ctx, principal.ID)
	if err != nil {
		h.logger.WarnContext(ctx, "session watch failed", "user_id", principal.ID, "error", err)
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case view, open := <-views:
			if !open {
				return
			}
			if err := writeSessionEvent(w, flusher, sessionViewToDTO(ctx, view)); err != nil {
				h.logger.DebugContext(ctx, "session stream write failed, client likely gone",
					"user_id", principal.ID, "error", err)
				return
			}
		}
	}
}

func writeSessionEvent(w http.ResponseWriter, flusher http.Flusher, view sessionViewDTO) error {
	payload, err := streamJSON.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal session view: %w", err)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("event: session\ndata: ")
	_, _ = buf.Write(payload)
	_, _ = buf.WriteString("\n\n")

	if _, err := w.Write(buf.B); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
