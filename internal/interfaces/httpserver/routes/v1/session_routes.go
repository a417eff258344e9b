package v1

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/madgic/madgic-chat/internal/interfaces/httpserver/handlers"
	"github.com/madgic/madgic-chat/pkg/sse"
)

// SSE event names sent to clients.
const (
	eventTranscript = "transcript"
	eventDone       = "done"
)

func registerSessionRoutes(router gin.IRoutes, handler *handlers.SessionHandler) {
	router.POST("/sessions", createSession(handler))
	router.GET("/sessions", listSessions(handler))
	router.GET("/sessions/:session_id", getSession(handler))
	router.PATCH("/sessions/:session_id", updateSession(handler))
	router.DELETE("/sessions/:session_id", deleteSession(handler))
	router.POST("/sessions/:session_id/messages", submitMessage(handler))
	router.DELETE("/sessions/:session_id/messages", resetSession(handler))
	router.GET("/sessions/:session_id/events", streamEvents(handler))
}

// bindOptionalJSON binds a body that may be absent.
func bindOptionalJSON(c *gin.Context, out any) error {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func createSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req handlers.CreateSessionRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			abortBadRequest(c, err)
			return
		}
		resp, err := handler.CreateSession(c.Request.Context(), req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func listSessions(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := handler.ListSessions(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": resp})
	}
}

func getSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := handler.GetSession(c.Request.Context(), c.Param("session_id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func updateSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req handlers.UpdateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err)
			return
		}
		resp, err := handler.UpdateSession(c.Request.Context(), c.Param("session_id"), req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func deleteSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := handler.DeleteSession(c.Request.Context(), c.Param("session_id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func resetSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := handler.ResetSession(c.Request.Context(), c.Param("session_id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func submitMessage(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req handlers.SubmitMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err)
			return
		}
		if req.Stream {
			streamTurn(c, handler, req.Text)
			return
		}

		resp, err := handler.SubmitMessage(c.Request.Context(), c.Param("session_id"), req.Text)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

// streamTurn runs one turn inside the request and relays every session change as
// a transcript frame. The turn keeps running if the client goes away.
func streamTurn(c *gin.Context, handler *handlers.SessionHandler, text string) {
	ctx := c.Request.Context()
	sess, err := handler.Session(ctx, c.Param("session_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	updates, cancel := sess.Subscribe()
	defer cancel()

	run, err := sess.Start(text)
	if err != nil {
		abortWithError(c, err)
		return
	}

	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		run.Abort(err)
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.RunTurn(context.WithoutCancel(ctx), run)
	}()

	for {
		select {
		case view, ok := <-updates:
			if !ok {
				return
			}
			if err := writer.Send(eventTranscript, handlers.NewSessionResponse(view)); err != nil {
				return
			}
		case <-done:
			_ = writer.Send(eventTranscript, handlers.NewSessionResponse(sess.Snapshot()))
			_ = writer.Send(eventDone, handlers.SubmitResponse{SessionID: sess.ID(), PlaceholderID: run.PlaceholderID()})
			return
		case <-ctx.Done():
			return
		}
	}
}

// streamEvents relays session changes until the client disconnects.
func streamEvents(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sess, err := handler.Session(ctx, c.Param("session_id"))
		if err != nil {
			abortWithError(c, err)
			return
		}

		writer, err := sse.NewWriter(c.Writer)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusOK)

		updates, cancel := sess.Subscribe()
		defer cancel()

		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				if err := writer.Send(eventTranscript, handlers.NewSessionResponse(view)); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
