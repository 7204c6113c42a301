package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	clienterrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/jrsteele09/go-chat-client/stream"
)

// Stream performs the streaming handshake for req and hands the live byte
// stream to a decode session running on its own goroutine. The returned
// session exposes Abort and Done; event delivery happens through handlers.
//
// A 401 during the handshake triggers one renewal and one replay — a
// bounded loop, never recursion, so a server that keeps rejecting renewed
// credentials cannot spin the client.
func (c *Client) Stream(ctx context.Context, req Request, handlers stream.Handlers) (*stream.Session, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	const maxAttempts = 2 // the handshake plus one replay after renewal
	for attempt := 1; ; attempt++ {
		resp, err := c.sendStream(streamCtx, req)
		if err != nil {
			cancel()
			return nil, c.fail(&Error{Kind: KindTransport, Message: "stream handshake failed", err: err})
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			if req.SkipAuth || attempt >= maxAttempts {
				cancel()
				return nil, c.fail(&Error{Kind: KindAuth, Code: http.StatusUnauthorized, Message: "unauthenticated", err: clienterrors.ErrUnauthenticated})
			}
			if _, err := c.creds.Renew(streamCtx); err != nil {
				cancel()
				return nil, c.fail(&Error{Kind: KindAuth, Code: http.StatusUnauthorized, Message: "token renewal failed", err: err})
			}
			c.log.Debug().Str("path", req.Path).Msg("replaying stream handshake after token renewal")
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
			resp.Body.Close()
			cancel()
			return nil, c.fail(&Error{Kind: KindTransport, Code: resp.StatusCode, Message: strings.TrimSpace(string(body))})
		}

		options := []stream.SessionOption{stream.WithLogger(c.log)}
		if c.streamChunkSize > 0 {
			options = append(options, stream.WithChunkSize(c.streamChunkSize))
		}
		session := stream.NewSession(resp.Body, cancel, handlers, options...)
		go session.Run()
		return session, nil
	}
}

func (c *Client) sendStream(ctx context.Context, req Request) (*http.Response, error) {
	resp, err := c.sendWith(ctx, req, c.streamClient, func(httpReq *http.Request) {
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")
	})
	return resp, err
}
