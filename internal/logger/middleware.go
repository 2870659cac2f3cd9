// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDHeaderName = "x-request-id"
	userAgentHeaderName = "user-agent"

	IncomingRequestMessage  = "incoming request"
	RequestCompletedMessage = "request completed"
)

// httpRequest groups the request attributes emitted in the access log.
type httpRequest struct {
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// httpResponse groups the response attributes emitted in the access log.
type httpResponse struct {
	StatusCode int `json:"statusCode,omitempty"`
	Bytes      int `json:"bytes,omitempty"`
}

// RequestID returns the request id found in the x-request-id header, or a new random one.
func RequestID(c *fiber.Ctx) string {
	if requestID := c.Get(requestIDHeaderName); requestID != "" {
		return requestID
	}

	return uuid.NewString()
}

// statusCode returns the status that will be sent, taking into account errors returned by handlers.
func statusCode(c *fiber.Ctx, err error) int {
	if fiberErr, ok := err.(*fiber.Error); ok {
		return fiberErr.Code
	}

	return c.Response().StatusCode()
}

// RequestMiddlewareLogger is a fiber middleware that logs every request not matching
// one of the excludedPrefix paths, together with its latency.
func RequestMiddlewareLogger(logger Logger, excludedPrefix []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range excludedPrefix {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		start := time.Now()
		log := logger.WithName("request").With("reqId", RequestID(c))
		c.SetUserContext(WithContext(c.UserContext(), log))

		request := httpRequest{
			Method:    c.Method(),
			Path:      path,
			UserAgent: c.Get(userAgentHeaderName),
		}
		log.Trace(IncomingRequestMessage, "http", request)

		err := c.Next()

		log.Info(RequestCompletedMessage,
			"http", request,
			"response", httpResponse{
				StatusCode: statusCode(c, err),
				Bytes:      len(c.Response().Body()),
			},
			"responseTime", float64(time.Since(start).Milliseconds()),
		)

		return err
	}
}
