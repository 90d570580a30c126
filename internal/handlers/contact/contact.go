package contact

import (
	"errors"
	"io"
	"net/http"

	"FormRelay/internal/relay"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler serves the landing page's form endpoint. All verbs are routed here
// so the relay can answer non-POST requests with its own 405 contract.
func Handler(rl *relay.Relay, maxBodyBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		// Other verbs are rejected by the relay without looking at the body.
		if c.Request.Method == http.MethodPost && c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					zerolog.Ctx(c.Request.Context()).Warn().
						Str("fault", "caller").
						Int64("limit", tooLarge.Limit).
						Msg("request body too large")
					c.JSON(http.StatusRequestEntityTooLarge, relay.ErrorBody{Error: relay.MsgBodyTooLarge})
					return
				}
				// A broken read is treated like an unreadable body.
				body = nil
			}
		}

		resp := rl.Handle(c.Request.Context(), c.Request.Method, body)
		for k, vs := range resp.Header {
			for _, v := range vs {
				c.Writer.Header().Add(k, v)
			}
		}
		c.JSON(resp.Status, resp.Body)
	}
}
