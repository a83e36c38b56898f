package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxPushBytes = 1 << 20

// pushEnvelope is the body of a Pub/Sub push delivery.
type pushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

var errBadEvent = errors.New("event needs store_id and event_type")

func decodePush(r io.Reader) (pushEnvelope, config.EventMessage, error) {
	var env pushEnvelope
	var ev config.EventMessage
	if err := json.NewDecoder(io.LimitReader(r, maxPushBytes)).Decode(&env); err != nil {
		return env, ev, err
	}
	if err := json.Unmarshal(env.Message.Data, &ev); err != nil {
		return env, ev, err
	}
	if ev.StoreId == "" || ev.EventType == "" {
		return env, ev, errBadEvent
	}
	return env, ev, nil
}

// pubsubPushHandler drops this instance's snapshot of the store named by a
// reconciliation event. Undecodable pushes are acked so Pub/Sub does not
// redeliver them forever.
func pubsubPushHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if want := os.Getenv("PUBSUB_PUSH_TOKEN"); want != "" && c.Query("token") != want {
			c.Status(http.StatusUnauthorized)
			return
		}
		logger := config.GetLogger()
		env, ev, err := decodePush(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server", "pubsubPushHandler", "decode push", env.Message.ID, err)
			c.Status(http.StatusNoContent)
			return
		}

		svc.Invalidate(ev.StoreId)
		logger.WithFields(logrus.Fields{
			"store_id":       ev.StoreId,
			"event_type":     ev.EventType,
			"message_id":     env.Message.ID,
			"correlation_id": ev.CorrelationId,
		}).Info("[pubsub.invalidate]")
		c.Status(http.StatusNoContent)
	}
}
