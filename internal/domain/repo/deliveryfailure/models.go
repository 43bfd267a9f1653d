package deliveryfailure

import (
	"time"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

type DeliveryFailure struct {
	Context      Context               `json:"context"`
	Subscription Subscription          `json:"subscription"`
	Event        entity.LifecycleEvent `json:"event"`
	Payload      []byte                `json:"payload"`
	Attempts     uint                  `json:"attempts"`
	Error        string                `json:"error"`
}

type Context struct {
	Branch   string    `json:"branch"`
	Revision string    `json:"revision"`
	Time     time.Time `json:"time"`
	Host     string    `json:"host"`
}

type Subscription struct {
	Handle string `json:"handle"`
	URL    string `json:"url"`
}
